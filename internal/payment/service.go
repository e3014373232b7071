package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/notifier"
	"ms-payments/internal/utils"
)

// FailureNotice is the single user-facing message shown when a capture is
// rejected or fails.
const FailureNotice = "A provisioning problem occurred"

type PaymentStore interface {
	CreatePayment(payment models.Payment) error
	GetPaymentByID(id string) (*models.Payment, error)
	UpdatePayment(payment models.Payment) error
	DeletePayment(id string) error
}

type BookingStore interface {
	DeleteBooking(id string) error
}

type ProcessorClient interface {
	FetchOrder(ctx context.Context, orderID string) (models.OrderDetails, error)
	CaptureAuthorization(ctx context.Context, authorizationID string) (models.CaptureResult, error)
}

type CheckoutSession interface {
	SetPaymentID(ctx context.Context, paymentID string) error
	PaymentID(ctx context.Context) (string, error)
	ClearPaymentID(ctx context.Context) error
	SetAuthorizationID(ctx context.Context, authorizationID string) error
	AuthorizationID(ctx context.Context) (string, error)
	ClearAuthorizationID(ctx context.Context) error
}

type EventPublisher interface {
	PublishPaymentCreated(payment models.Payment) error
	PublishPaymentCaptured(payment models.Payment) error
	PublishPaymentRolledBack(payment models.Payment, bookingID string) error
}

type Notifier interface {
	Notify(ctx context.Context, owner, severity, text string) error
}

// Service owns the payment authorization/capture workflow: create a pending
// payment, record the authorization, then capture it or roll everything back.
type Service struct {
	Store     PaymentStore
	Bookings  BookingStore
	Processor ProcessorClient
	Events    EventPublisher
	Notifier  Notifier
	logger    *logger.Logger
}

func NewService(store PaymentStore, bookings BookingStore, processor ProcessorClient, events EventPublisher, notify Notifier, log *logger.Logger) *Service {
	return &Service{
		Store:     store,
		Bookings:  bookings,
		Processor: processor,
		Events:    events,
		Notifier:  notify,
		logger:    log,
	}
}

// CreatePendingPayment persists an uncaptured payment for the submitted
// order data and records its id in the checkout session.
func (s *Service) CreatePendingPayment(ctx context.Context, sess CheckoutSession, data models.OrderData, user models.User) (string, error) {
	if err := validateOrderData(data); err != nil {
		return "", err
	}

	payment := models.Payment{
		PaymentID:        utils.GenerateID(),
		ProcessorOrderID: data.OrderID,
		Currency:         data.Currency,
		Amount:           data.Value,
		Status:           data.Status,
		PayerEmail:       data.Mail,
		UserID:           user.ID,
		Captured:         false,
		CreatedAt:        time.Now(),
	}

	if err := s.Store.CreatePayment(payment); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to persist pending payment for order %s: %v", data.OrderID, err))
		return "", fmt.Errorf("failed to create pending payment: %w", err)
	}

	if err := sess.SetPaymentID(ctx, payment.PaymentID); err != nil {
		s.logger.Error("SESSION", fmt.Sprintf("Failed to store payment id %s in session: %v", payment.PaymentID, err))
		return "", fmt.Errorf("failed to store payment id in session: %w", err)
	}

	if s.Events != nil {
		if err := s.Events.PublishPaymentCreated(payment); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish payment created event: %v", err))
		}
	}

	s.logger.LogPayment("CREATE", payment.PaymentID, fmt.Sprintf("Pending payment created for order %s (%s %s)", data.OrderID, data.Value, data.Currency))
	return payment.PaymentID, nil
}

// FindPayment fetches one payment by its id.
func (s *Service) FindPayment(id string) (*models.Payment, error) {
	return s.Store.GetPaymentByID(id)
}

// RequestAuthorization validates the client's authorization payload, resets
// the checkout to a fresh capture cycle, records the authorization id and
// returns the processor's view of the order unchanged.
//
// Validation happens before any session mutation and before any processor
// call: a payload without an authorization id leaves no trace.
func (s *Service) RequestAuthorization(ctx context.Context, sess CheckoutSession, body []byte, user models.User) (models.OrderDetails, error) {
	s.logger.Info("PAYMENT", "======== Payment procedure ========")

	var req models.AuthorizationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.OrderDetails{}, fmt.Errorf("invalid authorization payload: %w", err)
	}

	if req.AuthorizationID == "" {
		return models.OrderDetails{}, ErrMissingAuthorizationID
	}

	// An authorization request always starts a fresh capture cycle
	if err := sess.ClearPaymentID(ctx); err != nil {
		return models.OrderDetails{}, fmt.Errorf("failed to reset session: %w", err)
	}

	if err := sess.SetAuthorizationID(ctx, req.AuthorizationID); err != nil {
		return models.OrderDetails{}, fmt.Errorf("failed to store authorization id in session: %w", err)
	}

	s.logger.Info("PAYMENT", fmt.Sprintf("authorizationID recorded - order: %s - user e-mail: %s", req.ID, user.Email))

	details, err := s.Processor.FetchOrder(ctx, req.ID)
	if err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to fetch order %s from processor: %v", req.ID, err))
		return models.OrderDetails{}, fmt.Errorf("failed to fetch order from processor: %w", err)
	}

	return details, nil
}

// CapturePayment drives a single capture attempt to a terminal outcome.
//
// The returned error is non-nil only for persistence failures while
// finalizing a successful capture; every processor-side problem is folded
// into the outcome after compensation has run.
func (s *Service) CapturePayment(ctx context.Context, sess CheckoutSession, booking *models.Booking, payment *models.Payment, user models.User) (CaptureOutcome, error) {
	s.logger.Info("PAYMENT", fmt.Sprintf("Capturing payment %s - user e-mail: %s", payment.PaymentID, user.Email))

	authorizationID, err := sess.AuthorizationID(ctx)
	if err != nil || authorizationID == "" {
		if err != nil {
			s.logger.Error("SESSION", fmt.Sprintf("Failed to read authorization id: %v", err))
		} else {
			s.logger.Error("PAYMENT", fmt.Sprintf("No authorization id in session for payment %s", payment.PaymentID))
		}
		s.compensate(ctx, sess, booking, payment, user)
		return OutcomeRolledBack, nil
	}

	result, err := s.Processor.CaptureAuthorization(ctx, authorizationID)
	if err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Capture call failed for authorization %s: %v", authorizationID, err))
		s.compensate(ctx, sess, booking, payment, user)
		return OutcomeFailed, nil
	}

	s.logger.Info("PAYMENT", fmt.Sprintf("%s -- %s", result.CaptureID, result.Status))

	if !result.Captureable() {
		s.logger.Error("PAYMENT", fmt.Sprintf("Payment not captured (status %q) -- deleting reservation, user e-mail: %s", result.Status, user.Email))
		s.compensate(ctx, sess, booking, payment, user)
		return OutcomeRolledBack, nil
	}

	if err := s.finalize(payment, result.CaptureID, result.Status); err != nil {
		return OutcomeFailed, err
	}

	if err := sess.ClearAuthorizationID(ctx); err != nil {
		s.logger.Warn("SESSION", fmt.Sprintf("Failed to clear authorization id after capture: %v", err))
	}
	if err := sess.ClearPaymentID(ctx); err != nil {
		s.logger.Warn("SESSION", fmt.Sprintf("Failed to clear payment id after capture: %v", err))
	}

	if s.Events != nil {
		if err := s.Events.PublishPaymentCaptured(*payment); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish payment captured event: %v", err))
		}
	}

	s.logger.LogPayment("CAPTURE", payment.PaymentID, fmt.Sprintf("Captured with capture id %s", payment.CaptureID))
	return OutcomeSuccess, nil
}

// finalize marks the payment captured and persists it. Once this returns nil
// the capture is irreversible; there is no un-capture in this workflow.
func (s *Service) finalize(payment *models.Payment, captureID, status string) error {
	payment.Captured = true
	payment.CaptureID = captureID
	payment.Status = status

	if err := s.Store.UpdatePayment(*payment); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to persist captured payment %s: %v", payment.PaymentID, err))
		return fmt.Errorf("failed to persist captured payment: %w", err)
	}
	return nil
}

// compensate deletes the payment and its booking as one unit, clears the
// pending authorization and queues the user-facing failure notice. Deletes
// are idempotent, so running compensation twice produces no new effects.
// If one delete fails the other still runs; the error is logged and the
// attempt stays terminal.
func (s *Service) compensate(ctx context.Context, sess CheckoutSession, booking *models.Booking, payment *models.Payment, user models.User) {
	s.logger.Warn("PAYMENT", fmt.Sprintf("Compensating: deleting payment %s and booking %s", payment.PaymentID, booking.BookingID))

	if err := s.Store.DeletePayment(payment.PaymentID); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Compensation: failed to delete payment %s: %v", payment.PaymentID, err))
	}
	if err := s.Bookings.DeleteBooking(booking.BookingID); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Compensation: failed to delete booking %s: %v", booking.BookingID, err))
	}

	if err := sess.ClearAuthorizationID(ctx); err != nil {
		s.logger.Warn("SESSION", fmt.Sprintf("Compensation: failed to clear authorization id: %v", err))
	}
	if err := sess.ClearPaymentID(ctx); err != nil {
		s.logger.Warn("SESSION", fmt.Sprintf("Compensation: failed to clear payment id: %v", err))
	}

	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, user.ID, notifier.SeverityDanger, FailureNotice); err != nil {
			s.logger.Warn("NOTIFY", fmt.Sprintf("Failed to queue failure notice for %s: %v", user.ID, err))
		}
	}

	if s.Events != nil {
		if err := s.Events.PublishPaymentRolledBack(*payment, booking.BookingID); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish payment rolled back event: %v", err))
		}
	}
}

func validateOrderData(data models.OrderData) error {
	fields := []struct {
		name  string
		value string
	}{
		{"orderID", data.OrderID},
		{"currency", data.Currency},
		{"value", data.Value},
		{"status", data.Status},
		{"mail", data.Mail},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingOrderField, f.name)
		}
	}
	return nil
}
