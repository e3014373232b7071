package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-payments/internal/auth"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/notifier"
	"ms-payments/internal/payment"
	paymentdb "ms-payments/internal/payment/db"
	"ms-payments/internal/utils"
)

// ReservationPath is where the client restarts checkout after a rollback.
const ReservationPath = "/reservation"

// WorkflowService is the slice of the payment service the handlers drive.
type WorkflowService interface {
	CreatePendingPayment(ctx context.Context, sess payment.CheckoutSession, data models.OrderData, user models.User) (string, error)
	RequestAuthorization(ctx context.Context, sess payment.CheckoutSession, body []byte, user models.User) (models.OrderDetails, error)
	CapturePayment(ctx context.Context, sess payment.CheckoutSession, booking *models.Booking, p *models.Payment, user models.User) (payment.CaptureOutcome, error)
	FindPayment(id string) (*models.Payment, error)
}

type BookingStore interface {
	CreateBooking(booking *models.Booking) error
	GetBooking(id string) (*models.Booking, error)
}

// SessionProvider hands out the checkout session for a given owner.
type SessionProvider interface {
	SessionFor(ownerID string) payment.CheckoutSession
}

type FlashReader interface {
	Drain(ctx context.Context, owner string) ([]notifier.Message, error)
}

type Handler struct {
	Service  WorkflowService
	Bookings BookingStore
	Sessions SessionProvider
	Flashes  FlashReader
	SDKLink  func() string
	Logger   *logger.Logger
}

// CreatePayment registers a pending payment for the authenticated user's
// checkout. The payment stays uncaptured until the capture step.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var data models.OrderData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := h.Sessions.SessionFor(user.ID)
	paymentID, err := h.Service.CreatePendingPayment(r.Context(), sess, data, user)
	if err != nil {
		if errors.Is(err, payment.ErrMissingOrderField) {
			http.Error(w, "Invalid order data: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Could not create payment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "created",
		"paymentId": paymentID,
	})
}

// RequestAuthorization records the processor's authorization hold in the
// checkout session and echoes the processor's view of the order back.
func (h *Handler) RequestAuthorization(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}

	sess := h.Sessions.SessionFor(user.ID)
	details, err := h.Service.RequestAuthorization(r.Context(), sess, body, user)
	if err != nil {
		if errors.Is(err, payment.ErrMissingAuthorizationID) {
			http.Error(w, "Missing authorization id", http.StatusBadRequest)
			return
		}
		http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

type captureRequest struct {
	BookingID string `json:"bookingId"`
}

// CapturePayment finishes the two-phase flow. On success it returns the
// captured payment; otherwise the payment and booking are already gone and
// the client is pointed back to the reservation page.
func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	paymentID := chi.URLParam(r, "paymentId")

	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.BookingID == "" {
		http.Error(w, "bookingId is required", http.StatusBadRequest)
		return
	}

	p, err := h.Service.FindPayment(paymentID)
	if err != nil {
		if errors.Is(err, paymentdb.ErrPaymentNotFound) {
			http.Error(w, "Payment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not load payment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if p.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	booking, err := h.Bookings.GetBooking(req.BookingID)
	if err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	sess := h.Sessions.SessionFor(user.ID)
	outcome, err := h.Service.CapturePayment(r.Context(), sess, booking, p, user)
	if err != nil {
		http.Error(w, "Could not finalize payment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch outcome {
	case payment.OutcomeSuccess:
		json.NewEncoder(w).Encode(utils.SuccessResponse("Payment captured", p))
	case payment.OutcomeRolledBack:
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "rolled_back",
			"message":  payment.FailureNotice,
			"redirect": ReservationPath,
		})
	default:
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "failed",
			"message":  payment.FailureNotice,
			"redirect": ReservationPath,
		})
	}
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	paymentID := chi.URLParam(r, "paymentId")
	p, err := h.Service.FindPayment(paymentID)
	if err != nil {
		http.Error(w, "Payment not found", http.StatusNotFound)
		return
	}
	if p.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// CreateBooking registers the reservation a payment will settle. Bookings
// normally arrive from the reservations service; this endpoint covers
// standalone deployments and manual testing.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var booking models.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if booking.BookingID == "" {
		booking.BookingID = utils.GenerateUUID()
	}
	booking.UserID = user.ID

	if err := h.Bookings.CreateBooking(&booking); err != nil {
		http.Error(w, "Could not create booking: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	booking, err := h.Bookings.GetBooking(chi.URLParam(r, "bookingId"))
	if err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}
	if booking.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// GetSDKLink returns the script URL the checkout page loads to start an
// authorize-intent payment.
func (h *Handler) GetSDKLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": h.SDKLink()})
}

// GetNotifications drains the caller's queued flash messages.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messages, err := h.Flashes.Drain(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Could not read notifications: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []notifier.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}
