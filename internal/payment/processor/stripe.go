package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeProcessor adapts Stripe's manual-capture payment intents to the
// two-phase order/authorization contract the workflow expects. An intent
// created with capture_method=manual behaves like an authorization hold:
// the order id and the authorization id are both the intent id.
type StripeProcessor struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeProcessor(cfg config.StripeConfig, log *logger.Logger) (*StripeProcessor, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "Stripe secret key not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeProcessor{
		client: sc,
		log:    log,
	}, nil
}

// FetchOrder retrieves the payment intent backing an order.
func (s *StripeProcessor) FetchOrder(ctx context.Context, orderID string) (models.OrderDetails, error) {
	s.log.LogProcessor("FETCH_ORDER", fmt.Sprintf("Retrieving payment intent %s", orderID))

	intent, err := s.client.PaymentIntents.Get(orderID, nil)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve payment intent %s: %v", orderID, err))
		return models.OrderDetails{}, fmt.Errorf("stripe retrieve failed: %w", err)
	}

	return models.OrderDetails{
		OrderID: intent.ID,
		Status:  strings.ToUpper(string(intent.Status)),
		Intent:  "AUTHORIZE",
		Amount: models.OrderAmount{
			CurrencyCode: strings.ToUpper(string(intent.Currency)),
			Value:        fmt.Sprintf("%.2f", float64(intent.Amount)/100),
		},
	}, nil
}

// CaptureAuthorization captures a manual-capture payment intent and maps the
// result onto the workflow's status vocabulary: succeeded → COMPLETED,
// processing → PENDING, anything else stays as reported and routes to
// compensation upstream.
func (s *StripeProcessor) CaptureAuthorization(ctx context.Context, authorizationID string) (models.CaptureResult, error) {
	s.log.LogProcessor("CAPTURE", fmt.Sprintf("Capturing payment intent %s", authorizationID))

	params := &stripe.PaymentIntentCaptureParams{}
	params.SetIdempotencyKey(utils.GenerateTransactionID())

	intent, err := s.client.PaymentIntents.Capture(authorizationID, params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to capture payment intent %s: %v", authorizationID, err))
		return models.CaptureResult{}, fmt.Errorf("stripe capture failed: %w", err)
	}

	result := models.CaptureResult{CaptureID: intent.ID}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = models.CaptureStatusCompleted
	case stripe.PaymentIntentStatusProcessing:
		result.Status = models.CaptureStatusPending
	default:
		result.Status = strings.ToUpper(string(intent.Status))
	}

	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		result.CaptureID = intent.LatestCharge.ID
	}

	s.log.LogProcessor("CAPTURE", fmt.Sprintf("Capture %s status: %s", result.CaptureID, result.Status))
	return result, nil
}
