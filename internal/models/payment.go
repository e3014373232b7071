package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Processor-reported capture statuses that count as a successful capture.
const (
	CaptureStatusCompleted = "COMPLETED"
	CaptureStatusPending   = "PENDING"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID        string    `json:"payment_id" bun:"payment_id,pk"`
	ProcessorOrderID string    `json:"processor_order_id" bun:"processor_order_id,notnull"`
	Currency         string    `json:"currency" bun:"currency,notnull"`
	Amount           string    `json:"amount" bun:"amount,notnull"`
	Status           string    `json:"status" bun:"status"`
	PayerEmail       string    `json:"payer_email" bun:"payer_email"`
	UserID           string    `json:"user_id" bun:"user_id,notnull"`
	Captured         bool      `json:"captured" bun:"captured,notnull"`
	CaptureID        string    `json:"capture_id,omitempty" bun:"capture_id,nullzero"`
	CreatedAt        time.Time `json:"created_at" bun:"created_at"`
}

// OrderData is the order summary the client posts after the processor
// approves an order on its side.
type OrderData struct {
	OrderID  string `json:"orderID"`
	Currency string `json:"currency"`
	Value    string `json:"value"`
	Status   string `json:"status"`
	Mail     string `json:"mail"`
}

// AuthorizationRequest is the payload the client posts once the processor
// has placed a hold on the payer's funds.
type AuthorizationRequest struct {
	AuthorizationID string `json:"authorizationID"`
	ID              string `json:"id"`
}

// OrderDetails is the processor's view of an order, returned unchanged to
// the client. Only the fields the workflow reads are declared.
type OrderDetails struct {
	OrderID string      `json:"id"`
	Status  string      `json:"status"`
	Intent  string      `json:"intent,omitempty"`
	Payer   OrderPayer  `json:"payer,omitempty"`
	Amount  OrderAmount `json:"amount,omitempty"`
	Links   []OrderLink `json:"links,omitempty"`
}

type OrderPayer struct {
	Email string `json:"email_address,omitempty"`
}

type OrderAmount struct {
	CurrencyCode string `json:"currency_code,omitempty"`
	Value        string `json:"value,omitempty"`
}

type OrderLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// CaptureResult is the processor's response to capturing an authorization.
type CaptureResult struct {
	CaptureID string `json:"id"`
	Status    string `json:"status"`
}

// Captureable reports whether the processor status finalizes the payment.
// Anything else, including an empty status, routes to compensation.
func (r CaptureResult) Captureable() bool {
	return r.Status == CaptureStatusCompleted || r.Status == CaptureStatusPending
}

type PaymentEvent struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	BookingID string    `json:"booking_id,omitempty"`
	UserID    string    `json:"user_id"`
	CaptureID string    `json:"capture_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
