package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking is the reservation a payment secures. The workflow creates and
// destroys a booking together with its payment, never one without the other.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID string    `json:"booking_id" bun:"booking_id,pk"`
	UserID    string    `json:"user_id" bun:"user_id,notnull"`
	Reference string    `json:"reference" bun:"reference,notnull"`
	Status    string    `json:"status" bun:"status,notnull"`
	CreatedAt time.Time `json:"created_at" bun:"created_at"`
}
