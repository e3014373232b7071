package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-payments/internal/models"
)

var ErrPaymentNotFound = errors.New("payment not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- PAYMENTS ----------------

// CreatePayment → insert new pending payment
func (d *DB) CreatePayment(payment models.Payment) error {
	_, err := d.Bun.NewInsert().Model(&payment).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create payment %s: %w", payment.PaymentID, err)
	}
	return nil
}

// GetPaymentByID → fetch one payment by its ID
func (d *DB) GetPaymentByID(id string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment → update capture state and processor-reported fields
func (d *DB) UpdatePayment(payment models.Payment) error {
	_, err := d.Bun.NewUpdate().
		Model(&payment).
		Column("status", "captured", "capture_id").
		Where("payment_id = ?", payment.PaymentID).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", payment.PaymentID, err)
	}
	return nil
}

// DeletePayment → remove a payment entirely. A missing row is not an error,
// which keeps compensation idempotent.
func (d *DB) DeletePayment(id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Payment)(nil)).
		Where("payment_id = ?", id).
		Exec(context.Background())
	return err
}
