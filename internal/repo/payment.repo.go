package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"checkout-reconciler/internal/domain"
)

// PaymentRepo keeps the gateway checkout sessions opened for orders.
type PaymentRepo interface {
	CreateSession(ctx context.Context, session *domain.PaymentSession) error
	// FindByOrder returns the most recent session for orderID.
	FindByOrder(ctx context.Context, orderID string) (*domain.PaymentSession, error)
	// MarkSettled closes every open session of orderID once the order is terminal.
	MarkSettled(ctx context.Context, orderID string) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) CreateSession(ctx context.Context, s *domain.PaymentSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = domain.SessionInitiated
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	query := `INSERT INTO payment_sessions (id, order_id, amount_minor, payment_url, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx, query, s.ID, s.OrderID, s.AmountMinor, s.PaymentURL, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return dbErr(err, "insert payment session for %s", s.OrderID)
	}
	return nil
}

func (r *paymentRepo) FindByOrder(ctx context.Context, orderID string) (*domain.PaymentSession, error) {
	query := `
		SELECT id, order_id, amount_minor, payment_url, status, created_at, updated_at
		FROM payment_sessions
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s domain.PaymentSession
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&s.ID,
		&s.OrderID,
		&s.AmountMinor,
		&s.PaymentURL,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrNotFound, "payment session for %s", orderID)
	}
	if err != nil {
		return nil, dbErr(err, "find payment session for %s", orderID)
	}
	return &s, nil
}

func (r *paymentRepo) MarkSettled(ctx context.Context, orderID string) error {
	query := `
		UPDATE payment_sessions
		SET status = $2,
		    updated_at = now()
		WHERE order_id = $1 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, orderID, domain.SessionSettled, domain.SessionInitiated)
	if err != nil {
		return dbErr(err, "settle payment sessions for %s", orderID)
	}
	return nil
}
