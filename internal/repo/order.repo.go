package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"checkout-reconciler/internal/domain"
)

const uniqueViolation = "23505"

type OrderRepo interface {
	// Create stores a new order and assigns its InternalID. A second order
	// with the same OrderID fails with domain.ErrDuplicateOrder.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	// UpdateStatus moves a pending order to a terminal status. It is a
	// conditional write: when the order already left pending nothing changes
	// and the returned StatusChange has Applied=false.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentRef *string) (domain.StatusChange, error)
	// FindStalePending lists gateway orders still pending, untouched since
	// before and not checked since before, least recently looked at first.
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
	// MarkChecked records that a sweep looked at a pending order without
	// settling it, moving it to the back of the stale queue.
	MarkChecked(ctx context.Context, orderID string, at time.Time) error
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `order_id, internal_id, customer_info, ordered_items,
	subtotal, discount_amount, taxes, shipping_cost, additional_fees, total_amount,
	payment_method, payment_reference, applied_coupon, status, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	created := *order
	created.InternalID = uuid.New()
	created.Status = domain.OrderPending
	now := time.Now().UTC()
	created.CreatedAt, created.UpdatedAt = now, now

	customer, err := json.Marshal(created.Customer)
	if err != nil {
		return nil, errors.Wrap(err, "marshal customer")
	}
	items, err := json.Marshal(created.Items)
	if err != nil {
		return nil, errors.Wrap(err, "marshal items")
	}
	var coupon any
	if created.Coupon != nil {
		raw, err := json.Marshal(created.Coupon)
		if err != nil {
			return nil, errors.Wrap(err, "marshal coupon")
		}
		coupon = string(raw)
	}

	a := created.Amounts
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		created.OrderID, created.InternalID, string(customer), string(items),
		a.Subtotal, a.DiscountAmount, a.Taxes, a.ShippingCost, a.AdditionalFees, a.FinalTotal,
		created.PaymentMethod, created.PaymentReference, coupon, created.Status,
		created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, errors.Wrapf(domain.ErrDuplicateOrder, "order %s", created.OrderID)
		}
		return nil, dbErr(err, "insert order %s", created.OrderID)
	}
	return &created, nil
}

func (r *orderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, dbErr(err, "get order %s", orderID)
	}
	return order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentRef *string) (domain.StatusChange, error) {
	if !status.Terminal() {
		return domain.StatusChange{}, fmt.Errorf("status %q is not a terminal status", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StatusChange{}, dbErr(err, "begin status update")
	}
	defer tx.Rollback()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`, orderID).Scan(&current)
	if err == sql.ErrNoRows {
		return domain.StatusChange{}, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	if err != nil {
		return domain.StatusChange{}, dbErr(err, "lock order %s", orderID)
	}

	if current != domain.OrderPending {
		return domain.StatusChange{Previous: current, Current: current}, nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    payment_reference = COALESCE($3, payment_reference),
		    updated_at = now()
		WHERE order_id = $1 AND status = 'pending'
	`, orderID, status, paymentRef)
	if err != nil {
		return domain.StatusChange{}, dbErr(err, "update order %s", orderID)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.StatusChange{}, dbErr(err, "update order %s", orderID)
	} else if n != 1 {
		return domain.StatusChange{}, dbErr(fmt.Errorf("updated %d rows", n), "update order %s", orderID)
	}
	if err := tx.Commit(); err != nil {
		return domain.StatusChange{}, dbErr(err, "commit order %s", orderID)
	}

	return domain.StatusChange{Previous: current, Current: status, Applied: true}, nil
}

func (r *orderRepo) FindStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'pending' AND payment_method = 'gateway' AND updated_at < $1
		  AND (last_checked_at IS NULL OR last_checked_at < $1)
		ORDER BY COALESCE(last_checked_at, updated_at)
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, dbErr(err, "find stale orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, dbErr(err, "scan stale order")
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "iterate stale orders")
	}
	return orders, nil
}

func (r *orderRepo) MarkChecked(ctx context.Context, orderID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET last_checked_at = $2
		WHERE order_id = $1 AND status = 'pending'
	`, orderID, at)
	if err != nil {
		return dbErr(err, "mark order %s checked", orderID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o                domain.Order
		customer, items  []byte
		coupon           []byte
		paymentReference sql.NullString
	)
	err := s.Scan(
		&o.OrderID,
		&o.InternalID,
		&customer,
		&items,
		&o.Amounts.Subtotal,
		&o.Amounts.DiscountAmount,
		&o.Amounts.Taxes,
		&o.Amounts.ShippingCost,
		&o.Amounts.AdditionalFees,
		&o.Amounts.FinalTotal,
		&o.PaymentMethod,
		&paymentReference,
		&coupon,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, errors.Wrap(err, "decode customer_info")
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errors.Wrap(err, "decode ordered_items")
	}
	if len(coupon) > 0 {
		o.Coupon = &domain.Coupon{}
		if err := json.Unmarshal(coupon, o.Coupon); err != nil {
			return nil, errors.Wrap(err, "decode applied_coupon")
		}
	}
	if paymentReference.Valid {
		ref := paymentReference.String
		o.PaymentReference = &ref
	}
	return &o, nil
}

// dbErr tags a storage failure with domain.ErrPersistence while keeping the
// driver error in the chain.
func dbErr(err error, format string, args ...any) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", domain.ErrPersistence, err), format, args...)
}
