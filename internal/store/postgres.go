package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore is the relational persistence backend. Customer, address and
// line-item snapshots are stored as JSONB so nested structure survives
// round-trips verbatim. Payment transitions run inside a row-locked
// transaction, which provides the per-order atomicity contract.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the database and verifies the connection.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type orderRow struct {
	ID             string    `db:"id"`
	Customer       []byte    `db:"customer"`
	Address        []byte    `db:"address"`
	Items          []byte    `db:"items"`
	Subtotal       float64   `db:"subtotal"`
	ShippingFee    float64   `db:"shipping_fee"`
	Total          float64   `db:"total"`
	PaymentMethod  string    `db:"payment_method"`
	PaymentStatus  string    `db:"payment_status"`
	Status         string    `db:"status"`
	PaymentID      string    `db:"payment_id"`
	NotificationID string    `db:"notification_id"`
	Notes          string    `db:"notes"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *orderRow) toOrder() (*models.Order, error) {
	order := &models.Order{
		ID:             r.ID,
		Subtotal:       r.Subtotal,
		ShippingFee:    r.ShippingFee,
		Total:          r.Total,
		PaymentMethod:  r.PaymentMethod,
		PaymentStatus:  r.PaymentStatus,
		Status:         r.Status,
		PaymentID:      r.PaymentID,
		NotificationID: r.NotificationID,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Customer, &order.Customer); err != nil {
		return nil, fmt.Errorf("failed to decode customer for order %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Address, &order.Address); err != nil {
		return nil, fmt.Errorf("failed to decode address for order %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items for order %s: %w", r.ID, err)
	}
	return order, nil
}

func encodeOrder(order *models.Order) (customer, address, items []byte, err error) {
	if customer, err = json.Marshal(order.Customer); err != nil {
		return nil, nil, nil, err
	}
	if address, err = json.Marshal(order.Address); err != nil {
		return nil, nil, nil, err
	}
	if items, err = json.Marshal(order.Items); err != nil {
		return nil, nil, nil, err
	}
	return customer, address, items, nil
}

// CreateOrder inserts a new order, failing on duplicate ids.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	customer, address, items, err := encodeOrder(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}

	query := `
		INSERT INTO orders (id, customer, address, items, subtotal, shipping_fee, total,
			payment_method, payment_status, status, payment_id, notification_id, notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.db.ExecContext(ctx, query,
		order.ID, customer, address, items,
		order.Subtotal, order.ShippingFee, order.Total,
		order.PaymentMethod, order.PaymentStatus, order.Status,
		order.PaymentID, order.NotificationID, order.Notes,
		order.CreatedAt, order.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &models.ConflictError{Resource: "order", ID: order.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by id.
func (s *PostgresStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return row.toOrder()
}

// GetOrderByPaymentID searches both gateway correlation fields.
func (s *PostgresStore) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM orders WHERE payment_id = $1 OR notification_id = $1 LIMIT 1", paymentID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "order", ID: paymentID}
	}
	if err != nil {
		return nil, err
	}
	return row.toOrder()
}

// UpdateOrder applies administrative edits in a single statement.
func (s *PostgresStore) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE orders
		SET status = COALESCE($2, status),
		    notes = COALESCE($3, notes),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING *`,
		id, upd.Status, upd.Notes)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return row.toOrder()
}

// ApplyPaymentUpdate runs the payment transition under a row lock.
func (s *PostgresStore) ApplyPaymentUpdate(ctx context.Context, id string, upd models.PaymentUpdate) (*models.Order, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var row orderRow
	err = tx.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, false, &models.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock order: %w", err)
	}

	order, err := row.toOrder()
	if err != nil {
		return nil, false, err
	}

	_, approvedNow := models.ApplyPaymentTransition(order, upd, time.Now().UTC())

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, payment_id = $4, notification_id = $5, updated_at = $6
		WHERE id = $1`,
		order.ID, order.PaymentStatus, order.Status,
		order.PaymentID, order.NotificationID, order.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update payment state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return order, approvedNow, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *PostgresStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR payment_status = $2)
		ORDER BY created_at DESC`,
		filter.Status, filter.PaymentStatus)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// GetSettings returns the single site configuration row.
func (s *PostgresStore) GetSettings(ctx context.Context) (*models.SiteConfig, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, "SELECT data FROM site_settings WHERE id = 1")
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "settings", ID: "site"}
	}
	if err != nil {
		return nil, err
	}

	var cfg models.SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &cfg, nil
}

// SaveSettings upserts the site configuration row.
func (s *PostgresStore) SaveSettings(ctx context.Context, cfg *models.SiteConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO site_settings (id, data, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = NOW()`,
		data)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

var _ OrderRepository = (*PostgresStore)(nil)
var _ SettingsRepository = (*PostgresStore)(nil)
