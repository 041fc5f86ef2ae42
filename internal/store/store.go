package store

import (
	"context"

	"storefront-service/internal/models"
)

// OrderRepository is the persistence contract the order lifecycle is written
// against. Two backends satisfy it: the JSON file store and Postgres. The
// active one is selected once at startup.
//
// Update and ApplyPaymentUpdate are atomic per order id: concurrent calls for
// the same order serialize, never interleave.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// GetOrderByPaymentID matches against both the confirmed payment id and
	// the notification-source id, since the gateway may supply either.
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) (*models.Order, error)
	// ApplyPaymentUpdate runs the payment state transition inside the
	// repository's per-id critical section. The bool result reports whether
	// this call was the transition into approved.
	ApplyPaymentUpdate(ctx context.Context, id string, upd models.PaymentUpdate) (*models.Order, bool, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
}

// SettingsRepository persists the single site configuration record.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*models.SiteConfig, error)
	SaveSettings(ctx context.Context, cfg *models.SiteConfig) error
}

// Snapshotter receives a durable-snapshot request after a file-store
// mutation. Implementations must not block the caller.
type Snapshotter interface {
	Snapshot(description string)
}
