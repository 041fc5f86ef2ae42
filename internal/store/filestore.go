package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"storefront-service/internal/models"
)

const (
	ordersFile   = "orders.json"
	settingsFile = "settings.json"
)

// FileStore is the flat-JSON persistence backend: one file per collection,
// records keyed by id, loaded into memory at startup and flushed atomically
// on every mutation. A store-wide mutex serializes mutations, which also
// satisfies the per-order atomicity contract.
type FileStore struct {
	dir         string
	snapshotter Snapshotter

	mu       sync.Mutex
	orders   map[string]models.Order
	settings *models.SiteConfig
}

// NewFileStore loads existing collections from dir, creating it if needed.
// The snapshotter may be nil.
func NewFileStore(dir string, snapshotter Snapshotter) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.StorageUnavailableError{
			Reason: fmt.Sprintf("cannot create data directory %s: %v", dir, err),
		}
	}

	fs := &FileStore{
		dir:         dir,
		snapshotter: snapshotter,
		orders:      make(map[string]models.Order),
	}

	if err := fs.loadOrders(); err != nil {
		return nil, err
	}
	if err := fs.loadSettings(); err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) loadOrders() error {
	data, err := os.ReadFile(filepath.Join(fs.dir, ordersFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ordersFile, err)
	}
	if err := json.Unmarshal(data, &fs.orders); err != nil {
		return fmt.Errorf("failed to parse %s: %w", ordersFile, err)
	}
	return nil
}

func (fs *FileStore) loadSettings() error {
	data, err := os.ReadFile(filepath.Join(fs.dir, settingsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", settingsFile, err)
	}
	var cfg models.SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", settingsFile, err)
	}
	fs.settings = &cfg
	return nil
}

// persistLocked flushes a collection via write-to-temp-then-rename. Callers
// hold fs.mu.
func (fs *FileStore) persistLocked(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(fs.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		// Read-only deployments land here; surface actionable guidance
		// instead of silently succeeding.
		return &models.StorageUnavailableError{
			Reason: fmt.Sprintf("cannot write %s: %v", path, err),
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &models.StorageUnavailableError{
			Reason: fmt.Sprintf("cannot replace %s: %v", path, err),
		}
	}
	return nil
}

func (fs *FileStore) snapshot(description string) {
	if fs.snapshotter != nil {
		fs.snapshotter.Snapshot(description)
	}
}

// CreateOrder persists a new order, failing on duplicate ids.
func (fs *FileStore) CreateOrder(ctx context.Context, order *models.Order) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.orders[order.ID]; exists {
		return &models.ConflictError{Resource: "order", ID: order.ID}
	}

	fs.orders[order.ID] = *order
	if err := fs.persistLocked(ordersFile, fs.orders); err != nil {
		delete(fs.orders, order.ID)
		return err
	}

	fs.snapshot(fmt.Sprintf("order %s created", order.ID))
	return nil
}

// GetOrderByID retrieves an order by id.
func (fs *FileStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	order, ok := fs.orders[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}
	out := order
	return &out, nil
}

// GetOrderByPaymentID searches both gateway correlation fields.
func (fs *FileStore) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, order := range fs.orders {
		if order.PaymentID == paymentID || order.NotificationID == paymentID {
			out := order
			return &out, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "order", ID: paymentID}
}

// UpdateOrder applies administrative edits under the store lock.
func (fs *FileStore) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) (*models.Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	order, ok := fs.orders[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}

	if upd.Status != nil {
		order.Status = *upd.Status
	}
	if upd.Notes != nil {
		order.Notes = *upd.Notes
	}
	order.UpdatedAt = time.Now().UTC()

	prev := fs.orders[id]
	fs.orders[id] = order
	if err := fs.persistLocked(ordersFile, fs.orders); err != nil {
		fs.orders[id] = prev
		return nil, err
	}

	fs.snapshot(fmt.Sprintf("order %s updated", id))
	out := order
	return &out, nil
}

// ApplyPaymentUpdate runs the payment transition under the store lock.
func (fs *FileStore) ApplyPaymentUpdate(ctx context.Context, id string, upd models.PaymentUpdate) (*models.Order, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	order, ok := fs.orders[id]
	if !ok {
		return nil, false, &models.NotFoundError{Resource: "order", ID: id}
	}

	prev := order
	_, approvedNow := models.ApplyPaymentTransition(&order, upd, time.Now().UTC())

	fs.orders[id] = order
	if err := fs.persistLocked(ordersFile, fs.orders); err != nil {
		fs.orders[id] = prev
		return nil, false, err
	}

	fs.snapshot(fmt.Sprintf("order %s payment %s", id, order.PaymentStatus))
	out := order
	return &out, approvedNow, nil
}

// ListOrders returns orders matching the filter, newest first.
func (fs *FileStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	orders := make([]models.Order, 0, len(fs.orders))
	for _, order := range fs.orders {
		if filter.Matches(&order) {
			orders = append(orders, order)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// GetSettings returns the stored site configuration.
func (fs *FileStore) GetSettings(ctx context.Context) (*models.SiteConfig, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.settings == nil {
		return nil, &models.NotFoundError{Resource: "settings", ID: "site"}
	}
	out := *fs.settings
	return &out, nil
}

// SaveSettings replaces the site configuration record.
func (fs *FileStore) SaveSettings(ctx context.Context, cfg *models.SiteConfig) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev := fs.settings
	c := *cfg
	fs.settings = &c
	if err := fs.persistLocked(settingsFile, fs.settings); err != nil {
		fs.settings = prev
		return err
	}

	fs.snapshot("site settings updated")
	return nil
}

var _ OrderRepository = (*FileStore)(nil)
var _ SettingsRepository = (*FileStore)(nil)
