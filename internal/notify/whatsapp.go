package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// WhatsAppNotifier delivers order summaries to the merchant's messaging
// channel. Delivery is best-effort: errors are returned to the background
// worker for its retry-or-drop policy and never reach the request path.
type WhatsAppNotifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWhatsAppNotifier sends messages through the given messaging API
// endpoint.
func NewWhatsAppNotifier(endpoint string) *WhatsAppNotifier {
	return &WhatsAppNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     util.GetLogger(),
	}
}

type messageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Notify sends the approved-order summary to the channel address configured
// in the site settings.
func (n *WhatsAppNotifier) Notify(ctx context.Context, order *models.Order, cfg *models.SiteConfig) error {
	if n.endpoint == "" {
		n.logger.Debug("Notification endpoint not configured, skipping",
			zap.String("order_id", order.ID))
		return nil
	}
	if cfg == nil || cfg.WhatsAppNumber == "" {
		n.logger.Warn("No notification channel address configured",
			zap.String("order_id", order.ID))
		return nil
	}

	payload, err := json.Marshal(messageRequest{
		To:   cfg.WhatsAppNumber,
		Body: FormatOrderSummary(order),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		util.NotificationsFailedTotal.Inc()
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.NotificationsFailedTotal.Inc()
		return fmt.Errorf("notification channel returned status %d", resp.StatusCode)
	}

	util.NotificationsSentTotal.Inc()
	n.logger.Info("Order notification sent", zap.String("order_id", order.ID))
	return nil
}

// FormatOrderSummary renders the human-readable order summary sent to the
// merchant once a payment is approved.
func FormatOrderSummary(order *models.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "✅ Payment approved — order %s\n\n", order.ID)
	fmt.Fprintf(&b, "Customer: %s\n", order.Customer.Name)
	fmt.Fprintf(&b, "Email: %s\n", order.Customer.Email)
	if order.Customer.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", order.Customer.Phone)
	}

	b.WriteString("\nShipping address:\n")
	fmt.Fprintf(&b, "%s, %s", order.Address.Street, order.Address.Number)
	if order.Address.Complement != "" {
		fmt.Fprintf(&b, " (%s)", order.Address.Complement)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s — %s/%s\n", order.Address.Neighborhood, order.Address.City, order.Address.State)
	fmt.Fprintf(&b, "CEP %s\n", order.Address.PostalCode)

	b.WriteString("\nItems:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %dx %s (%s) @ %.2f\n",
			item.Quantity, item.ProductName, item.ProductSKU, item.UnitPrice)
	}

	fmt.Fprintf(&b, "\nSubtotal: %.2f\n", order.Subtotal)
	fmt.Fprintf(&b, "Shipping: %.2f\n", order.ShippingFee)
	fmt.Fprintf(&b, "Total: %.2f\n", order.Total)

	if order.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", order.Notes)
	}

	return b.String()
}
