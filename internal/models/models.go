package models

import (
	"strings"
	"time"
)

// Customer is the buyer snapshot captured at order time. Orders keep their
// own copy so later edits to the live customer record never rewrite history.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	TaxID string `json:"tax_id,omitempty"`
}

// Address is the shipping address embedded in an order.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
}

// OrderItem is a catalog snapshot line: name, SKU and price are copied at
// order time and never re-read from the catalog.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductSKU  string  `json:"product_sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Order represents a customer order
type Order struct {
	ID             string      `json:"id"`
	Customer       Customer    `json:"customer"`
	Address        Address     `json:"address"`
	Items          []OrderItem `json:"items"`
	Subtotal       float64     `json:"subtotal"`
	ShippingFee    float64     `json:"shipping_fee"`
	Total          float64     `json:"total"`
	PaymentMethod  string      `json:"payment_method"`
	PaymentStatus  string      `json:"payment_status"`
	Status         string      `json:"status"`
	PaymentID      string      `json:"payment_id,omitempty"`
	NotificationID string      `json:"notification_id,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Order fulfillment statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Payment methods
const (
	PaymentMethodCheckout = "checkout"
	PaymentMethodManual   = "manual"
)

// SiteConfig holds merchant-wide settings: messaging channel, contact info
// and payment gateway credentials. A single record per deployment.
type SiteConfig struct {
	WhatsAppNumber     string            `json:"whatsapp_number"`
	ContactEmail       string            `json:"contact_email"`
	SocialLinks        map[string]string `json:"social_links,omitempty"`
	GatewayAccessToken string            `json:"gateway_access_token"`
	GatewayPublicKey   string            `json:"gateway_public_key"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasGatewayCredentials reports whether checkout-by-gateway is available.
func (c *SiteConfig) HasGatewayCredentials() bool {
	return c != nil && strings.TrimSpace(c.GatewayAccessToken) != ""
}

// OrderUpdate carries administrative edits. Nil fields are left untouched;
// line items, totals and snapshots are immutable and have no update path.
type OrderUpdate struct {
	Status *string
	Notes  *string
}

// PaymentUpdate carries the result of a gateway payment lookup.
type PaymentUpdate struct {
	PaymentID      string
	NotificationID string
	PaymentStatus  string
}

// OrderFilter narrows ListOrders results. Empty fields match everything.
type OrderFilter struct {
	Status        string
	PaymentStatus string
}

// Matches reports whether an order passes the filter.
func (f OrderFilter) Matches(o *Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	return true
}

// MapGatewayStatus maps the gateway's raw payment status onto the local
// payment status. Unrecognized statuses stay pending.
func MapGatewayStatus(raw string) string {
	switch raw {
	case "approved":
		return PaymentStatusApproved
	case "rejected", "cancelled":
		return PaymentStatusRejected
	case "refunded", "charged_back":
		return PaymentStatusRefunded
	case "pending", "in_process", "in_mediation":
		return PaymentStatusPending
	default:
		return PaymentStatusPending
	}
}

// IsTerminalPaymentStatus reports whether no further automatic transition
// applies once this status is set.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// ApplyPaymentTransition applies a webhook-driven payment update to an order
// in place. Callers must hold the per-order critical section of the backing
// repository. It returns whether anything besides UpdatedAt changed, and
// whether this call was the transition into approved (the one time the
// notification dispatcher must fire).
func ApplyPaymentTransition(o *Order, upd PaymentUpdate, now time.Time) (changed, approvedNow bool) {
	if upd.PaymentID != "" && o.PaymentID != upd.PaymentID {
		o.PaymentID = upd.PaymentID
		changed = true
	}
	if upd.NotificationID != "" && o.NotificationID != upd.NotificationID {
		o.NotificationID = upd.NotificationID
		changed = true
	}

	if upd.PaymentStatus != "" && upd.PaymentStatus != o.PaymentStatus {
		// Terminal states never transition again; redeliveries carrying a
		// different mapped status are ignored.
		if !IsTerminalPaymentStatus(o.PaymentStatus) {
			o.PaymentStatus = upd.PaymentStatus
			changed = true
			if upd.PaymentStatus == PaymentStatusApproved {
				approvedNow = true
				if o.Status == OrderStatusPending {
					o.Status = OrderStatusConfirmed
				}
			}
		}
	}

	o.UpdatedAt = now
	return changed, approvedNow
}
