package models

import "time"

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string      `json:"order_id"`
	PaymentMethod string      `json:"payment_method"`
	Total         float64     `json:"total"`
	Items         []OrderItem `json:"items"`
}

// PaymentStatusChangedEvent published when a webhook moves an order's
// payment status
type PaymentStatusChangedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
}
