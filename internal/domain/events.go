package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID      string          `json:"order_id"`
	CustomerID   string          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name"`
	Email        string          `json:"email"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Timestamp    time.Time       `json:"timestamp"`
}

func NewOrderCreatedEvent(order *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		CustomerName: order.CustomerName,
		Email:        order.Email,
		Items:        order.Items,
		Total:        order.Total,
		Timestamp:    order.CreatedAt,
	}
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ProductChangeEvent is the realtime feed payload for the products table.
// For DELETE only Product.ID is meaningful.
type ProductChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	Product   Product    `json:"product"`
	Timestamp time.Time  `json:"timestamp"`
}
