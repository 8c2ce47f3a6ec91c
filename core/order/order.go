package order

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending  Status = "pending"
	Paid     Status = "paid"
	Canceled Status = "canceled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == Paid || s == Canceled
}

// CanTransitionTo encodes the order lifecycle: pending may become paid or
// canceled, and that's it.
func (s Status) CanTransitionTo(next Status) bool {
	return s == Pending && (next == Paid || next == Canceled)
}

var (
	ErrAlreadyPaid     = errors.New("order already paid")
	ErrAlreadyCanceled = errors.New("order already cancelled")
)

// Order is one checkout attempt: snapshotted line items, a total that always
// equals their sum, and a session id binding it to the provider-hosted
// payment once the provider has answered.
type Order struct {
	ID          string          `json:"id" db:"order_id"`
	UserID      string          `json:"userId" db:"user_id"`
	Status      Status          `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	SessionID   sql.NullString  `json:"-" db:"session_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Item stores price_at_order, the immutable price snapshot that decouples
// the order total from later catalog edits.
type Item struct {
	ID           string          `json:"id" db:"order_item_id"`
	OrderID      string          `json:"orderId" db:"order_id"`
	MovieID      string          `json:"movieId" db:"movie_id"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder" db:"price_at_order"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

type StatusUp struct {
	ID        string    `db:"order_id"`
	Status    Status    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Placed is the placement response: the movie names that made it into the
// order plus a detail message that surfaces reservation exclusions.
type Placed struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	Movies      []string        `json:"movies"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	Detail      string          `json:"detail"`
}
