package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Successful Status = "successful"
	Cancelled  Status = "cancelled"
	Refunded   Status = "refunded"
)

// Payment records a completed checkout session. The external payment id is
// unique, which is what makes webhook redelivery a no-op instead of a
// duplicate charge record.
type Payment struct {
	ID                string          `json:"id" db:"payment_id"`
	UserID            string          `json:"userId" db:"user_id"`
	OrderID           string          `json:"orderId" db:"order_id"`
	Status            Status          `json:"status" db:"status"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	ExternalPaymentID string          `json:"externalPaymentId" db:"external_payment_id"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// Item snapshots price_at_order into price_at_payment, one row per order
// item, kept for refund/audit granularity.
type Item struct {
	PaymentID      string          `json:"paymentId" db:"payment_id"`
	OrderItemID    string          `json:"orderItemId" db:"order_item_id"`
	PriceAtPayment decimal.Decimal `json:"priceAtPayment" db:"price_at_payment"`
}
