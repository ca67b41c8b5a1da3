package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingPayment is the durable record of a payment intent awaiting
// settlement. It is the single source of truth for what was promised:
// which buyer, which product, how many tokens, at what price. The record
// is deleted when (and only when) the matching on-chain transfer has been
// verified and the buyer credited.
type PendingPayment struct {
	Reference   string          `db:"reference"`
	Username    string          `db:"username"`
	ProductID   int64           `db:"product_id"`
	TokenAmount int64           `db:"token_amount"`
	PriceSOL    decimal.Decimal `db:"price_sol"`
	CreatedAt   time.Time       `db:"created_at"`
}

// UserBalance represents a user's current token balance (hot data)
type UserBalance struct {
	Username  string    `db:"username"`
	Balance   int64     `db:"balance"`
	UpdatedAt time.Time `db:"updated_at"`
}

// LedgerTransaction represents immutable credit/debit history (cold data).
// Credit rows carry the payment reference they settled; the unique index
// on that column is the idempotency barrier against double-crediting.
type LedgerTransaction struct {
	ID              string    `db:"id"`
	Username        string    `db:"username"`
	TransactionType string    `db:"transaction_type"`
	Amount          int64     `db:"amount"`
	BalanceBefore   int64     `db:"balance_before"`
	BalanceAfter    int64     `db:"balance_after"`
	Reference       string    `db:"reference"`
	Signature       string    `db:"signature"`
	CreatedAt       time.Time `db:"created_at"`
}

// Product is a fixed-price token package from the catalog
type Product struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	TokenAmount int64           `yaml:"token_amount"`
	PriceSOL    decimal.Decimal `yaml:"price_sol"`
}
