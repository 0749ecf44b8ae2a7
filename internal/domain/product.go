package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents one inventory item in the pharmacy catalog.
// Stock is mutated only by stock adjustments issued during a sale commit
// or by catalog management; it must never go negative.
type Product struct {
	ID         int64           `json:"id" db:"id"`
	Code       string          `json:"code" db:"code"`
	Name       string          `json:"name" db:"name"`
	Lab        string          `json:"lab" db:"lab"`
	Location   string          `json:"location" db:"location"`
	Stock      int             `json:"stock" db:"stock"`
	BuyPrice   decimal.Decimal `json:"buy_price" db:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price" db:"sell_price"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
