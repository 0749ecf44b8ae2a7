package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods accepted at the register.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// ValidPaymentMethod reports whether m is one of the accepted tender types.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// Sale is a committed sale header. It is created exactly once, together
// with its items, and never mutated afterward. Total always equals the
// sum of its items' subtotals.
type Sale struct {
	ID            int64           `json:"id" db:"id"`
	Date          time.Time       `json:"date" db:"date"`
	Total         decimal.Decimal `json:"total" db:"total"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	SellerUserID  int64           `json:"seller_user_id" db:"seller_user_id"`
}

// SaleItem is one line of a committed sale. UnitPrice is the price actually
// charged, frozen at sale time; Subtotal = UnitPrice * Qty. Code and Name
// are denormalized from the product for receipt display.
type SaleItem struct {
	ID        int64           `json:"id" db:"id"`
	SaleID    int64           `json:"sale_id" db:"sale_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Code      string          `json:"code" db:"code"`
	Name      string          `json:"name" db:"name"`
	Qty       int             `json:"qty" db:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// CartLine is one requested line of a sale before it is committed.
// UnitPrice, when set, overrides the product's catalog sell price.
type CartLine struct {
	ProductID int64
	Qty       int
	UnitPrice *decimal.Decimal
}
