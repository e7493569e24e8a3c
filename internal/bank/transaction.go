package bank

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one booking on the bank account. Debits have a negative
// amount.
type Transaction struct {
	Date          time.Time
	Amount        decimal.Decimal
	Currency      string
	Purpose       string
	ApplicantName string
}

// IsDebit reports whether money left the account
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// StoreHint is the text most likely to name the shop: the applicant, or the
// purpose when the bank left the applicant empty
func (t Transaction) StoreHint() string {
	if name := strings.TrimSpace(t.ApplicantName); name != "" {
		return name
	}
	return strings.TrimSpace(t.Purpose)
}

// Feed provides the bookings between from and to, both days inclusive
type Feed interface {
	Transactions(ctx context.Context, from, to time.Time) ([]Transaction, error)
}
