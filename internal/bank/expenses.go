package bank

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/receipt"
)

const (
	purposeLimit = 120
	unknownName  = "Unknown"
	monthLayout  = "2006-01"
)

// Matcher finds the receipt for one debit
type Matcher interface {
	FindMatch(q receipt.Query) *receipt.Match
}

// Expense is a debit in the report, with the receipt it was matched to.
// Store, Items and File are empty when no receipt matched.
type Expense struct {
	Date     string          `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Name     string          `json:"name"`
	Purpose  string          `json:"purpose"`
	Store    *string         `json:"store"`
	Items    []receipt.Item  `json:"items"`
	File     *string         `json:"file"`
}

// Report lists one month of debits
type Report struct {
	Month            string          `json:"month"`
	Total            decimal.Decimal `json:"total"`
	TransactionCount int             `json:"transaction_count"`
	ExcludedKeywords []string        `json:"excluded_keywords"`
	Transactions     []Expense       `json:"transactions"`
}

// Reporter builds monthly expense reports from a bank feed and the ledger
type Reporter struct {
	feed    Feed
	matcher Matcher
	exclude []string
}

// NewReporter creates a Reporter. Debits whose purpose or applicant contain
// one of the exclude keywords, ignoring case, are left out of reports.
func NewReporter(feed Feed, matcher Matcher, exclude []string) *Reporter {
	keywords := make([]string, 0, len(exclude))
	for _, k := range exclude {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Reporter{feed: feed, matcher: matcher, exclude: keywords}
}

// ParseMonth reads a YYYY-MM month
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}

// Monthly reports the debits booked in the calendar month containing month
func (r *Reporter) Monthly(ctx context.Context, month time.Time) (*Report, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	transactions, err := r.feed.Transactions(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	report := &Report{
		Month:            first.Format(monthLayout),
		Total:            decimal.Zero,
		ExcludedKeywords: r.exclude,
		Transactions:     []Expense{},
	}
	for _, tx := range transactions {
		if !tx.IsDebit() || r.excluded(tx) {
			continue
		}
		amount := tx.Amount.Abs()
		report.Total = report.Total.Add(amount)
		report.Transactions = append(report.Transactions, r.expense(tx, amount))
	}
	report.TransactionCount = len(report.Transactions)

	slog.Debug("Built expense report", "month", report.Month, "transactions", report.TransactionCount, "total", report.Total.StringFixed(2))
	return report, nil
}

func (r *Reporter) excluded(tx Transaction) bool {
	text := strings.ToLower(tx.Purpose + tx.ApplicantName)
	for _, k := range r.exclude {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func (r *Reporter) expense(tx Transaction, amount decimal.Decimal) Expense {
	name := tx.ApplicantName
	if name == "" {
		name = unknownName
	}
	e := Expense{
		Date:     tx.Date.Format("2006-01-02"),
		Amount:   amount,
		Currency: tx.Currency,
		Name:     name,
		Purpose:  truncate(tx.Purpose, purposeLimit),
		Items:    []receipt.Item{},
	}

	if m := r.match(tx, amount); m != nil {
		store, file := m.Receipt.Store, m.Receipt.File
		e.Store = &store
		e.File = &file
		if m.Receipt.Items != nil {
			e.Items = m.Receipt.Items
		}
	}
	return e
}

// match tries the bank's store hint first and retries on amount and date
// alone when the hint rejects every receipt
func (r *Reporter) match(tx Transaction, amount decimal.Decimal) *receipt.Match {
	date := tx.Date
	q := receipt.Query{Amount: amount, StoreHint: tx.StoreHint(), Date: &date}
	if m := r.matcher.FindMatch(q); m != nil {
		return m
	}
	if q.StoreHint == "" {
		return nil
	}
	q.StoreHint = ""
	return r.matcher.FindMatch(q)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
