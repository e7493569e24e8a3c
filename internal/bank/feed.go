package bank

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/zombor/receipt-ledger/internal/receipt"
)

// csvRow is one line of a bank statement export. Only the columns named
// here are read, others are ignored.
type csvRow struct {
	Date          string `csv:"date"`
	Amount        string `csv:"amount"`
	Currency      string `csv:"currency"`
	Purpose       string `csv:"purpose"`
	ApplicantName string `csv:"applicant_name"`
}

// dateLayouts are tried in order when reading the date column
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02.01.06",
	"02/01/2006",
}

// CSVFeed reads bookings from a CSV statement export with a header row
type CSVFeed struct {
	path      string
	delimiter rune
}

// NewCSVFeed creates a feed over the CSV file at path. A zero delimiter
// means ';', the usual choice of German online banking.
func NewCSVFeed(path string, delimiter rune) *CSVFeed {
	if delimiter == 0 {
		delimiter = ';'
	}
	return &CSVFeed{path: path, delimiter: delimiter}
}

// Transactions reads the statement and keeps the bookings dated within
// [from, to]. Rows that cannot be read are logged and skipped.
func (f *CSVFeed) Transactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening bank statement: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = f.delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows []csvRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing bank statement: %w", err)
	}

	from, to = startOfDay(from), startOfDay(to)
	transactions := make([]Transaction, 0, len(rows))
	for i, row := range rows {
		tx, err := row.transaction()
		if err != nil {
			// +2 for the header and 1-indexed rows
			slog.Warn("Skipping bank statement row", "row", i+2, "error", err)
			continue
		}
		day := startOfDay(tx.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func (r csvRow) transaction() (Transaction, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return Transaction{}, err
	}
	amount, ok := receipt.ParseAmount(r.Amount)
	if !ok {
		return Transaction{}, fmt.Errorf("invalid amount %q", r.Amount)
	}
	currency := strings.TrimSpace(r.Currency)
	if currency == "" {
		currency = "EUR"
	}
	return Transaction{
		Date:          date,
		Amount:        amount,
		Currency:      currency,
		Purpose:       strings.TrimSpace(r.Purpose),
		ApplicantName: strings.TrimSpace(r.ApplicantName),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
