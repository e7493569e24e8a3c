package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Minimum store similarity when a hint is given
	minStoreSimilarity = 0.4
	// Bonus for receipts mentioning a date in the transaction's month
	dateBonus = 0.1
)

// amountTolerance is the largest difference between a bank amount and a
// receipt total that still counts as the same payment
var amountTolerance = decimal.RequireFromString("0.05")

// Source provides the receipts to match against
type Source interface {
	Load() []Receipt
}

// Query describes one bank debit
type Query struct {
	Amount    decimal.Decimal
	StoreHint string
	Date      *time.Time
}

// Match is the receipt chosen for a query and the score it won with
type Match struct {
	Receipt Receipt `json:"receipt"`
	Score   float64 `json:"score"`
}

// Matcher finds the ledger receipt that best explains a bank debit. It keeps
// no state between calls, so one receipt can match several transactions.
type Matcher struct {
	source Source
}

// NewMatcher creates a Matcher reading receipts from source on every call
func NewMatcher(source Source) *Matcher {
	return &Matcher{source: source}
}

// FindMatch scores every receipt within 0.05 of the amount and returns the
// best one, or nil when none qualifies.
//
// The score starts at 1 minus the amount difference. A store hint rejects
// receipts whose store shares too few words with it and otherwise adds the
// similarity. A date adds a small bonus when the receipt text mentions a
// date in the same month. Ties keep the earlier receipt.
func (m *Matcher) FindMatch(q Query) *Match {
	amount := q.Amount.Abs()
	hint := strings.TrimSpace(q.StoreHint)
	hintTokens := nameTokens(hint)

	var best *Match
	for _, r := range m.source.Load() {
		if !r.Total.Valid {
			continue
		}
		diff := r.Total.Decimal.Sub(amount).Abs()
		if diff.GreaterThan(amountTolerance) {
			continue
		}
		score := 1 - diff.InexactFloat64()

		if hint != "" {
			similarity := tokenOverlap(hintTokens, nameTokens(r.Store))
			if similarity < minStoreSimilarity {
				continue
			}
			score += similarity
		}

		if q.Date != nil && mentionsMonth(r.RawText, *q.Date) {
			score += dateBonus
		}

		if best == nil || score > best.Score {
			best = &Match{Receipt: r, Score: score}
		}
	}
	return best
}

// FindMatchText is FindMatch for amounts given as text, such as "12,53" or
// "-12.53". Malformed amounts match nothing.
func (m *Matcher) FindMatchText(amount, storeHint string, date *time.Time) *Match {
	value, ok := ParseAmount(amount)
	if !ok {
		return nil
	}
	return m.FindMatch(Query{Amount: value, StoreHint: storeHint, Date: date})
}

// ParseAmount reads a money amount written with a decimal point or a
// decimal comma, with optional thousands separators
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// 1.234,56 or 1,234.56: the last separator is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

var (
	// 24.12.2024, 24.12.24, 24/12/2024
	dayFirstDate = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{4}|\d{2})\b`)
	// 2024-12-24
	isoDate = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// mentionsMonth reports whether text contains a plausible date that falls in
// the same year and month as t
func mentionsMonth(text string, t time.Time) bool {
	for _, m := range dayFirstDate.FindAllStringSubmatch(text, -1) {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if sameMonth(year, atoi(m[2]), atoi(m[1]), t) {
			return true
		}
	}
	for _, m := range isoDate.FindAllStringSubmatch(text, -1) {
		if sameMonth(atoi(m[1]), atoi(m[2]), atoi(m[3]), t) {
			return true
		}
	}
	return false
}

func sameMonth(year, month, day int, t time.Time) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	return year == t.Year() && time.Month(month) == t.Month()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
