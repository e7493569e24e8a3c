package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"
)

// LineKind is the role a single OCR line plays on a receipt
type LineKind int

const (
	Header LineKind = iota
	ItemName
	QuantityItem
	PriceLine
	SectionMarker
	Ignored
)

func (k LineKind) String() string {
	switch k {
	case Header:
		return "header"
	case ItemName:
		return "item_name"
	case QuantityItem:
		return "quantity_item"
	case PriceLine:
		return "price_line"
	case SectionMarker:
		return "section_marker"
	default:
		return "ignored"
	}
}

// Line is a classified OCR line. Price and Qty are set for PriceLine and
// QuantityItem lines.
type Line struct {
	Text  string
	Kind  LineKind
	Price decimal.Decimal
	Qty   int
}

// sectionMarker is the currency column header that starts the price block
const sectionMarker = "EUR"

var (
	// A price at the very start of a line, optionally followed by a tax class letter
	anchoredPricePattern = regexp.MustCompile(`^(-?\d+[.,]\d{2})(?:\s*[A-Za-z])?(?:\s|$)`)
	// Any price shaped token anywhere in a line
	embeddedPricePattern = regexp.MustCompile(`(?:^|\D)\d+[.,]\d{2}(?:\D|$)`)
	// "2 Stk x 0,90", "3 x 1,29", "2 × 0,90"
	quantityPattern = regexp.MustCompile(`(?i)^(\d{1,3})\s*(?:stk\.?\s*)?[x×]\s*(-?\d+[.,]\d{2})(?:\s|$|[A-Za-z])`)
	// "60311 Frankfurt", "D-60311 Frankfurt am Main"
	postalCodePattern = regexp.MustCompile(`^(?:D-)?\d{5}\s+\p{L}[\p{L}\s.\-/]*$`)
	// "Hauptstr. 5", "Berliner Straße 12a", "Am Markt 3"
	streetPattern = regexp.MustCompile(`(?i)^[\p{L}.\-\s]+(?:str\.?|straße|strasse|weg|platz|allee|gasse|markt)\s*\d+\s*[a-z]?$`)
)

// controlTokens are substrings that mark summary, tax and contact lines
var controlTokens = []string{
	"SUMME",
	"TOTAL",
	"UST-ID",
	"UST.-ID",
	"USTID",
	"UST-IDNR",
	"STEUER-NR",
	"STEUERNR",
	"STEUERNUMMER",
	"ST.-NR",
	"ST-NR",
	"MWST",
	"TELEFON",
}

// controlWords only count as control lines when they stand alone as a word
var controlWords = map[string]bool{
	"UID":  true,
	"STNR": true,
	"TEL":  true,
	"FAX":  true,
}

// classifier tags the lines that come before the price block
type classifier struct {
	controls *ahocorasick.Matcher
}

func newClassifier() *classifier {
	return &classifier{controls: ahocorasick.NewStringMatcher(controlTokens)}
}

// classifyItemLine tags a non-blank line seen while collecting item names
func (c *classifier) classifyItemLine(text string) Line {
	upper := strings.ToUpper(strings.TrimSpace(text))

	if upper == sectionMarker {
		return Line{Text: text, Kind: SectionMarker}
	}

	if qty, price, ok := parseQuantity(text); ok {
		return Line{Text: text, Kind: QuantityItem, Price: price, Qty: qty}
	}

	if embeddedPricePattern.MatchString(text) || c.isControl(upper) || !hasLetter(text) {
		return Line{Text: text, Kind: Ignored}
	}

	return Line{Text: text, Kind: ItemName}
}

// classifyPriceLine tags a line inside the price block
func classifyPriceLine(text string) Line {
	m := anchoredPricePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Line{Text: text, Kind: Ignored}
	}
	price, err := parsePrice(m[1])
	if err != nil {
		return Line{Text: text, Kind: Ignored}
	}
	return Line{Text: text, Kind: PriceLine, Price: price}
}

func (c *classifier) isControl(upper string) bool {
	if len(c.controls.Match([]byte(upper))) > 0 {
		return true
	}
	for _, word := range strings.FieldsFunc(upper, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if controlWords[word] {
			return true
		}
	}
	trimmed := strings.TrimSpace(upper)
	return postalCodePattern.MatchString(trimmed) || streetPattern.MatchString(trimmed)
}

// parseQuantity reads "<qty> [Stk] x <unit price>" and returns the line total
func parseQuantity(text string) (int, decimal.Decimal, bool) {
	m := quantityPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, decimal.Zero, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil || qty < 1 {
		return 0, decimal.Zero, false
	}
	unit, err := parsePrice(m[2])
	if err != nil {
		return 0, decimal.Zero, false
	}
	return qty, unit.Mul(decimal.NewFromInt(int64(qty))), true
}

// parsePrice accepts both decimal comma and decimal point
func parsePrice(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
