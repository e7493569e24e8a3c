package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is one parsed receipt photo. Records are created once per scan
// and never updated in place.
type Receipt struct {
	File      string              `json:"file"`  // Source image name, unique within the ledger
	Store     string              `json:"store"` // First non-blank OCR line
	Total     decimal.NullDecimal `json:"total"` // Largest price in the price block, null when none was read
	Items     []Item              `json:"items"`
	RawText   string              `json:"raw_text"`
	ScannedAt time.Time           `json:"scanned_at,omitzero"`
}

// Item is a single purchased line
type Item struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
}
