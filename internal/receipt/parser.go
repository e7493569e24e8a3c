package receipt

import (
	"strings"

	"github.com/shopspring/decimal"
)

type parseState int

const (
	stateHeader parseState = iota
	stateItemNames
	statePriceBlock
)

// ParseResult is the structured form of one receipt's OCR text.
// UnmatchedNames and UnmatchedPrices are non-empty when the item names and
// the price block did not pair up, which usually means OCR dropped a line.
type ParseResult struct {
	Store           string
	Total           decimal.NullDecimal
	Items           []Item
	Lines           []Line
	UnmatchedNames  []string
	UnmatchedPrices []decimal.Decimal
}

// Receipt builds the ledger record for this parse
func (p ParseResult) Receipt(file, rawText string) Receipt {
	items := p.Items
	if items == nil {
		items = []Item{}
	}
	return Receipt{
		File:    file,
		Store:   p.Store,
		Total:   p.Total,
		Items:   items,
		RawText: rawText,
	}
}

// entry is an item in source order, either waiting for a price-block price
// or a quantity composite that already carries its own
type entry struct {
	name      string
	composite bool
	price     decimal.Decimal
	qty       int
}

type parser struct {
	classifier *classifier
	state      parseState
	result     ParseResult
	entries    []entry
	prices     []decimal.Decimal
	// set while the last line was an item name a quantity line may attach to
	openName bool
}

// Parse classifies each line of OCR text and assembles the receipt.
//
// The first non-blank line is the store. Lines up to the "EUR" column header
// are item names, quantity lines or noise; lines after it are read only for
// prices anchored at the start of the line. Names are paired with prices by
// position, and the total is the largest price seen.
func Parse(rawText string) ParseResult {
	p := &parser{classifier: newClassifier()}
	for _, raw := range strings.Split(strings.ReplaceAll(rawText, "\r\n", "\n"), "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		p.feed(text)
	}
	return p.finish()
}

func (p *parser) feed(text string) {
	var line Line
	switch p.state {
	case stateHeader:
		line = Line{Text: text, Kind: Header}
		p.result.Store = text
		p.state = stateItemNames

	case stateItemNames:
		line = p.classifier.classifyItemLine(text)
		switch line.Kind {
		case SectionMarker:
			p.state = statePriceBlock
			p.openName = false
		case ItemName:
			p.entries = append(p.entries, entry{name: text})
			p.openName = true
		case QuantityItem:
			p.addComposite(line)
		default:
			p.openName = false
		}

	case statePriceBlock:
		line = classifyPriceLine(text)
		if line.Kind == PriceLine {
			p.prices = append(p.prices, line.Price)
		}
	}
	p.result.Lines = append(p.result.Lines, line)
}

// addComposite appends a quantity line as its own priced item. It is labelled
// with the item name directly above it, if any, and that name still pairs
// with the price block like every other name.
func (p *parser) addComposite(line Line) {
	name := line.Text
	if p.openName {
		name = p.entries[len(p.entries)-1].name
	}
	p.entries = append(p.entries, entry{
		name:      name,
		composite: true,
		price:     line.Price,
		qty:       line.Qty,
	})
	p.openName = false
}

func (p *parser) finish() ParseResult {
	next := 0
	for _, e := range p.entries {
		if e.composite {
			p.result.Items = append(p.result.Items, Item{Name: e.name, Price: e.price, Qty: e.qty})
			continue
		}
		if next < len(p.prices) {
			p.result.Items = append(p.result.Items, Item{Name: e.name, Price: p.prices[next], Qty: 1})
			next++
			continue
		}
		p.result.UnmatchedNames = append(p.result.UnmatchedNames, e.name)
	}
	if next < len(p.prices) {
		p.result.UnmatchedPrices = append(p.result.UnmatchedPrices, p.prices[next:]...)
	}

	if len(p.prices) > 0 {
		p.result.Total = decimal.NewNullDecimal(decimal.Max(p.prices[0], p.prices[1:]...))
	}
	return p.result
}
