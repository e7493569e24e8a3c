package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Ledger is the append-only collection of parsed receipts, keyed by file name
type Ledger interface {
	// Load returns every receipt in insertion order. Read failures are
	// logged and yield an empty ledger.
	Load() []Receipt

	// AppendIfNew stores the receipts whose file is not yet known and
	// returns how many were added
	AppendIfNew(records []Receipt) (int, error)
}

// JSONLedger keeps the whole ledger in one JSON array on disk
type JSONLedger struct {
	path string
}

// NewJSONLedger creates a JSONLedger backed by the file at path. The file is
// created on the first append.
func NewJSONLedger(path string) *JSONLedger {
	return &JSONLedger{path: path}
}

// Load reads the ledger file
func (l *JSONLedger) Load() []Receipt {
	records, err := l.read()
	if err != nil {
		slog.Error("Failed to read ledger, starting empty", "path", l.path, "error", err)
		return []Receipt{}
	}
	return records
}

// AppendIfNew rewrites the ledger with the new receipts appended
func (l *JSONLedger) AppendIfNew(records []Receipt) (int, error) {
	existing := l.Load()
	fresh := filterNew(knownFiles(existing), records)
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := l.write(append(existing, fresh...)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (l *JSONLedger) read() ([]Receipt, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Receipt{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Receipt{}, nil
	}

	var records []Receipt
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling ledger: %w", err)
	}
	if records == nil {
		records = []Receipt{}
	}
	return records, nil
}

// write replaces the ledger file through a temp file and rename
func (l *JSONLedger) write(records []Receipt) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func knownFiles(records []Receipt) map[string]bool {
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.File] = true
	}
	return known
}

// filterNew drops receipts whose file is already known, including repeats
// inside records itself
func filterNew(known map[string]bool, records []Receipt) []Receipt {
	fresh := make([]Receipt, 0, len(records))
	for _, r := range records {
		if known[r.File] {
			continue
		}
		known[r.File] = true
		fresh = append(fresh, r)
	}
	return fresh
}
