package receipt

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/zombor/receipt-ledger/internal/scanning"
)

// IDGenerator generates unique prefixes for uploaded files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Preprocessor turns a photo into an image ready for OCR
type Preprocessor interface {
	Process(name string, data []byte) ([]byte, error)
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ScanResult summarizes one pass over the inbox
type ScanResult struct {
	Records    []Receipt `json:"records"`
	Scanned    int       `json:"scanned"`
	Skipped    int       `json:"skipped"`
	Failed     []string  `json:"failed"`
	Appended   int       `json:"appended"`
	PersistErr error     `json:"-"`
}

// Service handles receipt operations
type Service struct {
	ledger       Ledger
	storage      Storage
	preprocessor Preprocessor
	scanner      scanning.Scanner
	idGenerator  IDGenerator
	timeSource   TimeSource

	// one scan at a time, whoever triggers it
	scanMu sync.Mutex
}

// NewService creates a new Service with default ID generator and time source
func NewService(ledger Ledger, storage Storage, preprocessor Preprocessor, scanner scanning.Scanner) *Service {
	return NewServiceWithDeps(ledger, storage, preprocessor, scanner, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(ledger Ledger, storage Storage, preprocessor Preprocessor, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		ledger:       ledger,
		storage:      storage,
		preprocessor: preprocessor,
		scanner:      scanner,
		idGenerator:  idGen,
		timeSource:   timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	// Replace whitespace runs with a single underscore, file names travel through URLs
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(strings.TrimSpace(base), "_")

	// Truncate to reasonable length (50 chars for base, plus extension)
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}
	if !IsReceiptImage(ext) {
		ext = ".jpg"
	}

	return base + ext
}

// Upload stores an image in the inbox under a unique, sanitized name and
// returns that name. The image is parsed on the next scan.
func (s *Service) Upload(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	name := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename))
	saved, err := s.storage.Save(name, data)
	if err != nil {
		return "", fmt.Errorf("saving file: %w", err)
	}
	slog.Info("Receipt image stored", "file", saved, "size", len(data))
	return saved, nil
}

var dataURIPattern = regexp.MustCompile(`^data:image/[\w.+\-]+;base64,(.*)$`)

// UploadDataURI stores an image sent as a base64 data URI
// ("data:image/jpeg;base64,...")
func (s *Service) UploadDataURI(filename, dataURI string) (string, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(dataURI))
	if m == nil {
		return "", fmt.Errorf("%w: expected a base64 image data URI", ErrInvalidUpload)
	}
	data, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if filename == "" {
		filename = "upload.jpg"
	}
	return s.Upload(filename, data)
}

// Scan parses every new image in the inbox, moves each parsed image to the
// processed area and appends the new receipts to the ledger. A failing image
// is logged and skipped. The result is returned even if the ledger write
// fails, with the error in PersistErr.
func (s *Service) Scan() *ScanResult {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	result := &ScanResult{Records: []Receipt{}, Failed: []string{}}

	names, err := s.storage.List()
	if err != nil {
		slog.Error("Failed to list inbox", "error", err)
		return result
	}

	known := knownFiles(s.ledger.Load())
	for _, name := range names {
		result.Scanned++
		if known[name] {
			slog.Debug("Skipping receipt already in ledger", "file", name)
			result.Skipped++
			continue
		}

		receipt, err := s.scanImage(name)
		if err != nil {
			slog.Error("Failed to scan receipt", "file", name, "error", err)
			result.Failed = append(result.Failed, name)
			continue
		}

		if err := s.storage.MarkProcessed(name); err != nil {
			slog.Warn("Failed to move receipt to processed", "file", name, "error", err)
		}
		result.Records = append(result.Records, *receipt)
	}

	if len(result.Records) > 0 {
		appended, err := s.ledger.AppendIfNew(result.Records)
		result.Appended = appended
		if err != nil {
			slog.Error("Failed to persist ledger", "receipts", len(result.Records), "error", err)
			result.PersistErr = err
		}
	}

	slog.Info("Receipt scan finished",
		"scanned", result.Scanned,
		"parsed", len(result.Records),
		"appended", result.Appended,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result
}

// scanImage runs one image through preprocessing, OCR and the parser
func (s *Service) scanImage(name string) (*Receipt, error) {
	data, err := s.storage.Get(name)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	prepared, err := s.preprocessor.Process(name, data)
	if err != nil {
		return nil, fmt.Errorf("preprocessing image: %w", err)
	}

	text, err := s.scanner.ExtractText(prepared)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}

	parsed := Parse(text)
	if len(parsed.UnmatchedNames) > 0 || len(parsed.UnmatchedPrices) > 0 {
		slog.Warn("Item names and prices did not pair up",
			"file", name,
			"unmatched_names", len(parsed.UnmatchedNames),
			"unmatched_prices", len(parsed.UnmatchedPrices),
		)
	}

	receipt := parsed.Receipt(name, text)
	receipt.ScannedAt = s.timeSource.Now()
	return &receipt, nil
}

// ListReceipts returns all receipts in ledger order
func (s *Service) ListReceipts() []Receipt {
	return s.ledger.Load()
}

// GetReceipt retrieves a receipt by its file name
func (s *Service) GetReceipt(file string) (*Receipt, error) {
	for _, r := range s.ledger.Load() {
		if r.File == file {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
}
