package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/zombor/receipt-ledger/internal/bank"
	"github.com/zombor/receipt-ledger/internal/preprocess"
	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/scanning"
)

// app is the wired scanning side: ledger, inbox, OCR and the service on top
type app struct {
	service     *receipt.Service
	storage     *receipt.LocalStorage
	matcher     *receipt.Matcher
	scanner     scanning.Scanner
	closeLedger func()
}

func newApp(cfg config) (*app, error) {
	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		closeLedger()
		return nil, err
	}

	// Initialize storage
	slog.Info("Initializing inbox...", "dir", cfg.inbox)
	store, err := receipt.NewLocalStorage(cfg.inbox)
	if err != nil {
		scanner.Close()
		closeLedger()
		return nil, fmt.Errorf("initializing inbox: %w", err)
	}

	pipeline, err := preprocess.NewPipeline(cfg.debugDir)
	if err != nil {
		scanner.Close()
		closeLedger()
		return nil, err
	}

	return &app{
		service:     receipt.NewService(ledger, store, pipeline, scanner),
		storage:     store,
		matcher:     receipt.NewMatcher(ledger),
		scanner:     scanner,
		closeLedger: closeLedger,
	}, nil
}

// Close releases the OCR engine and the ledger
func (a *app) Close() {
	if err := a.scanner.Close(); err != nil {
		slog.Warn("Failed to close scanner", "error", err)
	}
	a.closeLedger()
}

// reporter builds the expense reporter, or returns nil without a bank CSV
func (a *app) reporter(cfg config) (*bank.Reporter, error) {
	if cfg.bankCSV == "" {
		return nil, nil
	}
	return newReporter(cfg, a.matcher)
}

// openLedger opens the configured ledger backend. The returned func closes it.
func openLedger(cfg config) (receipt.Ledger, func(), error) {
	switch cfg.ledgerBackend {
	case "json":
		slog.Info("Using JSON ledger", "path", cfg.ledgerPath)
		return receipt.NewJSONLedger(cfg.ledgerPath), func() {}, nil
	case "bolt":
		slog.Info("Using BoltDB ledger", "path", cfg.ledgerPath)
		db, err := receipt.NewBoltLedger(cfg.ledgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing ledger: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close ledger", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("invalid ledger backend %q, want json or bolt", cfg.ledgerBackend)
	}
}

// newScanner initializes the configured OCR engine
func newScanner(cfg config) (scanning.Scanner, error) {
	switch cfg.ocr {
	case "tesseract":
		langs := strings.Split(cfg.tesseractLang, "+")
		slog.Info("Initializing Tesseract scanner...", "languages", langs)
		t, err := scanning.NewTesseract(langs...)
		if err != nil {
			return nil, fmt.Errorf("initializing tesseract: %w", err)
		}
		return t, nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		g, err := scanning.NewGemini(apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return g, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		o, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid OCR engine %q, want tesseract, ollama or gemini", cfg.ocr)
	}
}

func newReporter(cfg config, matcher *receipt.Matcher) (*bank.Reporter, error) {
	delimiter, size := utf8.DecodeRuneInString(cfg.csvDelimiter)
	if size == 0 || size != len(cfg.csvDelimiter) {
		return nil, fmt.Errorf("--csv-delimiter must be a single character, got %q", cfg.csvDelimiter)
	}
	var exclude []string
	if cfg.exclude != "" {
		exclude = strings.Split(cfg.exclude, ",")
	}
	feed := bank.NewCSVFeed(cfg.bankCSV, delimiter)
	return bank.NewReporter(feed, matcher, exclude), nil
}
