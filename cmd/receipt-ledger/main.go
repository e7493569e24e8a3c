package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-ledger/internal/bank"
	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const usage = "receipt-ledger [flags] <serve|scan|match AMOUNT|expenses>"

// config holds every flag value
type config struct {
	port          int
	authUser      string
	authPass      string
	ledgerBackend string
	ledgerPath    string
	inbox         string
	ocr           string
	tesseractLang string
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
	debugDir      string
	scanSchedule  string
	watch         bool
	watchDebounce time.Duration
	bankCSV       string
	csvDelimiter  string
	exclude       string
	logLevel      string
	logFormat     string
	hint          string
	date          string
	month         string
	xlsx          string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	var cfg config
	fs := ff.NewFlagSet("receipt-ledger")
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.authUser, 0, "auth-user", "", "Basic auth username (optional)")
	fs.StringVar(&cfg.authPass, 0, "auth-pass", "", "Basic auth password (optional)")
	fs.StringVar(&cfg.ledgerBackend, 0, "ledger-backend", "json", "Ledger backend: 'json' or 'bolt'")
	fs.StringVar(&cfg.ledgerPath, 0, "ledger", "ledger.json", "Ledger file path")
	fs.StringVar(&cfg.inbox, 0, "inbox", "./inbox", "Directory receipt photos are dropped into")
	fs.StringVar(&cfg.ocr, 0, "ocr", "tesseract", "OCR engine: 'tesseract', 'ollama' or 'gemini'")
	fs.StringVar(&cfg.tesseractLang, 0, "tesseract-lang", "deu+eng", "Tesseract languages, joined with '+'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "qwen2.5vl:7b", "Ollama vision model name")
	fs.StringVar(&cfg.debugDir, 0, "debug-dir", "", "Write intermediate preprocessing images here (optional)")
	fs.StringVar(&cfg.scanSchedule, 0, "scan-schedule", "", "Cron expression for background scans, e.g. '*/15 * * * *' (serve only)")
	fs.BoolVar(&cfg.watch, 0, "watch", "Scan whenever a photo lands in the inbox (serve only)")
	fs.DurationVar(&cfg.watchDebounce, 0, "watch-debounce", 2*time.Second, "Quiet period before a watched change triggers a scan")
	fs.StringVar(&cfg.bankCSV, 0, "bank-csv", "", "Bank statement CSV export used for expense reports")
	fs.StringVar(&cfg.csvDelimiter, 0, "csv-delimiter", ";", "Bank statement CSV delimiter")
	fs.StringVar(&cfg.exclude, 0, "exclude", "", "Comma-separated keywords; matching debits are left out of expense reports")
	fs.StringVar(&cfg.logLevel, 0, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.logFormat, 0, "log-format", "text", "Log format: 'text' or 'json'")
	fs.StringVar(&cfg.hint, 0, "hint", "", "Store hint for match")
	fs.StringVar(&cfg.date, 0, "date", "", "Transaction date for match, YYYY-MM-DD")
	fs.StringVar(&cfg.month, 0, "month", "", "Report month for expenses, YYYY-MM (default: current month)")
	fs.StringVar(&cfg.xlsx, 0, "xlsx", "", "Write the expense report to this XLSX file instead of stdout")
	_ = fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_LEDGER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, usage))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := setupLogging(cfg.logLevel, cfg.logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := fs.GetArgs()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "serve":
		err = serve(cfg)
	case "scan":
		err = scanOnce(cfg)
	case "match":
		err = match(cfg, args)
	case "expenses":
		err = expenses(cfg)
	default:
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, usage))
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		slog.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler on stderr
func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// serve runs the HTTP API plus the optional background scanners until
// interrupted
func serve(cfg config) error {
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.scanSchedule != "" {
		scheduler, err := receipt.NewScheduler(cfg.scanSchedule, app.service)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	if cfg.watch {
		go func() {
			if err := receipt.WatchInbox(ctx, app.storage.Dir(), cfg.watchDebounce, app.service); err != nil {
				slog.Error("Inbox watcher stopped", "error", err)
			}
		}()
	}

	reporter, err := app.reporter(cfg)
	if err != nil {
		return err
	}

	basicAuth := server.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	}
	srv := server.NewServer(app.service, app.matcher, reporter, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
	return nil
}

// scanOnce runs a single scan and prints the result as JSON
func scanOnce(cfg config) error {
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	result := app.service.Scan()
	if err := printJSON(result); err != nil {
		return err
	}
	if result.PersistErr != nil {
		return fmt.Errorf("saving ledger: %w", result.PersistErr)
	}
	return nil
}

// match looks up the receipt for one amount and prints it as JSON. No
// match prints null.
func match(cfg config, args []string) error {
	if len(args) != 1 {
		return errors.New("match needs exactly one amount, e.g. 'match 12,53'")
	}

	var date *time.Time
	if cfg.date != "" {
		d, err := time.Parse(time.DateOnly, cfg.date)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		date = &d
	}

	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	return printJSON(receipt.NewMatcher(ledger).FindMatchText(args[0], cfg.hint, date))
}

// expenses prints the monthly expense report, or writes it as a workbook
// when --xlsx is set
func expenses(cfg config) error {
	if cfg.bankCSV == "" {
		return errors.New("--bank-csv is required for expense reports")
	}

	month := time.Now()
	if cfg.month != "" {
		m, err := bank.ParseMonth(cfg.month)
		if err != nil {
			return err
		}
		month = m
	}

	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	reporter, err := newReporter(cfg, receipt.NewMatcher(ledger))
	if err != nil {
		return err
	}
	report, err := reporter.Monthly(context.Background(), month)
	if err != nil {
		return err
	}

	if cfg.xlsx == "" {
		return printJSON(report)
	}

	f, err := os.Create(cfg.xlsx)
	if err != nil {
		return fmt.Errorf("creating workbook: %w", err)
	}
	if err := bank.WriteXLSX(f, report); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing workbook: %w", err)
	}
	slog.Info("Expense report written", "path", cfg.xlsx, "transactions", report.TransactionCount)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
