package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/receipt-ledger/internal/bank"
	"github.com/zombor/receipt-ledger/internal/receipt"
)

// Max upload size, high-resolution phone photos run to several MB
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// handleListReceipts returns every receipt in ledger order
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListReceipts())
}

// handleGetReceipt returns the receipt parsed from one image
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	rec, err := s.service.GetReceipt(file)
	if errors.Is(err, receipt.ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting receipt", "file", file, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// dataURIUpload is the JSON upload body
type dataURIUpload struct {
	Filename  string `json:"filename"`
	ImageData string `json:"image_data"`
}

// handleUploadReceipt stores an image in the inbox. It accepts a multipart
// form with a "file" field or a JSON body carrying a base64 data URI.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var (
		name string
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		name, err = s.uploadDataURI(r)
	} else {
		name, err = s.uploadMultipart(r)
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		slog.Error("Error uploading receipt", "error", err)
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"file": name})
}

func (s *Server) uploadDataURI(r *http.Request) (string, error) {
	var req dataURIUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", fmt.Errorf("decoding request body: %w", err)
	}
	return s.service.UploadDataURI(req.Filename, req.ImageData)
}

func (s *Server) uploadMultipart(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", fmt.Errorf("parsing form: %w", err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("no file provided: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return s.service.Upload(header.Filename, data)
}

// scanResponse is the result of a triggered scan
type scanResponse struct {
	Count        int               `json:"count"`
	Appended     int               `json:"appended"`
	Scanned      int               `json:"scanned"`
	Skipped      int               `json:"skipped"`
	Failed       []string          `json:"failed"`
	Records      []receipt.Receipt `json:"records"`
	PersistError string            `json:"persist_error,omitempty"`
}

// handleScan runs a scan over the inbox and reports what it found. The
// parsed receipts are returned even when the ledger could not be saved.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result := s.service.Scan()
	resp := scanResponse{
		Count:    len(result.Records),
		Appended: result.Appended,
		Scanned:  result.Scanned,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Records:  result.Records,
	}
	if result.PersistErr != nil {
		resp.PersistError = result.PersistErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMatch finds the receipt for a bank debit:
// /api/match?amount=12,53&store=REWE&date=2024-03-02
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var date *time.Time
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &d
	}

	match := s.matcher.FindMatchText(q.Get("amount"), q.Get("store"), date)
	if match == nil {
		writeError(w, "No matching receipt", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// report builds the expense report for the month in the query, or the
// current month
func (s *Server) report(w http.ResponseWriter, r *http.Request) (*bank.Report, bool) {
	if s.reporter == nil {
		writeError(w, "No bank statement configured", http.StatusServiceUnavailable)
		return nil, false
	}

	month := time.Now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := bank.ParseMonth(raw)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		month = m
	}

	report, err := s.reporter.Monthly(r.Context(), month)
	if err != nil {
		slog.Error("Error building expense report", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return report, true
}

// handleExpenses returns the monthly expense report as JSON
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExpensesXLSX returns the monthly expense report as a workbook
func (s *Server) handleExpensesXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="expenses-%s.xlsx"`, report.Month))
	if err := bank.WriteXLSX(w, report); err != nil {
		slog.Error("Error writing expense workbook", "month", report.Month, "error", err)
	}
}
