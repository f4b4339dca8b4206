package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/finch/internal/models"
	"github.com/bobmcallan/finch/internal/services/export"
	"github.com/bobmcallan/finch/internal/services/history"
	"github.com/bobmcallan/finch/internal/services/importer"
)

// handleHistoryChart renders the reconstructed balance series as a PNG.
func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req historyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	today := models.Today()
	window, preset, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, account, _, err := s.historySeries(r.Context(), req.Tokens, req.AccountID, window, preset, today)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("History reconstruction failed: %v", err))
		return
	}

	png, err := history.RenderHistoryChart(account.Name, series)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Chart render failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

type exportRequest struct {
	windowRequest
	Tokens    []tokenSelection `json:"tokens"`
	AccountID string           `json:"account_id,omitempty"` // required for OFX
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req exportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tokens) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one credential token is required")
		return
	}

	today := models.Today()
	window, _, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.fetchSelection(r.Context(), req.Tokens, window)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Transaction fetch failed: %v", err))
		return
	}

	data, err := export.CSV(result.Transactions)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("CSV export failed: %v", err))
		return
	}

	writeDownload(w, export.Filename(window, "csv"), "text/csv; charset=utf-8", data)
}

func (s *Server) handleExportOFX(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req exportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required for OFX export")
		return
	}

	today := models.Today()
	window, _, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens := make([]string, 0, len(req.Tokens))
	for _, sel := range req.Tokens {
		tokens = append(tokens, sel.Token)
	}

	detail, err := s.resolveAccount(r.Context(), tokens, req.AccountID, window, false)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Account lookup failed: %v", err))
		return
	}

	data, err := export.OFX(detail.Account, detail.Transactions, window, time.Now())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("OFX export failed: %v", err))
		return
	}

	writeDownload(w, export.Filename(window, "ofx"), "application/x-ofx", data)
}

func writeDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// maxImportSize bounds uploaded statement files.
const maxImportSize = 8 << 20 // 8MB

// handleImport accepts a multipart CSV statement and stores it as a
// session-scoped pseudo-account. Any bad row aborts the whole import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "A statement file is required (field \"file\")")
		return
	}
	defer file.Close()

	stmt, err := importer.ParseStatement(file, r.FormValue("name"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}

	if err := s.app.Storage.SessionStore().PutImport(r.Context(), stmt); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to store import: %v", err))
		return
	}

	s.hub.broadcast("statement_imported", map[string]interface{}{
		"token":   stmt.Token,
		"account": stmt.Account.Name,
		"count":   len(stmt.Transactions),
	})

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":        stmt.Token,
		"account":      stmt.Account,
		"transactions": len(stmt.Transactions),
	})
}
