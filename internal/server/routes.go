package server

import "net/http"

// registerRoutes wires all REST endpoints.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Institution linking
	mux.HandleFunc("/api/link/token", s.handleLinkToken)
	mux.HandleFunc("/api/link/exchange", s.handleLinkExchange)
	mux.HandleFunc("/api/items/remove", s.handleItemRemove)

	// Account data
	mux.HandleFunc("/api/balances", s.handleBalances)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/accounts/detail", s.handleAccountDetail)

	// Derived views
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/chart.png", s.handleHistoryChart)
	mux.HandleFunc("/api/spending", s.handleSpending)
	mux.HandleFunc("/api/spending/summary", s.handleSpendingSummary)

	// Exports
	mux.HandleFunc("/api/export/csv", s.handleExportCSV)
	mux.HandleFunc("/api/export/ofx", s.handleExportOFX)

	// Statement import
	mux.HandleFunc("/api/import", s.handleImport)

	// Live refresh events
	mux.HandleFunc("/api/ws", s.hub.handleWS)
}
