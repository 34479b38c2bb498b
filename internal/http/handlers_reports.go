package http

import (
	"net/http"

	"flota/internal/report"
	"flota/internal/services"
)

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	today, err := dateParam(r, s.fleet.Today())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	alerts, err := s.fleet.Alerts(r.Context(), today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []services.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.fleet.Summary(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdvisor(w) {
		return
	}
	snap, err := s.fleet.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	analysis, err := s.advisor.AnalyzeFleet(r.Context(), snap.Vehicles, snap.Transactions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.fleet.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvHeaders(w, "Reporte_Global_"+s.fleet.Today().String()+".csv")
	if err := report.WriteCSV(w, report.GlobalSummary(snap.Vehicles, snap.Transactions)...); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to write CSV", "error", err)
	}
}

func (s *Server) handleExportVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := s.fleet.GetVehicle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.fleet.ListTransactions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvHeaders(w, "Reporte_"+v.Plate+"_"+s.fleet.Today().String()+".csv")
	if err := report.WriteCSV(w, report.VehicleHistory(v, txs)); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to write CSV", "error", err)
	}
}
