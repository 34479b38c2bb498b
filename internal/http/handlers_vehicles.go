package http

import (
	"net/http"
	"strings"

	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/services"
)

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	if plate := strings.TrimSpace(r.URL.Query().Get("plate")); plate != "" {
		v, err := s.fleet.FindByPlate(r.Context(), plate)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []core.Vehicle{v})
		return
	}
	vehicles, err := s.fleet.ListVehicles(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []core.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.fleet.GetVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var v core.Vehicle
	if err := decodeJSON(w, r, &v, false); err != nil {
		s.fail(w, r, err)
		return
	}
	v.Nickname = sanitizeInput(v.Nickname)
	v.Driver.Name = sanitizeInput(v.Driver.Name)
	v.Driver.Address = sanitizeInput(v.Driver.Address)

	created, err := s.fleet.RegisterVehicle(r.Context(), v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/vehicles/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateOdometer(w http.ResponseWriter, r *http.Request) {
	var req odometerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Km == nil {
		writeError(w, http.StatusBadRequest, "km is required")
		return
	}
	v, err := s.fleet.UpdateOdometer(r.Context(), r.PathValue("id"), *req.Km)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateDocuments(w http.ResponseWriter, r *http.Request) {
	var docs core.Documents
	if err := decodeJSON(w, r, &docs, false); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.fleet.UpdateDocuments(r.Context(), r.PathValue("id"), docs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateDriver(w http.ResponseWriter, r *http.Request) {
	var d core.Driver
	if err := decodeJSON(w, r, &d, false); err != nil {
		s.fail(w, r, err)
		return
	}
	d.Name = sanitizeInput(d.Name)
	d.Address = sanitizeInput(d.Address)
	v, err := s.fleet.UpdateDriver(r.Context(), r.PathValue("id"), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	cat, err := core.ParseCategory(r.PathValue("category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.fleet.SetManualOverride(r.Context(), r.PathValue("id"), cat, req.Date, req.Km)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type maintenanceResponse struct {
	services.VehicleReport
	Level services.Level `json:"level"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	today, err := dateParam(r, s.fleet.Today())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.fleet.MaintenanceReport(r.Context(), r.PathValue("id"), today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, maintenanceResponse{VehicleReport: report, Level: report.Level()})
}

// handleSuggestions applies the posted suggestions, or asks the advisor for
// them when the body carries none.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	suggestions := req.Suggestions
	if len(suggestions) == 0 {
		if !s.requireAdvisor(w) {
			return
		}
		v, err := s.fleet.GetVehicle(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		suggestions, err = s.advisor.SuggestMaintenance(r.Context(), v.Brand, v.Model, v.Year, v.CurrentOdometer)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}

	v, err := s.fleet.ApplySuggestions(r.Context(), id, suggestions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Suggestions applied",
		applog.FieldVehicleID, v.ID,
		"suggestions", len(suggestions))
	writeJSON(w, http.StatusOK, struct {
		Vehicle     core.Vehicle      `json:"vehicle"`
		Suggestions []core.Suggestion `json:"suggestions"`
	}{v, suggestions})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdvisor(w) {
		return
	}
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
	advice, err := s.advisor.VehicleAdvice(r.Context(), v, txs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}
