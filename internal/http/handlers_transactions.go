package http

import (
	"net/http"

	"flota/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.fleet.GetVehicle(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.fleet.ListTransactions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.fleet.RecordTransaction(r.Context(), req.transaction(r.PathValue("id"), s.fleet.Today()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var patch transactionPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.fleet.EditTransaction(r.Context(), r.PathValue("id"), patch.edit())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.fleet.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
