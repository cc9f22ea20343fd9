package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beroe-labs/abi/internal/interests"
)

func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	list := s.interests.List(r.Context(), currentUser(r).ID)
	writeJSON(w, http.StatusOK, map[string]any{"interests": list})
}

func (s *Server) handleAddInterest(w http.ResponseWriter, r *http.Request) {
	var in interests.AddInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	interest, err := s.interests.Add(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, interest)
}

func (s *Server) handleUpdateInterest(w http.ResponseWriter, r *http.Request) {
	var in interests.AddInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	interest, err := s.interests.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interest)
}

func (s *Server) handleRemoveInterest(w http.ResponseWriter, r *http.Request) {
	if err := s.interests.Remove(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
