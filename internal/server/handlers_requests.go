package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beroe-labs/abi/internal/ledger"
	"github.com/beroe-labs/abi/internal/model"
)

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.ledger.ListRequests(r.Context(), currentUser(r).CompanyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// handleCreateRequest drafts a request and, unless the caller asks to keep
// it as a draft, submits it for approval in the same call.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ledger.RequestInput
		Draft bool `json:"draft"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user := currentUser(r)
	in.AccountID = user.CompanyID

	req, err := s.ledger.CreateDraft(r.Context(), in.RequestInput, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !in.Draft {
		req, err = s.ledger.Submit(r.Context(), req.ID, user.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.ledger.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Requests are scoped to the caller's account.
	if req.Request.AccountID != currentUser(r).CompanyID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Action string `json:"action"`
		Note   string `json:"note"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id := chi.URLParam(r, "id")
	user := currentUser(r)

	existing, err := s.ledger.GetRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if existing.Request.AccountID != user.CompanyID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var updated *model.UpgradeRequest
	switch in.Action {
	case "submit":
		updated, err = s.ledger.Submit(r.Context(), id, user.ID)
	case "approve":
		updated, err = s.ledger.Approve(r.Context(), id, *user, in.Note)
	case "deny":
		updated, err = s.ledger.Deny(r.Context(), id, *user, in.Reason)
	case "cancel":
		updated, err = s.ledger.Cancel(r.Context(), id, user.ID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
