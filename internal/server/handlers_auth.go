package server

import (
	"encoding/json"
	"net/http"

	"github.com/beroe-labs/abi/internal/auth"
	"github.com/beroe-labs/abi/internal/security"
)

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil || in.Username == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	session, user, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, _, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &in); err != nil || in.Code == "" {
		writeError(w, http.StatusBadRequest, "verification code required")
		return
	}

	if err := s.auth.VerifyEmail(r.Context(), in.Code); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		_ = s.auth.Logout(r.Context(), cookie.Value)
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateInvite equivocates: unknown and used codes both answer
// {valid: false} after uniform timing noise, so the endpoint cannot be used
// to probe the invite space.
func (s *Server) handleValidateInvite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	security.AddTimingNoise(inviteNoiseMin, inviteNoiseMax)

	_, err := s.auth.ValidateInvite(r.Context(), in.Code)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": err == nil})
}

func (s *Server) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.auth.JoinWaitlist(r.Context(), in.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
