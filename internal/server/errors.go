package server

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/auth"
	"github.com/beroe-labs/abi/internal/interests"
	"github.com/beroe-labs/abi/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain sentinels onto the HTTP status contract:
// validation failures 400, auth failures 401, permission failures 403,
// missing records 404, state conflicts 409. Anything unexpected is a 500
// with a generic body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case eris.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session expired")
	case eris.Is(err, ledger.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case eris.Is(err, auth.ErrReservedUsername),
		eris.Is(err, auth.ErrWeakPassword),
		eris.Is(err, auth.ErrInvalidInvite),
		eris.Is(err, interests.ErrDuplicate),
		eris.Is(err, interests.ErrOverCap),
		eris.Is(err, interests.ErrEmptyText):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	case eris.Is(err, auth.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case eris.Is(err, ledger.ErrConflict),
		eris.Is(err, ledger.ErrInvalidTransition),
		eris.Is(err, ledger.ErrInsufficientCredits):
		writeError(w, http.StatusConflict, rootMessage(err))
	case eris.Is(err, auth.ErrNotFound),
		eris.Is(err, ledger.ErrNotFound),
		eris.Is(err, interests.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		zap.L().Error("server: unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rootMessage surfaces the sentinel's stable message without the wrap chain.
func rootMessage(err error) string {
	if cause := eris.Cause(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
