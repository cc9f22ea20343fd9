package server

import (
	"net/http"
	"strings"

	"github.com/beroe-labs/abi/internal/chat"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Query          string         `json:"query"`
		ConversationID string         `json:"conversationId"`
		History        []chat.Message `json:"history"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(in.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	env := s.chat.Respond(r.Context(), chat.Request{
		Query:          in.Query,
		ConversationID: in.ConversationID,
		History:        in.History,
	})
	writeJSON(w, http.StatusOK, env)
}
