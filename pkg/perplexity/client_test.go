package perplexity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantContent   string
		wantCitations []string
	}{
		{
			name:   "success_with_citations",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"citations": ["https://a.example/x", "https://b.example/y"],
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Steel prices rose.", "citations": ["https://b.example/y", "https://c.example/z"]}}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5}
			}`,
			wantContent:   "Steel prices rose.",
			wantCitations: []string{"https://a.example/x", "https://b.example/y", "https://c.example/z"},
		},
		{
			name:    "rate_limit",
			status:  http.StatusTooManyRequests,
			body:    `{"error": "rate limit exceeded"}`,
			wantErr: "unexpected status 429",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				raw, _ := io.ReadAll(r.Body)
				var req map[string]any
				require.NoError(t, json.Unmarshal(raw, &req))
				assert.Equal(t, true, req["return_citations"])
				assert.Equal(t, "month", req["search_recency_filter"])

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))

			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages:            []Message{{Role: "user", Content: "steel news"}},
				ReturnCitations:     true,
				SearchRecencyFilter: "month",
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, resp.Content())
			assert.Equal(t, tt.wantCitations, resp.AllCitations())
		})
	}
}

func TestSearchResultExcerpt(t *testing.T) {
	assert.Equal(t, "new", SearchResult{Text: "old", Snippet: "new"}.Excerpt())
	assert.Equal(t, "old", SearchResult{Text: "old"}.Excerpt())
}
