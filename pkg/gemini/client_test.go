package gemini

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

func TestGenerateContent(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  string
		wantText string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"content\": \"ok\"}"}]}, "finishReason": "STOP"}]
			}`,
			wantText: `{"content": "ok"}`,
		},
		{
			name:     "empty_candidates",
			status:   http.StatusOK,
			body:     `{"candidates": []}`,
			wantText: "",
		},
		{
			name:    "server_error",
			status:  http.StatusInternalServerError,
			body:    `{"error": "boom"}`,
			wantErr: "unexpected status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))

				raw, _ := io.ReadAll(r.Body)
				var req map[string]any
				require.NoError(t, json.Unmarshal(raw, &req))
				genCfg := req["generationConfig"].(map[string]any)
				assert.Equal(t, "application/json", genCfg["responseMimeType"])

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))

			resp, err := client.GenerateContent(context.Background(), GenerateRequest{
				Contents: []Content{{Role: "user", Parts: []Part{{Text: "synthesize"}}}},
				GenerationConfig: GenerationConfig{
					Temperature:      0.3,
					ResponseMimeType: "application/json",
				},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text())
		})
	}
}
