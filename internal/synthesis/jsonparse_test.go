package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOK      bool
		wantContent string
		wantLevel   string
	}{
		{
			name:        "direct",
			raw:         `{"content": "Prices rose [B1].", "agreementLevel": "high"}`,
			wantOK:      true,
			wantContent: "Prices rose [B1].",
			wantLevel:   "high",
		},
		{
			name: "fenced",
			raw: "```json\n" +
				`{"content": "Prices rose [B1].", "agreementLevel": "medium"}` +
				"\n```",
			wantOK:      true,
			wantContent: "Prices rose [B1].",
			wantLevel:   "medium",
		},
		{
			name:        "trailing_text",
			raw:         `{"content": "Prices rose [B1]."} I hope that helps!`,
			wantOK:      true,
			wantContent: "Prices rose [B1].",
		},
		{
			name:        "multiline_escapes",
			raw:         `{"content": "Line one [B1].\nLine \"two\" [W1].", "agreementLevel": "low"}`,
			wantOK:      true,
			wantContent: "Line one [B1].\nLine \"two\" [W1].",
			wantLevel:   "low",
		},
		{
			name:        "broken_json_content_extractable",
			raw:         `{"content": "Recovered narrative [B2].", "agreementLevel": high}`,
			wantOK:      true,
			wantContent: "Recovered narrative [B2].",
		},
		{
			name:        "plain_narrative_with_markers",
			raw:         "Supply risk is elevated in Asia [B1] while freight rates ease [W2].",
			wantOK:      true,
			wantContent: "Supply risk is elevated in Asia [B1] while freight rates ease [W2].",
		},
		{
			name:   "plain_narrative_without_markers",
			raw:    "I could not produce an answer.",
			wantOK: false,
		},
		{
			name:   "empty",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, ok := ParseJSONResponse(tt.raw)
			if !tt.wantOK {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantContent, reply.Content)
			if tt.wantLevel != "" {
				assert.Equal(t, tt.wantLevel, reply.AgreementLevel)
			}
		})
	}
}

func TestBalancedObject(t *testing.T) {
	slice, ok := balancedObject(`noise {"a": "b {not a brace}"} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "b {not a brace}"}`, slice)

	_, ok = balancedObject("no braces at all")
	assert.False(t, ok)

	_, ok = balancedObject(`{"unterminated": "value`)
	assert.False(t, ok)
}
