package respond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/model"
)

func portfolioIntent() model.DetectedIntent {
	return model.DetectedIntent{
		Category:     model.IntentPortfolioOverview,
		SubIntent:    model.SubOverallSummary,
		Confidence:   0.85,
		ResponseType: model.ResponseWidget,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		obj      map[string]any
		wantErrs int
	}{
		{
			name: "complete",
			obj: map[string]any{
				"id":              "r-1",
				"acknowledgement": "Here's your portfolio risk overview.",
				"narrative":       "All quiet.",
				"provider":        "hybrid",
			},
			wantErrs: 0,
		},
		{
			name:     "nil_object",
			obj:      nil,
			wantErrs: 1,
		},
		{
			name: "missing_fields_and_bad_provider",
			obj: map[string]any{
				"provider": "chatgpt",
			},
			wantErrs: 4,
		},
		{
			name: "widget_without_type",
			obj: map[string]any{
				"id":              "r-1",
				"acknowledgement": "ok",
				"narrative":       "text",
				"provider":        "local",
				"widget":          map[string]any{"data": map[string]any{}},
			},
			wantErrs: 1,
		},
		{
			name: "suggestions_not_array",
			obj: map[string]any{
				"id":              "r-1",
				"acknowledgement": "ok",
				"narrative":       "text",
				"provider":        "local",
				"suggestions":     "just one",
			},
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Validate(tt.obj), tt.wantErrs)
		})
	}
}

func TestRepairFillsDefaults(t *testing.T) {
	env, report := ValidateAndRepair(map[string]any{}, portfolioIntent(), nil)

	assert.False(t, report.Valid)
	assert.True(t, report.Repaired)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "Here's your portfolio risk overview.", env.Acknowledgement)
	assert.NotEmpty(t, env.Narrative)
	assert.Equal(t, model.ProviderLocal, env.Provider)
	assert.Len(t, env.Suggestions, 3)
}

func TestRepairUsesContentFallback(t *testing.T) {
	env, _ := ValidateAndRepair(map[string]any{
		"content": "Narrative hiding under the legacy key.",
	}, portfolioIntent(), nil)

	assert.Equal(t, "Narrative hiding under the legacy key.", env.Narrative)
}

func TestRepairDropsInvalidWidget(t *testing.T) {
	env, report := ValidateAndRepair(map[string]any{
		"id":              "r-1",
		"acknowledgement": "ok",
		"narrative":       "text",
		"provider":        "local",
		"suggestions":     []any{"a", "b"},
		"widget":          map[string]any{"type": "hologram"},
	}, portfolioIntent(), nil)

	assert.Nil(t, env.Widget)
	assert.True(t, report.Repaired)
}

func TestRepairStripsUnsourcedCitations(t *testing.T) {
	env, _ := ValidateAndRepair(map[string]any{
		"id":              "r-1",
		"acknowledgement": "ok",
		"narrative":       "Risk is up [B1] per forecasts [W4].",
		"provider":        "hybrid",
		"suggestions":     []any{"a"},
		"sources": map[string]any{
			"internal": []any{map[string]any{"id": "B1", "name": "Risk Summary"}},
		},
	}, portfolioIntent(), nil)

	assert.Contains(t, env.Narrative, "[B1]")
	assert.NotContains(t, env.Narrative, "[W4]")
}

func TestNormalizeFlatSources(t *testing.T) {
	env, _ := ValidateAndRepair(map[string]any{
		"sources": []any{
			map[string]any{"title": "Steel Outlook", "url": "https://example.com/steel"},
			map[string]any{"title": "Portfolio Risk Summary", "type": "report"},
			map[string]any{"title": "Freight Weekly", "url": "https://example.com/freight"},
		},
	}, portfolioIntent(), nil)

	require.Len(t, env.Sources.Web, 2)
	require.Len(t, env.Sources.Internal, 1)
	assert.Equal(t, "W1", env.Sources.Web[0].ID)
	assert.Equal(t, "W2", env.Sources.Web[1].ID)
	assert.Equal(t, "B1", env.Sources.Internal[0].ID)
	assert.Equal(t, "report", env.Sources.Internal[0].Category)
	assert.Equal(t, 2, env.Sources.TotalWebCount)
	assert.Equal(t, 1, env.Sources.TotalInternalCount)
}

func TestSourceConfidence(t *testing.T) {
	cats := []model.ManagedCategory{
		{ID: "c1", Name: "Steel", Active: true, Coverage: model.CoverageFlags{SupplierData: true}},
		{ID: "c2", Name: "Resins", Active: true},
		{ID: "c3", Name: "Packaging", Active: false},
	}

	intent := portfolioIntent()
	intent.Entities.Category = "Steel"
	env, _ := ValidateAndRepair(map[string]any{}, intent, cats)
	assert.Equal(t, "high", env.Sources.Confidence)

	intent.Entities.Category = "Resins"
	env, _ = ValidateAndRepair(map[string]any{}, intent, cats)
	assert.Equal(t, "medium", env.Sources.Confidence)

	intent.Entities.Category = "Packaging"
	env, _ = ValidateAndRepair(map[string]any{}, intent, cats)
	assert.Equal(t, "low", env.Sources.Confidence)

	intent.Entities.Category = ""
	env, _ = ValidateAndRepair(map[string]any{}, intent, cats)
	assert.Empty(t, env.Sources.Confidence)
}

func TestValidateAndRepairIdempotent(t *testing.T) {
	first, report := ValidateAndRepair(map[string]any{
		"narrative": "Portfolio risk is stable.",
	}, portfolioIntent(), nil)
	require.True(t, report.Repaired)

	second, report2 := ValidateAndRepair(FromEnvelope(first), portfolioIntent(), nil)
	assert.True(t, report2.Valid)
	assert.False(t, report2.Repaired)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Narrative, second.Narrative)
	assert.Equal(t, first.Suggestions, second.Suggestions)
}
