package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beroe-labs/abi/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantCategory model.IntentCategory
		wantSub      model.SubIntent
	}{
		{
			name:         "risk_overview",
			query:        "show my risk overview",
			wantCategory: model.IntentPortfolioOverview,
			wantSub:      model.SubOverallSummary,
		},
		{
			name:         "spend_weighted",
			query:        "what is my spend exposure across the portfolio",
			wantCategory: model.IntentPortfolioOverview,
			wantSub:      model.SubSpendWeighted,
		},
		{
			name:         "by_dimension",
			query:        "risk breakdown by category please",
			wantCategory: model.IntentPortfolioOverview,
			wantSub:      model.SubByDimension,
		},
		{
			name:         "unrated_why",
			query:        "why are 10 suppliers unrated?",
			wantCategory: model.IntentExplanationWhy,
			wantSub:      model.SubUnratedWhy,
		},
		{
			name:         "find_alternatives",
			query:        "find alternatives for Acme Corp",
			wantCategory: model.IntentActionTrigger,
			wantSub:      model.SubFindAlternatives,
		},
		{
			name:         "deep_dive",
			query:        "tell me about Acme Corp",
			wantCategory: model.IntentSupplierDeepDive,
			wantSub:      model.SubProfileLookup,
		},
		{
			name:         "comparison",
			query:        "compare Acme Corp vs Globex",
			wantCategory: model.IntentComparison,
		},
		{
			name:         "filtered_discovery",
			query:        "show all high risk suppliers in my portfolio",
			wantCategory: model.IntentFilteredDiscovery,
		},
		{
			name:         "cost_inflation",
			query:        "what is the steel price outlook for next quarter",
			wantCategory: model.IntentCostInflation,
			wantSub:      model.SubPriceOutlook,
		},
		{
			name:         "market_context",
			query:        "what's happening in the semiconductor market this month",
			wantCategory: model.IntentMarketContext,
			wantSub:      model.SubNewsEvents,
		},
		{
			name:         "general_fallback",
			query:        "hello there",
			wantCategory: model.IntentGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.wantCategory, got.Category)
			if tt.wantSub != model.SubNone {
				assert.Equal(t, tt.wantSub, got.SubIntent)
			}
		})
	}
}

// A market-sounding query without any risk signal must never be classified
// as a portfolio overview.
func TestClassifyMarketGuard(t *testing.T) {
	got := Classify("give me a commodity price overview")
	assert.NotEqual(t, model.IntentPortfolioOverview, got.Category)
}

func TestClassifyDeterministic(t *testing.T) {
	a := Classify("find alternatives for Acme Corp")
	b := Classify("find alternatives for Acme Corp")
	assert.Equal(t, a, b)
}

func TestClassifyConfidence(t *testing.T) {
	assert.Equal(t, 0.85, Classify("show my risk overview").Confidence)
	assert.Equal(t, 0.5, Classify("hello there").Confidence)
}

func TestClassifyEntities(t *testing.T) {
	got := Classify("find alternatives for Acme Corp")
	assert.Equal(t, "Acme Corp", got.Entities.SupplierName)

	got = Classify("show high risk suppliers in Asia")
	assert.Equal(t, model.RiskHigh, got.Entities.RiskLevel)
	assert.Equal(t, "asia", got.Entities.Region)

	got = Classify("copper price outlook")
	assert.Equal(t, "copper", got.Entities.Commodity)
	assert.False(t, got.RequiresResearch, "price queries prefer internal data")
}

func TestClassifyResearchTrigger(t *testing.T) {
	got := Classify("latest news on supply chain disruptions")
	assert.True(t, got.RequiresResearch)
}

func TestClassifyHandoff(t *testing.T) {
	got := Classify("request a market report for packaging")
	assert.Equal(t, model.IntentActionTrigger, got.Category)
	assert.Equal(t, model.SubRequestReport, got.SubIntent)
	assert.True(t, got.RequiresHandoff)
	assert.Equal(t, model.ResponseHandoff, got.ResponseType)
}
