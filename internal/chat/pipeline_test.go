package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/evidence"
	"github.com/beroe-labs/abi/internal/kvstore"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/synthesis"
	"github.com/beroe-labs/abi/pkg/gemini"
	"github.com/beroe-labs/abi/pkg/perplexity"
)

type staticIntel struct {
	portfolio model.Portfolio
	suppliers []model.Supplier
	changes   []model.RiskChange
}

func (s *staticIntel) Portfolio(context.Context) (*model.Portfolio, error) {
	p := s.portfolio
	return &p, nil
}

func (s *staticIntel) Suppliers(context.Context) ([]model.Supplier, error) {
	return s.suppliers, nil
}

func (s *staticIntel) RiskChanges(context.Context, time.Duration) ([]model.RiskChange, error) {
	return s.changes, nil
}

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) GenerateContent(context.Context, gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gemini.GenerateResponse{
		Candidates: []gemini.Candidate{
			{Content: gemini.Content{Parts: []gemini.Part{{Text: f.reply}}}},
		},
	}, nil
}

type fakeResearch struct {
	resp  *perplexity.ChatCompletionResponse
	err   error
	calls int
}

func (f *fakeResearch) ChatCompletion(context.Context, perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func ratedSupplier(id, name, category string, score float64) model.Supplier {
	return model.Supplier{
		ID:       id,
		Name:     name,
		Category: category,
		Region:   "EMEA",
		Spend:    1_500_000,
		Risk:     &model.RiskBlock{Score: score, Level: model.LevelForScore(score)},
	}
}

func testIntel() *staticIntel {
	suppliers := []model.Supplier{
		ratedSupplier("s-acme", "Acme Corp", "Electronics", 72),
		ratedSupplier("s-volt", "Volt Components", "Electronics", 41),
		ratedSupplier("s-circuit", "Circuit Labs", "Electronics", 55),
	}
	for i := 0; i < 10; i++ {
		suppliers = append(suppliers, model.Supplier{
			ID:       fmt.Sprintf("s-unrated-%d", i),
			Name:     fmt.Sprintf("Unrated Co %d", i),
			Category: "Packaging",
			Region:   "APAC",
			Spend:    200_000,
			Risk:     &model.RiskBlock{Level: model.RiskUnrated},
		})
	}
	return &staticIntel{
		portfolio: model.Portfolio{
			TotalSuppliers: 25,
			TotalSpend:     48_000_000,
			Distribution: model.RiskDistribution{
				High: 3, MediumHigh: 2, Medium: 10, Low: 5, Unrated: 5,
			},
		},
		suppliers: suppliers,
	}
}

func newTestPipeline(t *testing.T, synth *fakeModel, opts ...Option) *Pipeline {
	t.Helper()
	fetcher := evidence.NewFetcher(testIntel(), kvstore.NewMemory())
	return NewPipeline(fetcher, synthesis.NewSynthesizer(synth, ""), opts...)
}

func citationsResolve(t *testing.T, env model.ResponseEnvelope) {
	t.Helper()
	for _, m := range model.CitationPattern.FindAllString(env.Narrative, -1) {
		id := m[1 : len(m)-1]
		assert.True(t, env.Sources.Has(id), "token %s has no source", m)
	}
}

func TestRespondPortfolioOverview(t *testing.T) {
	synth := &fakeModel{}
	p := newTestPipeline(t, synth)

	env := p.Respond(context.Background(), Request{Query: "show my risk overview"})

	assert.Equal(t, model.IntentPortfolioOverview, env.Intent.Category)
	assert.Equal(t, model.SubOverallSummary, env.Intent.SubIntent)
	assert.Equal(t, model.ProviderGemini, env.Provider)
	assert.Zero(t, synth.calls, "internal-only turns skip the synthesis model")
	assert.NotEmpty(t, env.Narrative)
	assert.NotEmpty(t, env.Acknowledgement)
	assert.NotEmpty(t, env.ID)
	citationsResolve(t, env)

	require.NotNil(t, env.Widget)
	require.Equal(t, model.WidgetRiskDistribution, env.Widget.Type)
	var data model.DistributionData
	require.NoError(t, json.Unmarshal(env.Widget.Data, &data))
	assert.Equal(t, 25, data.Total)
	counted := 0
	for _, row := range data.Rows {
		counted += row.Count
	}
	assert.Equal(t, 25, counted)
}

func TestRespondUnratedExplanation(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{})

	env := p.Respond(context.Background(), Request{Query: "why are 10 suppliers unrated?"})

	assert.Equal(t, model.IntentExplanationWhy, env.Intent.Category)
	assert.Equal(t, model.SubUnratedWhy, env.Intent.SubIntent)
	assert.Contains(t, env.Narrative, "10 unrated")

	require.NotNil(t, env.Widget)
	require.Equal(t, model.WidgetSupplierTable, env.Widget.Type)
	var data model.TableData
	require.NoError(t, json.Unmarshal(env.Widget.Data, &data))
	require.Len(t, data.Rows, 10)
	for _, row := range data.Rows {
		assert.Equal(t, model.RiskUnrated, row.RiskLevel)
	}
}

func TestRespondFindAlternatives(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{})

	env := p.Respond(context.Background(), Request{Query: "find alternatives for Acme Corp"})

	assert.Equal(t, model.IntentActionTrigger, env.Intent.Category)
	assert.Equal(t, model.SubFindAlternatives, env.Intent.SubIntent)

	require.NotNil(t, env.Widget)
	require.Equal(t, model.WidgetAlternativesPreview, env.Widget.Type)
	var data model.AlternativesData
	require.NoError(t, json.Unmarshal(env.Widget.Data, &data))
	assert.Equal(t, "Acme Corp", data.Target)
	require.Len(t, data.Alternatives, 2)
	for _, alt := range data.Alternatives {
		assert.NotEqual(t, "s-acme", alt.SupplierID)
		assert.LessOrEqual(t, alt.MatchScore, 98)
	}
	assert.Equal(t, "Volt Components", data.Alternatives[0].Name, "lowest risk first")
}

func TestRespondReportHandoff(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{})

	env := p.Respond(context.Background(), Request{Query: "request a full report on electronics"})

	assert.Equal(t, model.SubRequestReport, env.Intent.SubIntent)
	assert.True(t, env.Intent.RequiresHandoff)
	assert.Nil(t, env.Widget)
	require.NotNil(t, env.Handoff)
	assert.NotEmpty(t, env.Handoff.Reason)
	assert.NotEmpty(t, env.Handoff.LinkLabel)
}

func TestRespondResearchModelFailureFallsBackLocal(t *testing.T) {
	research := &fakeResearch{
		resp: &perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{
				Content: "Steel prices in Europe rose 4% this month on tightening capacity [1][2].",
			}}},
			SearchResults: []perplexity.SearchResult{
				{URL: "https://example.com/steel", Title: "Steel Market Update", Snippet: "European steel prices climbed."},
				{URL: "https://example.com/capacity", Title: "Capacity Watch", Snippet: "Mill capacity tightened in Q3."},
			},
		},
	}
	synth := &fakeModel{err: eris.New("model unavailable")}
	p := newTestPipeline(t, synth, WithResearch(research, "sonar-pro"))

	env := p.Respond(context.Background(), Request{Query: "what's the latest market news for steel?"})

	assert.Equal(t, model.IntentMarketContext, env.Intent.Category)
	assert.Equal(t, 1, research.calls)
	assert.Equal(t, model.ProviderLocal, env.Provider, "model failure degrades, never errors")
	assert.GreaterOrEqual(t, len(env.Narrative), 400)
	assert.Equal(t, 2, env.Sources.TotalWebCount)
	citationsResolve(t, env)

	require.NotNil(t, env.Widget)
	assert.Equal(t, model.WidgetMarketSnapshot, env.Widget.Type)
	var data model.MarketSnapshotData
	require.NoError(t, json.Unmarshal(env.Widget.Data, &data))
	assert.Equal(t, "steel", data.Commodity)
	assert.NotEmpty(t, data.Summary)
}

func TestRespondHybridSynthesis(t *testing.T) {
	narrative := "European steel markets are tightening as mill capacity comes offline [B1]. " +
		"Beroe category intelligence shows sustained upward pressure on hot-rolled coil pricing " +
		"across EMEA, driven by energy costs and constrained scrap availability [B1]. " +
		"Web research corroborates the internal view: prices rose roughly four percent this month " +
		"with regional capacity utilization above ninety percent [W1]. Buyers should expect " +
		"continued firmness through the next quarter and consider forward coverage where " +
		"contract structures allow, as both internal and external sources point the same direction [W2]."
	reply, err := json.Marshal(map[string]string{
		"content":        narrative,
		"agreementLevel": "high",
		"keyInsight":     "Internal and web sources agree on continued price firmness.",
	})
	require.NoError(t, err)

	research := &fakeResearch{
		resp: &perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{
				Content: "Steel prices rose 4% [1][2].",
			}}},
			SearchResults: []perplexity.SearchResult{
				{URL: "https://example.com/steel", Title: "Steel Market Update"},
				{URL: "https://example.com/capacity", Title: "Capacity Watch"},
			},
		},
	}
	synth := &fakeModel{reply: string(reply)}
	p := newTestPipeline(t, synth, WithResearch(research, "sonar-pro"))

	env := p.Respond(context.Background(), Request{Query: "what's the latest market news for steel?"})

	assert.Equal(t, model.ProviderHybrid, env.Provider)
	assert.Equal(t, 1, synth.calls)
	assert.Contains(t, env.Narrative, "[B1]")
	assert.Contains(t, env.Narrative, "[W1]")
	assert.Equal(t, "Internal and web sources agree on continued price firmness.", env.Insight)
	citationsResolve(t, env)
}

func TestRespondConversationOrdering(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{})
	ctx := context.Background()

	done := make(chan model.ResponseEnvelope, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- p.Respond(ctx, Request{Query: "show my risk overview", ConversationID: "conv-1"})
		}()
	}
	for i := 0; i < 2; i++ {
		env := <-done
		assert.NotEmpty(t, env.Narrative)
	}
}
