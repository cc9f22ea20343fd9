// Package chat orchestrates one conversational turn: classify, route, fetch
// evidence and optional web research in parallel, synthesize, attach the
// routed widget, and normalize the reply through the validator. The pipeline
// never returns an error to the caller; every failure mode degrades to a
// local-provider envelope.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beroe-labs/abi/internal/evidence"
	"github.com/beroe-labs/abi/internal/intent"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/respond"
	"github.com/beroe-labs/abi/internal/router"
	"github.com/beroe-labs/abi/internal/synthesis"
	"github.com/beroe-labs/abi/internal/widgets"
	"github.com/beroe-labs/abi/pkg/perplexity"
)

// researchRecency bounds how old web research results may be.
const researchRecency = "month"

// researchTemperature keeps the research model factual.
const researchTemperature = 0.2

const researchSystemPrompt = "You are a procurement market researcher. " +
	"Answer with current, citable facts about suppliers, commodities, and markets. " +
	"Cite your sources."

// snapshotSummaryLength caps the market snapshot summary.
const snapshotSummaryLength = 300

// webMarkerPattern rewrites the research model's bare [n] citations into the
// canonical [Wn] form.
var webMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one inbound chat turn.
type Request struct {
	Query          string    `json:"query"`
	ConversationID string    `json:"conversationId,omitempty"`
	History        []Message `json:"history,omitempty"`
}

// CategorySource supplies the managed-category catalog for source-confidence
// grading.
type CategorySource interface {
	Categories(ctx context.Context) ([]model.ManagedCategory, error)
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithResearch enables the web research stream through the given client.
func WithResearch(client perplexity.Client, modelName string) Option {
	return func(p *Pipeline) {
		p.research = client
		p.researchModel = modelName
	}
}

// WithCategories wires the managed-category catalog.
func WithCategories(src CategorySource) Option {
	return func(p *Pipeline) {
		p.categories = src
	}
}

// Pipeline answers chat turns. Turns within one conversation are processed
// in arrival order via a per-conversation lock; turns across conversations
// run concurrently.
type Pipeline struct {
	fetcher       *evidence.Fetcher
	synth         *synthesis.Synthesizer
	research      perplexity.Client
	researchModel string
	categories    CategorySource

	mu    sync.Mutex
	convs map[string]*sync.Mutex
}

// NewPipeline creates a chat pipeline. Research is disabled until wired via
// WithResearch; queries that would trigger it fall back to internal-only
// replies.
func NewPipeline(fetcher *evidence.Fetcher, synth *synthesis.Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		synth:   synth,
		convs:   make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Respond runs one turn end to end and always yields a usable envelope.
func (p *Pipeline) Respond(ctx context.Context, req Request) model.ResponseEnvelope {
	if req.ConversationID != "" {
		lock := p.convLock(req.ConversationID)
		lock.Lock()
		defer lock.Unlock()
	}

	det := intent.Classify(req.Query)
	route := router.Route(det)

	var (
		ev  *evidence.Evidence
		web *synthesis.Stream
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ev = p.fetcher.Fetch(gctx, det, route)
		return nil
	})
	if det.RequiresResearch && p.research != nil {
		g.Go(func() error {
			web = p.researchStream(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	beroe := composeInternal(det, ev)
	data := synthesis.SynthesisData{
		Beroe: beroe,
		Web:   web,
		Pool:  append(append([]model.Citation{}, beroe.Sources...), webSources(web)...),
	}
	hybrid := p.synth.Synthesize(ctx, data, req.Query)

	env := model.ResponseEnvelope{
		Narrative: hybrid.Content,
		Provider:  hybrid.Provider,
		Insight:   hybrid.KeyInsight,
		Sources:   groupSources(data.Pool),
		Intent:    det,
	}
	env.Intent.ArtifactType = route.ArtifactType

	if route.RequiresHandoff {
		env.Handoff = &model.Handoff{
			Reason:    "Full report details are available in your Beroe workspace.",
			LinkLabel: "Open report request",
		}
	} else if w := p.buildWidget(route, det, ev, hybrid); w != nil {
		env.Widget = w
	}

	final, report := respond.ValidateAndRepair(respond.FromEnvelope(env), env.Intent, p.catalogCategories(ctx))
	if len(report.Errors) > 0 {
		zap.L().Debug("chat: envelope repaired",
			zap.Strings("errors", report.Errors),
			zap.String("category", string(det.Category)))
	}
	return final
}

func (p *Pipeline) convLock(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.convs[id]
	if !ok {
		lock = &sync.Mutex{}
		p.convs[id] = lock
	}
	return lock
}

func (p *Pipeline) catalogCategories(ctx context.Context) []model.ManagedCategory {
	if p.categories == nil {
		return nil
	}
	categories, err := p.categories.Categories(ctx)
	if err != nil {
		zap.L().Warn("chat: category catalog unavailable", zap.Error(err))
		return nil
	}
	return categories
}

// researchStream runs the web research call. Any failure disables the web
// stream for this turn.
func (p *Pipeline) researchStream(ctx context.Context, req Request) *synthesis.Stream {
	messages := []perplexity.Message{{Role: "system", Content: researchSystemPrompt}}
	for _, m := range req.History {
		if m.Content != "" {
			messages = append(messages, perplexity.Message{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, perplexity.Message{Role: "user", Content: req.Query})

	temp := researchTemperature
	resp, err := p.research.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:               p.researchModel,
		Messages:            messages,
		Temperature:         &temp,
		ReturnCitations:     true,
		SearchRecencyFilter: researchRecency,
	})
	if err != nil {
		zap.L().Warn("chat: research call failed", zap.Error(err))
		return nil
	}

	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return nil
	}

	var sources []model.Citation
	for _, r := range resp.SearchResults {
		name := r.Title
		if name == "" {
			name = r.URL
		}
		sources = append(sources, model.Citation{
			ID:      fmt.Sprintf("W%d", len(sources)+1),
			Name:    name,
			URL:     r.URL,
			Snippet: r.Excerpt(),
		})
	}
	if len(sources) == 0 {
		for _, u := range resp.AllCitations() {
			sources = append(sources, model.Citation{
				ID:   fmt.Sprintf("W%d", len(sources)+1),
				Name: u,
				URL:  u,
			})
		}
	}
	if len(sources) == 0 {
		return nil
	}

	return &synthesis.Stream{
		Content: webMarkerPattern.ReplaceAllString(content, "[W$1]"),
		Sources: sources,
	}
}

// buildWidget maps the routed widget type to its transformer over the
// fetched evidence. Missing evidence yields no widget rather than an empty
// card.
func (p *Pipeline) buildWidget(route router.WidgetRoute, det model.DetectedIntent, ev *evidence.Evidence, hybrid synthesis.HybridResponse) *model.Widget {
	var (
		data any
		ok   bool
	)
	switch route.WidgetType {
	case model.WidgetRiskDistribution:
		if ev.Portfolio != nil {
			data, ok = widgets.Distribution(*ev.Portfolio, ev.Suppliers), true
		}
	case model.WidgetSupplierTable:
		data, ok = widgets.SupplierTable(ev.Suppliers, tableFilters(det.Entities)), true
	case model.WidgetRiskCard:
		if ev.Target != nil {
			data, ok = widgets.RiskCard(*ev.Target), true
		}
	case model.WidgetComparison:
		if len(ev.Suppliers) > 0 {
			data, ok = widgets.Comparison(ev.Suppliers), true
		}
	case model.WidgetAlternativesPreview:
		if ev.Target != nil {
			data, ok = widgets.Alternatives(*ev.Target, ev.Alternatives), true
		}
	case model.WidgetEventsFeed, model.WidgetRiskAlert:
		if len(ev.Changes) > 0 {
			data, ok = widgets.Alert(ev.Changes, ev.ChangedSuppliers), true
		}
	case model.WidgetSpendExposure:
		data, ok = widgets.SpendExposure(ev.Suppliers), true
	case model.WidgetCategoryBreakdown:
		data, ok = widgets.CategoryBreakdown(ev.Suppliers), true
	case model.WidgetMarketSnapshot:
		summary := hybrid.KeyInsight
		if summary == "" {
			summary = headOf(hybrid.Content, snapshotSummaryLength)
		}
		data, ok = widgets.MarketSnapshot(det.Entities.Commodity, det.Entities.Region, summary, nil), true
	}
	if !ok {
		return nil
	}

	w, err := model.MarshalWidget(route.WidgetType, data)
	if err != nil {
		zap.L().Warn("chat: widget marshal failed",
			zap.String("type", string(route.WidgetType)), zap.Error(err))
		return nil
	}
	return w
}

func tableFilters(e model.ExtractedEntities) map[string]string {
	filters := make(map[string]string)
	if e.RiskLevel != "" {
		filters["riskLevel"] = string(e.RiskLevel)
	}
	if e.Region != "" {
		filters["region"] = e.Region
	}
	if e.Category != "" {
		filters["category"] = e.Category
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

func headOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// groupSources splits the citation pool back into the envelope's grouped
// form.
func groupSources(pool []model.Citation) model.Sources {
	var s model.Sources
	for _, c := range pool {
		if c.Internal() {
			s.Internal = append(s.Internal, c)
		} else {
			s.Web = append(s.Web, c)
		}
	}
	s.TotalInternalCount = len(s.Internal)
	s.TotalWebCount = len(s.Web)
	return s
}

func webSources(web *synthesis.Stream) []model.Citation {
	if web == nil {
		return nil
	}
	return web.Sources
}

// composeInternal writes the internal evidence stream for one turn: a cited
// summary of the fetched data sets shaped by the intent.
func composeInternal(det model.DetectedIntent, ev *evidence.Evidence) synthesis.Stream {
	var sources []model.Citation
	add := func(name, category string) string {
		id := fmt.Sprintf("B%d", len(sources)+1)
		sources = append(sources, model.Citation{ID: id, Name: name, Category: category})
		return id
	}

	var bPortfolio, bSuppliers, bChanges string
	if ev.Portfolio != nil {
		bPortfolio = add("Portfolio Risk Summary", "portfolio")
	}
	if len(ev.Suppliers) > 0 || ev.Target != nil {
		bSuppliers = add("Supplier Risk Assessments", "supplier_data")
	}
	if len(ev.Changes) > 0 {
		bChanges = add("Risk Change Log", "risk_changes")
	}
	if len(sources) == 0 {
		bSuppliers = add("Beroe Category Intelligence", "market")
	}

	var b strings.Builder
	switch det.Category {
	case model.IntentPortfolioOverview:
		p := ev.Portfolio
		if p == nil {
			p = &model.Portfolio{}
		}
		fmt.Fprintf(&b, "Your portfolio covers %d suppliers with %s in total spend [%s]. ",
			p.TotalSuppliers, widgets.SpendLabel(p.TotalSpend), bPortfolio)
		fmt.Fprintf(&b, "%d are high risk, %d medium-high, and %d remain unrated [%s].",
			p.Distribution.High, p.Distribution.MediumHigh, p.Distribution.Unrated, bPortfolio)
		if det.SubIntent == model.SubSpendWeighted {
			fmt.Fprintf(&b, " Spend concentration is weighted toward your largest suppliers [%s].", cite(bSuppliers, bPortfolio))
		}
		if bChanges != "" {
			fmt.Fprintf(&b, " %d risk scores moved in the last 30 days [%s].", len(ev.Changes), bChanges)
		}

	case model.IntentExplanationWhy:
		if det.SubIntent == model.SubUnratedWhy {
			fmt.Fprintf(&b, "You have %d unrated suppliers in your portfolio [%s]. ", len(ev.Suppliers), bSuppliers)
			b.WriteString("A supplier stays unrated until enough financial, operational, and compliance signals are collected to compute a composite score.")
		} else {
			fmt.Fprintf(&b, "Risk scores reflect financial health, operational disruption, and compliance signals [%s].", cite(bSuppliers, bPortfolio))
			if bChanges != "" {
				fmt.Fprintf(&b, " %d suppliers moved scores in the last 30 days [%s].", len(ev.Changes), bChanges)
			}
		}

	case model.IntentSupplierDeepDive:
		if ev.Target != nil {
			t := ev.Target
			fmt.Fprintf(&b, "%s is rated %s", t.Name, t.RiskLevelOf())
			if score := t.RiskScore(); score >= 0 {
				fmt.Fprintf(&b, " with a composite score of %.0f", score)
			}
			fmt.Fprintf(&b, " [%s]. Your spend with this supplier is %s.", bSuppliers, widgets.SpendLabel(t.Spend))
		} else {
			fmt.Fprintf(&b, "I could not find that supplier in your portfolio [%s].", cite(bSuppliers, bPortfolio))
		}

	case model.IntentActionTrigger:
		switch {
		case det.SubIntent == model.SubRequestReport:
			b.WriteString("A full category report requires an analyst engagement.")
		case ev.Target != nil:
			fmt.Fprintf(&b, "%d alternatives to %s operate in the %s category with lower risk profiles [%s].",
				len(ev.Alternatives), ev.Target.Name, ev.Target.Category, bSuppliers)
		default:
			fmt.Fprintf(&b, "I could not find %q in your portfolio to search alternatives for [%s].",
				det.Entities.SupplierName, cite(bSuppliers, bPortfolio))
		}

	case model.IntentComparison:
		fmt.Fprintf(&b, "Comparing %d suppliers across risk score, trend, and spend [%s].", len(ev.Suppliers), bSuppliers)

	case model.IntentFilteredDiscovery:
		fmt.Fprintf(&b, "%d suppliers in your portfolio match the requested filters [%s].", len(ev.Suppliers), bSuppliers)

	case model.IntentMarketContext, model.IntentCostInflation:
		commodity := det.Entities.Commodity
		if commodity == "" {
			commodity = "this category"
		}
		fmt.Fprintf(&b, "Beroe category intelligence tracks %s pricing, capacity, and supply dynamics across every major producing region [%s]. ", commodity, bSuppliers)
		fmt.Fprintf(&b, "Coverage includes cost models, price indices, and supplier capacity assessments maintained by category analysts [%s]. ", bSuppliers)
		b.WriteString("Ask about a specific region or grade to narrow the view.")

	default:
		fmt.Fprintf(&b, "Here's a quick look across your supplier intelligence data [%s].", cite(bSuppliers, bPortfolio))
	}

	return synthesis.Stream{Content: b.String(), Sources: sources}
}

// cite returns the first non-empty citation id.
func cite(ids ...string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return "B1"
}
