// Package synthesis merges an internal evidence stream and an optional web
// research stream into one narrative with [B#]/[W#] citations. Model output
// is treated as untrusted bytes: it is parsed defensively, checked against
// length and citation-coverage guardrails, and replaced by a deterministic
// fallback whenever it falls short. Synthesize never returns an error.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/pkg/gemini"
)

// Guardrail thresholds.
const (
	minNarrativeLength = 400
	minParsedLength    = 100
	synthesisDeadline  = 20 * time.Second
	repairDeadline     = 10 * time.Second
	maxOutputTokens    = 2048
	temperature        = 0.3
)

// Stream is one evidence stream: already-cited content plus its sources.
type Stream struct {
	Content string
	Sources []model.Citation
}

// SynthesisData is the input to one synthesis turn. Pool is the ordered,
// unique-by-id citation pool covering both streams.
type SynthesisData struct {
	Beroe Stream
	Web   *Stream
	Pool  []model.Citation
}

// HybridResponse is the synthesizer's output.
type HybridResponse struct {
	Content          string
	Provider         model.Provider
	AgreementLevel   string
	KeyInsight       string
	BeroeClaimsCount int
	WebClaimsCount   int
}

// Synthesizer merges evidence streams via the fast JSON model.
type Synthesizer struct {
	client gemini.Client
	model  string
}

// NewSynthesizer creates a Synthesizer using the given model name, or the
// client default when empty.
func NewSynthesizer(client gemini.Client, modelName string) *Synthesizer {
	return &Synthesizer{client: client, model: modelName}
}

// Synthesize produces the hybrid narrative for one turn. All failure modes
// (timeout, HTTP error, unparsable or undercited output) resolve to the
// deterministic fallback; the caller always receives a usable response.
func (s *Synthesizer) Synthesize(ctx context.Context, data SynthesisData, query string) HybridResponse {
	valid := PoolIDs(data.Pool)

	if data.Web == nil || strings.TrimSpace(data.Web.Content) == "" {
		return s.beroeOnly(data, valid)
	}

	content, agreement, insight, ok := s.invokeModel(ctx, data, query)
	if !ok {
		return s.fallbackResponse(data, valid)
	}

	content = ValidateCitations(content, valid)

	if len(content) < minNarrativeLength {
		return s.fallbackResponse(data, valid)
	}

	content, covered := s.ensureCoverage(content, data, valid)
	if !covered {
		return s.fallbackResponse(data, valid)
	}

	bCount := CountCitations(content, 'B')
	wCount := CountCitations(content, 'W')
	if agreement == "" {
		agreement = agreementFor(bCount, wCount)
	}

	return HybridResponse{
		Content:          content,
		Provider:         model.ProviderHybrid,
		AgreementLevel:   agreement,
		KeyInsight:       insight,
		BeroeClaimsCount: bCount,
		WebClaimsCount:   wCount,
	}
}

// beroeOnly passes internal content through, appending [B1] when the text
// carries no internal citation but one is available.
func (s *Synthesizer) beroeOnly(data SynthesisData, valid map[string]bool) HybridResponse {
	content := ValidateCitations(data.Beroe.Content, valid)
	internal, _ := splitPool(data.Pool)
	if CountCitations(content, 'B') == 0 && len(internal) > 0 {
		content = strings.TrimSpace(content) + " [" + internal[0].ID + "]"
	}
	return HybridResponse{
		Content:          content,
		Provider:         model.ProviderGemini,
		AgreementLevel:   "high",
		BeroeClaimsCount: CountCitations(content, 'B'),
	}
}

// invokeModel runs the synthesis call and, when the parsed content is
// implausibly short, one repair call.
func (s *Synthesizer) invokeModel(ctx context.Context, data SynthesisData, query string) (content, agreement, insight string, ok bool) {
	prompt := buildSynthesisPrompt(query, data.Beroe.Content, data.Web.Content, data.Pool)

	raw, err := s.generate(ctx, prompt, synthesisDeadline)
	if err != nil {
		zap.L().Warn("synthesis: model call failed", zap.Error(err))
		return "", "", "", false
	}

	reply, parsed := ParseJSONResponse(raw)
	if parsed && len(reply.Content) >= minParsedLength {
		return reply.Content, reply.AgreementLevel, reply.KeyInsight, true
	}

	// Short or unparsable: one repair pass asking for the canonical JSON.
	repaired, err := s.generate(ctx, fmt.Sprintf(repairPrompt, raw), repairDeadline)
	if err != nil {
		zap.L().Warn("synthesis: repair call failed", zap.Error(err))
		return "", "", "", false
	}
	reply, parsed = ParseJSONResponse(repaired)
	if parsed && len(reply.Content) >= minParsedLength {
		return reply.Content, reply.AgreementLevel, reply.KeyInsight, true
	}
	return "", "", "", false
}

func (s *Synthesizer) generate(ctx context.Context, prompt string, deadline time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resp, err := s.client.GenerateContent(callCtx, gemini.GenerateRequest{
		Model:    s.model,
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: prompt}}}},
		GenerationConfig: gemini.GenerationConfig{
			Temperature:      temperature,
			MaxOutputTokens:  maxOutputTokens,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errEmptyReply
	}
	return text, nil
}

var errEmptyReply = fmt.Errorf("synthesis: empty model reply")

// ensureCoverage checks the citation-coverage guardrail: at least
// min(2, availableB) internal and min(1, availableW) web citations. When
// short, it appends a Supporting Evidence paragraph referencing the unused
// citations, then re-checks.
func (s *Synthesizer) ensureCoverage(content string, data SynthesisData, valid map[string]bool) (string, bool) {
	internal, web := splitPool(data.Pool)
	needB := min(2, len(internal))
	needW := min(1, len(web))

	if CountCitations(content, 'B') >= needB && CountCitations(content, 'W') >= needW {
		return content, true
	}

	cited := make(map[string]bool)
	for _, id := range CitedIDs(content) {
		cited[id] = true
	}
	var refs []string
	for _, c := range data.Pool {
		if cited[c.ID] {
			continue
		}
		refs = append(refs, fmt.Sprintf("%s [%s]", c.Name, c.ID))
	}
	if len(refs) > 0 {
		content = strings.TrimSpace(content) +
			"\n\nSupporting Evidence: this assessment is corroborated by " +
			strings.Join(refs, "; ") + "."
	}

	if CountCitations(content, 'B') >= needB && CountCitations(content, 'W') >= needW {
		return content, true
	}
	return content, false
}

func (s *Synthesizer) fallbackResponse(data SynthesisData, valid map[string]bool) HybridResponse {
	content := ValidateCitations(buildFallback(data), valid)
	if strings.TrimSpace(content) == "" {
		content = "Analysis based on available data."
	}
	bCount := CountCitations(content, 'B')
	wCount := CountCitations(content, 'W')
	return HybridResponse{
		Content:          content,
		Provider:         model.ProviderLocal,
		AgreementLevel:   agreementFor(bCount, wCount),
		BeroeClaimsCount: bCount,
		WebClaimsCount:   wCount,
	}
}

// agreementFor grades source balance: high when single-source or
// internal-leaning, low when web-heavy.
func agreementFor(bCount, wCount int) string {
	switch {
	case wCount == 0 || bCount == 0:
		return "high"
	case bCount >= wCount:
		return "high"
	case wCount > 2*bCount:
		return "low"
	default:
		return "medium"
	}
}
