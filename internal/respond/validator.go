// Package respond normalizes any upstream reply, model output, deterministic
// fallback, or legacy payload, into the canonical response envelope. Model
// replies are treated as untyped maps and never trusted to honor the schema.
package respond

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/synthesis"
)

// Report describes what ValidateAndRepair found and changed.
type Report struct {
	Valid    bool     `json:"valid"`
	Repaired bool     `json:"repaired"`
	Errors   []string `json:"errors,omitempty"`
}

var validProviders = map[model.Provider]bool{
	model.ProviderGemini:     true,
	model.ProviderPerplexity: true,
	model.ProviderHybrid:     true,
	model.ProviderLocal:      true,
}

// Validate checks an untyped reply against the canonical envelope shape and
// returns one message per defect.
func Validate(obj map[string]any) []string {
	if obj == nil {
		return []string{"reply is not an object"}
	}

	var errs []string
	for _, field := range []string{"id", "acknowledgement", "narrative"} {
		if s, _ := obj[field].(string); strings.TrimSpace(s) == "" {
			errs = append(errs, "missing "+field)
		}
	}

	provider, _ := obj["provider"].(string)
	if !validProviders[model.Provider(provider)] {
		errs = append(errs, "invalid provider")
	}

	if w, present := obj["widget"]; present && w != nil {
		wm, ok := w.(map[string]any)
		if !ok {
			errs = append(errs, "widget is not an object")
		} else if t, _ := wm["type"].(string); !model.ValidWidgetType(model.WidgetType(t)) {
			errs = append(errs, "widget has no valid type")
		}
	}

	if s, present := obj["suggestions"]; present && s != nil {
		if _, ok := s.([]any); !ok {
			errs = append(errs, "suggestions is not an array")
		}
	}

	return errs
}

// Repair fills every missing or malformed envelope field with an
// intent-appropriate default and normalizes sources. The second return
// reports whether anything was changed.
func Repair(obj map[string]any, intent model.DetectedIntent, categories []model.ManagedCategory) (model.ResponseEnvelope, bool) {
	if obj == nil {
		obj = map[string]any{}
	}
	repaired := false

	env := model.ResponseEnvelope{Intent: intent}

	env.ID = stringField(obj, "id")
	if env.ID == "" {
		env.ID = uuid.NewString()
		repaired = true
	}

	env.Acknowledgement = stringField(obj, "acknowledgement")
	if env.Acknowledgement == "" {
		env.Acknowledgement = acknowledgementFor(intent.Category)
		repaired = true
	}

	env.Narrative = stringField(obj, "narrative")
	if env.Narrative == "" {
		env.Narrative = stringField(obj, "content")
		repaired = true
	}
	if env.Narrative == "" {
		env.Narrative = placeholderFor(intent.Category)
	}

	provider := model.Provider(stringField(obj, "provider"))
	if !validProviders[provider] {
		provider = model.ProviderLocal
		repaired = true
	}
	env.Provider = provider

	env.Insight = stringField(obj, "insight")

	env.Suggestions = suggestionsOf(obj)
	if len(env.Suggestions) == 0 {
		env.Suggestions = suggestionsFor(intent.Category)
		repaired = true
	}

	if widget, ok := widgetOf(obj); ok {
		env.Widget = widget
	} else if _, present := obj["widget"]; present && obj["widget"] != nil {
		repaired = true
	}

	env.Sources = normalizeSources(obj["sources"])
	if env.Sources.Confidence == "" {
		if conf := sourceConfidence(intent, categories); conf != "" {
			env.Sources.Confidence = conf
			repaired = true
		}
	}

	env.Handoff = handoffOf(obj)

	// Citation discipline: every token left in the narrative must resolve
	// to an entry in sources.
	valid := make(map[string]bool, len(env.Sources.Internal)+len(env.Sources.Web))
	for _, c := range env.Sources.Internal {
		valid[c.ID] = true
	}
	for _, c := range env.Sources.Web {
		valid[c.ID] = true
	}
	stripped := synthesis.ValidateCitations(env.Narrative, valid)
	if stripped != env.Narrative {
		env.Narrative = stripped
		repaired = true
	}

	return env, repaired
}

// ValidateAndRepair validates then repairs in one pass. Feeding the repaired
// envelope back through returns it unchanged with Valid true.
func ValidateAndRepair(obj map[string]any, intent model.DetectedIntent, categories []model.ManagedCategory) (model.ResponseEnvelope, Report) {
	errs := Validate(obj)
	env, repaired := Repair(obj, intent, categories)
	return env, Report{
		Valid:    len(errs) == 0,
		Repaired: repaired || len(errs) > 0,
		Errors:   errs,
	}
}

// FromEnvelope re-encodes a typed envelope as the untyped map form, used by
// callers that pass pipeline output back through ValidateAndRepair.
func FromEnvelope(env model.ResponseEnvelope) map[string]any {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func suggestionsOf(obj map[string]any) []string {
	items, ok := obj["suggestions"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

func widgetOf(obj map[string]any) (*model.Widget, bool) {
	wm, ok := obj["widget"].(map[string]any)
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(wm)
	if err != nil {
		return nil, false
	}
	var w model.Widget
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}
	if !model.ValidWidgetType(w.Type) {
		return nil, false
	}
	return &w, true
}

func handoffOf(obj map[string]any) *model.Handoff {
	hm, ok := obj["handoff"].(map[string]any)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(hm)
	if err != nil {
		return nil
	}
	var h model.Handoff
	if err := json.Unmarshal(raw, &h); err != nil || h.Reason == "" {
		return nil
	}
	return &h
}

// normalizeSources accepts either the canonical grouped form or a legacy
// flat list where entries with a type are internal and the rest are web.
func normalizeSources(v any) model.Sources {
	var s model.Sources
	switch src := v.(type) {
	case map[string]any:
		raw, err := json.Marshal(src)
		if err == nil {
			_ = json.Unmarshal(raw, &s)
		}
	case []any:
		for _, item := range src {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			title, _ := m["title"].(string)
			if title == "" {
				title, _ = m["name"].(string)
			}
			if title == "" {
				continue
			}
			if typ, _ := m["type"].(string); typ != "" {
				s.Internal = append(s.Internal, model.Citation{
					ID:       fmt.Sprintf("B%d", len(s.Internal)+1),
					Name:     title,
					Category: typ,
				})
			} else {
				url, _ := m["url"].(string)
				s.Web = append(s.Web, model.Citation{
					ID:   fmt.Sprintf("W%d", len(s.Web)+1),
					Name: title,
					URL:  url,
				})
			}
		}
	}
	if s.TotalWebCount < len(s.Web) {
		s.TotalWebCount = len(s.Web)
	}
	if s.TotalInternalCount < len(s.Internal) {
		s.TotalInternalCount = len(s.Internal)
	}
	return s
}

// sourceConfidence grades internal coverage from the managed-category
// catalog: an activated category with supplier data is high confidence.
func sourceConfidence(intent model.DetectedIntent, categories []model.ManagedCategory) string {
	name := intent.Entities.Category
	if name == "" {
		name = intent.Entities.Commodity
	}
	if name == "" || len(categories) == 0 {
		return ""
	}
	for _, c := range categories {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if c.Active && c.Coverage.SupplierData {
			return "high"
		}
		if c.Active {
			return "medium"
		}
		return "low"
	}
	return "low"
}

func acknowledgementFor(category model.IntentCategory) string {
	switch category {
	case model.IntentPortfolioOverview:
		return "Here's your portfolio risk overview."
	case model.IntentSupplierDeepDive:
		return "Here's the supplier profile you asked about."
	case model.IntentMarketContext, model.IntentCostInflation:
		return "Here's the current market picture."
	default:
		return "Here's what I found."
	}
}

func placeholderFor(category model.IntentCategory) string {
	switch category {
	case model.IntentPortfolioOverview:
		return "Your portfolio data is loading. Ask again in a moment for the full risk breakdown."
	case model.IntentSupplierDeepDive:
		return "I could not assemble that supplier's profile right now. Try again shortly."
	case model.IntentMarketContext, model.IntentCostInflation:
		return "Market data is temporarily unavailable. Try again shortly."
	default:
		return "I could not complete that analysis right now. Try again shortly."
	}
}

func suggestionsFor(category model.IntentCategory) []string {
	switch category {
	case model.IntentPortfolioOverview:
		return []string{
			"Which suppliers are high risk?",
			"Show recent risk changes",
			"Break down risk by category",
		}
	case model.IntentSupplierDeepDive:
		return []string{
			"Why did this score change?",
			"Find alternatives for this supplier",
			"Compare with similar suppliers",
		}
	case model.IntentMarketContext, model.IntentCostInflation:
		return []string{
			"How does this affect my portfolio?",
			"Show the price outlook",
			"Which of my categories are exposed?",
		}
	case model.IntentActionTrigger:
		return []string{
			"Show lower-risk alternatives",
			"Request a deep-dive report",
			"Compare the top candidates",
		}
	default:
		return []string{
			"Show my risk overview",
			"Which suppliers are high risk?",
			"What's moving in my categories?",
		}
	}
}
