// Package intent classifies free-text procurement queries into routable
// intents. Classification is rule-based: an ordered list of category
// patterns is scanned in priority order and the first match wins, so the
// result is deterministic for any input.
package intent

import (
	"regexp"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

// Confidence levels: fixed on pattern match, lower on the general fallback.
const (
	matchConfidence    = 0.85
	fallbackConfidence = 0.5
)

// categoryRule binds an intent category to its ordered trigger patterns.
type categoryRule struct {
	category model.IntentCategory
	patterns []*regexp.Regexp
}

// Specific intents are checked before portfolio_overview and general so a
// narrow query never degrades into a summary answer.
var rules = []categoryRule{
	{model.IntentActionTrigger, compileAll(
		`(?i)\b(find|suggest|recommend)\b.*\balternativ`,
		`(?i)\balternatives?\s+(for|to)\b`,
		`(?i)\b(replace|switch\s+from|move\s+away\s+from)\b`,
		`(?i)\brequest\b.*\breport\b`,
	)},
	{model.IntentComparison, compileAll(
		`(?i)\bcompare\b`,
		`(?i)\b(vs\.?|versus)\b`,
		`(?i)\bside\s*by\s*side\b`,
	)},
	{model.IntentExplanationWhy, compileAll(
		`(?i)\bwhy\b.*\b(unrated|not\s+rated|no\s+(risk\s+)?score)\b`,
		`(?i)\b(unrated|not\s+rated)\b.*\bwhy\b`,
		`(?i)\bwhy\b.*\b(score|risk|rating|high|worsen)`,
		`(?i)\bexplain\b.*\b(score|risk|rating)\b`,
	)},
	{model.IntentSupplierDeepDive, compileAll(
		`(?i)\b(tell\s+me\s+about|profile|deep\s*dive|details?\s+(on|about|for))\b`,
		`(?i)\bhow\s+risky\s+is\b`,
		`(?i)\bwhat('?s| is)\s+the\s+risk\s+(score\s+)?(of|for)\b`,
	)},
	{model.IntentFilteredDiscovery, compileAll(
		`(?i)\b(show|list|which|find)\b.*\b(high|medium|low)[\s-]*risk\b.*\bsuppliers?\b`,
		`(?i)\bsuppliers?\b.*\b(in|from)\b.*\b(asia|europe|africa|americas?|apac|emea|latam|china|india)\b`,
		`(?i)\b(show|list)\b.*\bsuppliers?\b.*\b(in|with|by)\b`,
	)},
	{model.IntentCostInflation, compileAll(
		`(?i)\b(price|prices|pricing|cost|costs)\b.*\b(outlook|forecast|trend|inflation|increase|rising|drop)`,
		`(?i)\binflation\b`,
		`(?i)\b(commodity|steel|copper|aluminum|resin|lithium|nickel)\b.*\bprice`,
		`(?i)\bprice\b.*\b(commodity|steel|copper|aluminum|resin|lithium|nickel)\b`,
	)},
	{model.IntentMarketContext, compileAll(
		`(?i)\bmarket\b.*\b(context|conditions?|outlook|trends?|news)\b`,
		`(?i)\b(what('?s| is)\s+happening|latest\s+news|recent\s+events?)\b`,
		`(?i)\b(supply\s+chain|geopolitical|tariff|sanction)s?\b`,
	)},
	{model.IntentPortfolioOverview, compileAll(
		`(?i)\b(portfolio|overall|my\s+suppliers?)\b.*\b(risk|overview|summary|health|exposure)\b`,
		`(?i)\b(risk|spend)\s+(overview|summary|distribution|breakdown|exposure)\b`,
		`(?i)\bhow\s+(is|are)\s+my\s+(portfolio|suppliers?)\b`,
		`(?i)\brecent\s+(risk\s+)?changes?\b`,
	)},
}

// marketWords exclude a query from portfolio_overview unless a risk signal
// is also present; "steel market summary" is market context, not a portfolio
// question.
var (
	marketWordPattern = regexp.MustCompile(`(?i)\b(market|inflation|price|prices|pricing|commodity|cost)\b`)
	riskWordPattern   = regexp.MustCompile(`(?i)\b(risk|risky|supplier|suppliers|portfolio|exposure|srs)\b`)
)

// researchPatterns auto-trigger the web research stream. Price and commodity
// queries prefer internal index data, so cost_inflation skips research.
var researchPatterns = compileAll(
	`(?i)\b(latest|recent|current|today|this\s+(week|month))\b`,
	`(?i)\b(news|events?|headlines?|disruptions?)\b`,
	`(?i)\bmarket\b`,
	`(?i)\b(geopolitical|tariff|sanction|regulation)s?\b`,
)

// Entity extraction passes, each independent of category matching.
var (
	riskLevelPattern   = regexp.MustCompile(`(?i)\b(high|medium[\s-]*high|medium|low)[\s-]*risk\b`)
	regionPattern      = regexp.MustCompile(`(?i)\b(asia|europe|north\s+america|south\s+america|africa|oceania|apac|emea|latam|china|india|germany|vietnam|mexico|brazil)\b`)
	altSupplierPattern = regexp.MustCompile(`(?i)alternatives?\s+(?:for|to)\s+([A-Z][\w&.\- ]{1,40}?)(?:\s*[?.!,]|$)`)
	aboutPattern       = regexp.MustCompile(`(?i)(?:tell\s+me\s+about|profile\s+(?:of|for)|how\s+risky\s+is|risk\s+(?:score\s+)?(?:of|for))\s+([A-Z][\w&.\- ]{1,40}?)(?:\s*[?.!,]|$)`)
	commodityPattern   = regexp.MustCompile(`(?i)\b(steel|copper|aluminum|aluminium|resin|lithium|nickel|zinc|polypropylene|semiconductors?|logistics|freight)\b`)
	categoryPattern    = regexp.MustCompile(`(?i)\b(electronics|packaging|chemicals|logistics|raw\s+materials|it\s+services|mro|metals)\b`)
)

// Classify maps a free-text query to a DetectedIntent. Pure and
// side-effect free; unmatched queries fall back to general with
// best-effort entities.
func Classify(query string) model.DetectedIntent {
	q := strings.TrimSpace(query)
	entities := extractEntities(q)

	for _, rule := range rules {
		if !matchesAny(rule.patterns, q) {
			continue
		}
		if rule.category == model.IntentPortfolioOverview &&
			marketWordPattern.MatchString(q) && !riskWordPattern.MatchString(q) {
			continue
		}
		return buildIntent(rule.category, q, entities)
	}

	return model.DetectedIntent{
		Category:         model.IntentGeneral,
		SubIntent:        model.SubNone,
		Confidence:       fallbackConfidence,
		ResponseType:     model.ResponseTextOnly,
		Entities:         entities,
		RequiresResearch: matchesAny(researchPatterns, q),
	}
}

func buildIntent(cat model.IntentCategory, q string, entities model.ExtractedEntities) model.DetectedIntent {
	sub := subIntentFor(cat, q)

	research := matchesAny(researchPatterns, q)
	// Price and commodity questions are answered from internal index data.
	if cat == model.IntentCostInflation {
		research = false
	}

	handoff := cat == model.IntentActionTrigger && sub == model.SubRequestReport

	respType := model.ResponseWidget
	if handoff {
		respType = model.ResponseHandoff
	}

	return model.DetectedIntent{
		Category:          cat,
		SubIntent:         sub,
		Confidence:        matchConfidence,
		ResponseType:      respType,
		Entities:          entities,
		RequiresHandoff:   handoff,
		RequiresResearch:  research,
		RequiresDiscovery: cat == model.IntentFilteredDiscovery,
	}
}

// subIntentFor picks the category-specific refinement via a regex switch.
func subIntentFor(cat model.IntentCategory, q string) model.SubIntent {
	switch cat {
	case model.IntentPortfolioOverview:
		switch {
		case regexp.MustCompile(`(?i)\bspend\b`).MatchString(q):
			return model.SubSpendWeighted
		case regexp.MustCompile(`(?i)\b(by|per)\s+(category|region|country)\b`).MatchString(q):
			return model.SubByDimension
		case regexp.MustCompile(`(?i)\b(changes?|news|events?)\b`).MatchString(q):
			return model.SubNewsEvents
		default:
			return model.SubOverallSummary
		}
	case model.IntentActionTrigger:
		if regexp.MustCompile(`(?i)\breport\b`).MatchString(q) {
			return model.SubRequestReport
		}
		return model.SubFindAlternatives
	case model.IntentExplanationWhy:
		if regexp.MustCompile(`(?i)\b(unrated|not\s+rated|no\s+(risk\s+)?score)\b`).MatchString(q) {
			return model.SubUnratedWhy
		}
		return model.SubScoreWhy
	case model.IntentSupplierDeepDive:
		return model.SubProfileLookup
	case model.IntentCostInflation:
		return model.SubPriceOutlook
	case model.IntentMarketContext:
		return model.SubNewsEvents
	}
	return model.SubNone
}

func extractEntities(q string) model.ExtractedEntities {
	var e model.ExtractedEntities

	if m := riskLevelPattern.FindStringSubmatch(q); m != nil {
		level := strings.ToLower(m[1])
		level = strings.ReplaceAll(level, " ", "-")
		if level == "medium-high" || strings.HasPrefix(level, "medium") && strings.Contains(level, "high") {
			e.RiskLevel = model.RiskMediumHigh
		} else {
			e.RiskLevel = model.RiskLevel(level)
		}
	}
	if m := regionPattern.FindStringSubmatch(q); m != nil {
		e.Region = strings.ToLower(m[1])
	}
	if m := altSupplierPattern.FindStringSubmatch(q); m != nil {
		e.SupplierName = strings.TrimSpace(m[1])
	} else if m := aboutPattern.FindStringSubmatch(q); m != nil {
		e.SupplierName = strings.TrimSpace(m[1])
	}
	if m := commodityPattern.FindStringSubmatch(q); m != nil {
		e.Commodity = strings.ToLower(m[1])
	}
	if m := categoryPattern.FindStringSubmatch(q); m != nil {
		e.Category = strings.ToLower(m[1])
	}
	return e
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, q string) bool {
	for _, p := range patterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}
