package synthesis

import (
	"fmt"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

// fallbackMinLength matches the narrative length guardrail.
const fallbackMinLength = 400

// fallbackTailLength is the slice of internal content appended when the
// template alone falls short.
const fallbackTailLength = 300

// buildFallback composes the deterministic four-section narrative used when
// model synthesis fails or fails its guardrails. Every citation it emits
// comes from the pool, so the result always passes citation validation.
func buildFallback(data SynthesisData) string {
	internal, web := splitPool(data.Pool)

	var b strings.Builder

	// Opening: up to three internal sentences tagged with B citations.
	beroeSentences := splitSentences(stripCitationTokens(data.Beroe.Content))
	n := len(beroeSentences)
	if n > 3 {
		n = 3
	}
	for i := 0; i < n; i++ {
		if i < len(internal) {
			fmt.Fprintf(&b, "%s [%s] ", beroeSentences[i], internal[i].ID)
		} else {
			b.WriteString(beroeSentences[i] + " ")
		}
	}

	// Web context: up to three web sentences with citations round-robin.
	if data.Web != nil && len(web) > 0 {
		webSentences := splitSentences(stripCitationTokens(data.Web.Content))
		if len(webSentences) > 0 {
			b.WriteString("\n\nMarket research provides additional context. ")
			m := len(webSentences)
			if m > 3 {
				m = 3
			}
			for i := 0; i < m; i++ {
				fmt.Fprintf(&b, "%s [%s] ", webSentences[i], web[i%len(web)].ID)
			}
		}
	}

	// Key drivers from evidence-pool snippets.
	var drivers []string
	for _, c := range data.Pool {
		if c.Snippet == "" {
			continue
		}
		drivers = append(drivers, fmt.Sprintf("- %s [%s]", c.Snippet, c.ID))
		if len(drivers) == 4 {
			break
		}
	}
	if len(drivers) > 0 {
		b.WriteString("\n\n**Key Drivers:**\n")
		b.WriteString(strings.Join(drivers, "\n"))
	}

	// Closing: remaining citations not yet referenced.
	cited := make(map[string]bool)
	for _, id := range CitedIDs(b.String()) {
		cited[id] = true
	}
	var restInternal, restWeb []string
	for _, c := range internal {
		if !cited[c.ID] {
			restInternal = append(restInternal, "["+c.ID+"]")
		}
	}
	for _, c := range web {
		if !cited[c.ID] {
			restWeb = append(restWeb, "["+c.ID+"]")
		}
	}
	if len(restInternal) > 0 || len(restWeb) > 0 {
		b.WriteString("\n\nThis analysis draws from ")
		switch {
		case len(restInternal) > 0 && len(restWeb) > 0:
			fmt.Fprintf(&b, "additional proprietary intelligence %s and market research %s.",
				strings.Join(restInternal, " "), strings.Join(restWeb, " "))
		case len(restInternal) > 0:
			fmt.Fprintf(&b, "additional proprietary intelligence %s.", strings.Join(restInternal, " "))
		default:
			fmt.Fprintf(&b, "additional market research %s.", strings.Join(restWeb, " "))
		}
	}

	out := strings.TrimSpace(b.String())
	if len(out) < fallbackMinLength && data.Beroe.Content != "" {
		tail := stripCitationTokens(data.Beroe.Content)
		if len(tail) > fallbackTailLength {
			tail = tail[:fallbackTailLength]
		}
		out += "\n\n" + strings.TrimSpace(tail)
	}
	return out
}

// splitPool separates a citation pool by origin, preserving order.
func splitPool(pool []model.Citation) (internal, web []model.Citation) {
	for _, c := range pool {
		if c.Internal() {
			internal = append(internal, c)
		} else {
			web = append(web, c)
		}
	}
	return internal, web
}
