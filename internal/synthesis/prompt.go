package synthesis

import (
	"fmt"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

const synthesisPrompt = `You are a procurement intelligence analyst synthesizing proprietary data and web research into one narrative.

User question: %s

Proprietary intelligence (cite with [B#]):
%s

Web research (cite with [W#]):
%s

Available citations (use ONLY these ids, inline, e.g. "Spend exposure is concentrated in Asia [B1]."):
%s

Write a thorough narrative (at least 400 characters) that weaves both sources together. Cite proprietary claims with [B#] and web claims with [W#]. Return a valid JSON object:
{"content": "<narrative with inline citations>", "agreementLevel": "high|medium|low", "keyInsight": "<one sentence takeaway>"}`

const repairPrompt = `The following analyst output should have been a JSON object of the form
{"content": "<narrative with [B#]/[W#] citations>", "agreementLevel": "high|medium|low", "keyInsight": "<one sentence>"}
but was malformed or truncated. Reconstruct and return ONLY the valid JSON object, preserving all citations:

%s`

// buildSynthesisPrompt enumerates every citation in the pool so the model
// can only cite ids that exist.
func buildSynthesisPrompt(query, beroeContent, webContent string, pool []model.Citation) string {
	var b strings.Builder
	for _, c := range pool {
		fmt.Fprintf(&b, "[%s] %s", c.ID, c.Name)
		if c.Snippet != "" {
			fmt.Fprintf(&b, ": %s", c.Snippet)
		}
		if c.URL != "" {
			fmt.Fprintf(&b, " (%s)", c.URL)
		}
		b.WriteString("\n")
	}
	if webContent == "" {
		webContent = "(none)"
	}
	return fmt.Sprintf(synthesisPrompt, query, beroeContent, webContent, b.String())
}
