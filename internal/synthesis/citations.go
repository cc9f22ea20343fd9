package synthesis

import (
	"regexp"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

// CountCitations returns how many distinct citation tokens with the given
// prefix ('B' or 'W') appear in text.
func CountCitations(text string, prefix byte) int {
	seen := make(map[string]bool)
	for _, m := range model.CitationPattern.FindAllStringSubmatch(text, -1) {
		if m[1][0] == prefix {
			seen[m[1]+m[2]] = true
		}
	}
	return len(seen)
}

// CitedIDs returns the distinct citation ids in text, in order of first
// appearance.
func CitedIDs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range model.CitationPattern.FindAllStringSubmatch(text, -1) {
		id := m[1] + m[2]
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var (
	doubledSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	spacedPunctPattern  = regexp.MustCompile(` +([.,;:])`)
	sentenceBreak       = regexp.MustCompile(`(?m)(?:[.!?]\s+|\n+)`)
)

// ValidateCitations strips citation tokens whose ids are not in the valid
// set, cleaning up doubled whitespace left behind.
func ValidateCitations(text string, valid map[string]bool) string {
	out := model.CitationPattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := strings.Trim(tok, "[]")
		if valid[id] {
			return tok
		}
		return ""
	})
	out = doubledSpacePattern.ReplaceAllString(out, " ")
	out = spacedPunctPattern.ReplaceAllString(out, "$1")
	return out
}

// PoolIDs builds the valid-id set from a citation pool.
func PoolIDs(pool []model.Citation) map[string]bool {
	ids := make(map[string]bool, len(pool))
	for _, c := range pool {
		ids[c.ID] = true
	}
	return ids
}

// splitSentences breaks text into trimmed sentences, dropping empties.
// Markdown headings and bullets count as sentence breaks.
func splitSentences(text string) []string {
	parts := sentenceBreak.Split(text, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*# "))
		if len(p) < 10 {
			continue
		}
		if !strings.HasSuffix(p, ".") && !strings.HasSuffix(p, "!") && !strings.HasSuffix(p, "?") {
			p += "."
		}
		out = append(out, p)
	}
	return out
}

// stripCitationTokens removes all inline citation tokens from text.
func stripCitationTokens(text string) string {
	out := model.CitationPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(doubledSpacePattern.ReplaceAllString(out, " "))
}
