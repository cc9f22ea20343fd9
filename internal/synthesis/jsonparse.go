package synthesis

import (
	"encoding/json"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

// synthesisReply is the JSON contract the synthesis model is asked to honor.
type synthesisReply struct {
	Content        string `json:"content"`
	AgreementLevel string `json:"agreementLevel"`
	KeyInsight     string `json:"keyInsight,omitempty"`
}

// ParseJSONResponse recovers a synthesis reply from model output that may or
// may not be valid JSON. Strategies, in order:
//  1. direct parse after stripping markdown fences;
//  2. largest balanced {...} slice;
//  3. manual extraction of the "content" field, honoring escapes;
//  4. the raw text itself, accepted only if it carries citation markers.
//
// Returns ok=false when no strategy yields usable content.
func ParseJSONResponse(raw string) (synthesisReply, bool) {
	text := stripFences(raw)

	var reply synthesisReply
	if err := json.Unmarshal([]byte(text), &reply); err == nil && reply.Content != "" {
		return reply, true
	}

	if slice, ok := balancedObject(text); ok {
		if err := json.Unmarshal([]byte(slice), &reply); err == nil && reply.Content != "" {
			return reply, true
		}
	}

	if content, ok := extractContentField(text); ok {
		return synthesisReply{Content: content}, true
	}

	if model.CitationPattern.MatchString(text) {
		return synthesisReply{Content: strings.TrimSpace(text)}, true
	}

	return synthesisReply{}, false
}

// stripFences removes a leading/trailing markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		// A short first line is a language tag, not content.
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// balancedObject returns the largest balanced top-level {...} slice,
// tracking string and escape state so braces inside strings don't count.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	end := -1
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					end = i
				}
			}
		}
	}
	if end < 0 {
		return "", false
	}
	return s[start : end+1], true
}

// extractContentField pulls the value of a "content" key by scanning the
// string manually, honoring backslash escapes. Survives otherwise-broken
// JSON such as trailing garbage or unescaped newlines elsewhere.
func extractContentField(s string) (string, bool) {
	keyIdx := strings.Index(s, `"content"`)
	if keyIdx < 0 {
		return "", false
	}
	rest := s[keyIdx+len(`"content"`):]

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}
	rest = strings.TrimLeft(rest[colon+1:], " \t\r\n")
	if len(rest) == 0 || rest[0] != '"' {
		return "", false
	}
	rest = rest[1:]

	var b strings.Builder
	escaped := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			content := strings.TrimSpace(b.String())
			return content, content != ""
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}
