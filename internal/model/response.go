package model

import "regexp"

// Provider identifies which engine produced a response narrative.
type Provider string

// Provider constants. Local means the deterministic fallback composed the
// reply without a model call succeeding.
const (
	ProviderGemini     Provider = "gemini"
	ProviderPerplexity Provider = "perplexity"
	ProviderHybrid     Provider = "hybrid"
	ProviderLocal      Provider = "local"
)

// CitationPattern matches inline citation tokens in a narrative.
var CitationPattern = regexp.MustCompile(`\[([BW])(\d+)\]`)

// CitationIDPattern validates a citation id.
var CitationIDPattern = regexp.MustCompile(`^[BW]\d+$`)

// Citation is one evidence item. B-prefixed ids are internal (proprietary
// corpus); W-prefixed ids are web research results.
type Citation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	Category string `json:"category,omitempty"`
}

// Internal reports whether the citation comes from the proprietary corpus.
func (c Citation) Internal() bool {
	return len(c.ID) > 0 && c.ID[0] == 'B'
}

// Sources groups a response's citations by origin.
type Sources struct {
	Web                []Citation `json:"web"`
	Internal           []Citation `json:"internal"`
	TotalWebCount      int        `json:"totalWebCount"`
	TotalInternalCount int        `json:"totalInternalCount"`
	Confidence         string     `json:"confidence,omitempty"`
}

// Has reports whether an id is present in either source list.
func (s Sources) Has(id string) bool {
	for _, c := range s.Internal {
		if c.ID == id {
			return true
		}
	}
	for _, c := range s.Web {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Handoff describes a reply that must direct the user to a gated surface
// instead of answering in chat.
type Handoff struct {
	Reason    string `json:"reason"`
	LinkLabel string `json:"linkLabel"`
}

// ResponseEnvelope is the canonical chat reply. Every citation token in
// Narrative must resolve to an entry in Sources.
type ResponseEnvelope struct {
	ID              string         `json:"id"`
	Acknowledgement string         `json:"acknowledgement"`
	Narrative       string         `json:"narrative"`
	Provider        Provider       `json:"provider"`
	Widget          *Widget        `json:"widget,omitempty"`
	Insight         string         `json:"insight,omitempty"`
	Suggestions     []string       `json:"suggestions"`
	Sources         Sources        `json:"sources"`
	Intent          DetectedIntent `json:"intent"`
	Handoff         *Handoff       `json:"handoff,omitempty"`
}
