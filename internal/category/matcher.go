// Package category matches free-form interest text to the managed-category
// catalog using token-overlap scoring. Matching is pure and performs no I/O;
// per-category token sets are memoized by catalog entry identity.
package category

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/beroe-labs/abi/internal/model"
)

// Scoring weights. Recall (query tokens found in the category) dominates;
// precision penalizes matches on one incidental word of a large token set.
const (
	recallWeight    = 0.6
	precisionWeight = 0.4
	contextBonus    = 0.1
	recallFloor     = 0.4
	tiebreakMargin  = 0.05
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// stopwords are dropped from token sets before scoring.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true,
	"of": true, "the": true, "to": true, "with": true,
}

// MatchResult is the best catalog match for an interest.
type MatchResult struct {
	Category    model.ManagedCategory
	IsActivated bool
	Score       float64
}

// Matcher scores interest text against a catalog. Safe for concurrent use.
type Matcher struct {
	mu     sync.Mutex
	tokens map[string]map[string]bool // category id -> token set
}

// NewMatcher creates a Matcher with an empty memo.
func NewMatcher() *Matcher {
	return &Matcher{tokens: make(map[string]map[string]bool)}
}

// Tokenize splits text into a normalized token set.
func Tokenize(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenSplit.Split(strings.ToLower(text), -1) {
		if tok == "" || stopwords[tok] {
			continue
		}
		set[tok] = true
	}
	return set
}

// categoryTokens returns the memoized token set for a catalog entry: name
// tokens plus keyword tokens.
func (m *Matcher) categoryTokens(c model.ManagedCategory) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.tokens[c.ID]; ok {
		return set
	}
	set := Tokenize(c.Name)
	for _, kw := range c.Keywords {
		for tok := range Tokenize(kw) {
			set[tok] = true
		}
	}
	m.tokens[c.ID] = set
	return set
}

// Match returns the best catalog match for the given interest text, or nil
// when no candidate clears the recall floor. Region and grade tokens found
// in the category token set add a bonus. Ranking: highest score; within
// 0.05, prefer activated; within the same activation, higher client count.
func (m *Matcher) Match(text, region, grade string, catalog []model.ManagedCategory, activated map[string]bool) *MatchResult {
	queryTokens := Tokenize(text)
	if len(queryTokens) == 0 {
		return nil
	}

	type candidate struct {
		result MatchResult
	}
	var candidates []candidate

	for _, c := range catalog {
		catTokens := m.categoryTokens(c)
		if len(catTokens) == 0 {
			continue
		}

		shared := 0
		for tok := range queryTokens {
			if catTokens[tok] {
				shared++
			}
		}
		recall := float64(shared) / float64(len(queryTokens))
		if recall < recallFloor {
			continue
		}

		maxLen := len(queryTokens)
		if len(catTokens) > maxLen {
			maxLen = len(catTokens)
		}
		precision := float64(shared) / float64(maxLen)

		score := recallWeight*recall + precisionWeight*precision
		for _, ctx := range []string{region, grade} {
			if ctx == "" {
				continue
			}
			for tok := range Tokenize(ctx) {
				if catTokens[tok] {
					score += contextBonus
					break
				}
			}
		}
		if score > 1.0 {
			score = 1.0
		}

		candidates = append(candidates, candidate{MatchResult{
			Category:    c,
			IsActivated: activated[c.ID],
			Score:       score,
		}})
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].result, candidates[j].result
		if diff(a.Score, b.Score) <= tiebreakMargin {
			if a.IsActivated != b.IsActivated {
				return a.IsActivated
			}
			return a.Category.ClientCount > b.Category.ClientCount
		}
		return a.Score > b.Score
	})

	best := candidates[0].result
	return &best
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// TokenOverlap returns shared/min ratio between two token sets. Used by the
// interests service for near-duplicate detection.
func TokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for tok := range small {
		if large[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
