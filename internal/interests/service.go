// Package interests manages the commodities and categories a user follows:
// capped CRUD with canonical-key deduplication and coverage grading through
// the managed-category matcher.
package interests

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/category"
	"github.com/beroe-labs/abi/internal/model"
)

// maxActive caps how many interests one user may track.
const maxActive = 10

// overlapThreshold marks two interests as duplicates when their token sets
// overlap at least this much on the smaller set.
const overlapThreshold = 0.8

// gradeScoreFloor is the match score below which an activated category is
// graded partial instead of decision grade.
const gradeScoreFloor = 0.75

// Errors surfaced to the HTTP layer as validation failures.
var (
	ErrDuplicate = eris.New("interests: duplicate interest")
	ErrOverCap   = eris.New("interests: active interest cap reached")
	ErrNotFound  = eris.New("interests: not found")
	ErrEmptyText = eris.New("interests: text is required")
)

// Catalog supplies the managed-category list and the tenant's activations.
type Catalog interface {
	Categories(ctx context.Context) ([]model.ManagedCategory, error)
	ActivatedIDs(ctx context.Context) (map[string]bool, error)
}

// Service holds interests in memory per user; persistence beyond the session
// is the caller's concern.
type Service struct {
	matcher *category.Matcher
	catalog Catalog
	now     func() time.Time

	mu        sync.Mutex
	interests map[string][]model.Interest // user id -> interests
}

// NewService creates an interests service over the given catalog.
func NewService(matcher *category.Matcher, catalog Catalog) *Service {
	return &Service{
		matcher:   matcher,
		catalog:   catalog,
		now:       time.Now,
		interests: make(map[string][]model.Interest),
	}
}

// CanonicalKey builds the deduplication key: the sorted, lowercased token
// set of {region, grade, tokens(text)}, pipe-joined. "EU Steel" and
// "Steel EU" share a key.
func CanonicalKey(text, region, grade string) string {
	set := category.Tokenize(text)
	for tok := range category.Tokenize(region) {
		set[tok] = true
	}
	for tok := range category.Tokenize(grade) {
		set[tok] = true
	}
	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "|")
}

// AddInput is one interest to save.
type AddInput struct {
	Text           string               `json:"text"`
	Region         string               `json:"region,omitempty"`
	Grade          string               `json:"grade,omitempty"`
	Source         model.InterestSource `json:"source,omitempty"`
	ConversationID string               `json:"conversationId,omitempty"`
}

// Add saves a new interest after cap and duplicate checks, grading its
// coverage through the category matcher.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*model.Interest, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if in.Source == "" {
		in.Source = model.InterestManual
	}

	key := CanonicalKey(text, in.Region, in.Grade)
	tokens := category.Tokenize(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.interests[userID]
	if len(existing) >= maxActive {
		return nil, eris.Wrapf(ErrOverCap, "limit %d", maxActive)
	}
	for _, it := range existing {
		if it.CanonicalKey == key {
			return nil, eris.Wrapf(ErrDuplicate, "matches %q", it.Text)
		}
		if category.TokenOverlap(tokens, category.Tokenize(it.Text)) >= overlapThreshold {
			return nil, eris.Wrapf(ErrDuplicate, "overlaps %q", it.Text)
		}
	}

	coverage, err := s.computeCoverage(ctx, text, in.Region, in.Grade)
	if err != nil {
		return nil, err
	}

	interest := model.Interest{
		ID:             uuid.NewString(),
		Text:           text,
		CanonicalKey:   key,
		Source:         in.Source,
		Region:         in.Region,
		Grade:          in.Grade,
		Coverage:       *coverage,
		SavedAt:        s.now().UTC(),
		ConversationID: in.ConversationID,
	}
	s.interests[userID] = append(existing, interest)
	return &interest, nil
}

// List returns a user's interests, newest first.
func (s *Service) List(_ context.Context, userID string) []model.Interest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Interest, len(s.interests[userID]))
	copy(out, s.interests[userID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out
}

// Update rewrites an interest's text, region, or grade, recomputing its
// canonical key and coverage.
func (s *Service) Update(ctx context.Context, userID, interestID string, in AddInput) (*model.Interest, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	coverage, err := s.computeCoverage(ctx, text, in.Region, in.Grade)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.interests[userID]
	for i := range list {
		if list[i].ID != interestID {
			continue
		}
		list[i].Text = text
		list[i].Region = in.Region
		list[i].Grade = in.Grade
		list[i].CanonicalKey = CanonicalKey(text, in.Region, in.Grade)
		list[i].Coverage = *coverage
		out := list[i]
		return &out, nil
	}
	return nil, eris.Wrapf(ErrNotFound, "interest %s", interestID)
}

// Remove deletes an interest.
func (s *Service) Remove(_ context.Context, userID, interestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.interests[userID]
	for i := range list {
		if list[i].ID == interestID {
			s.interests[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return eris.Wrapf(ErrNotFound, "interest %s", interestID)
}

// NormalizeLegacy backfills canonical keys for interests saved before the
// key existed, deduplicating any collisions in favor of the oldest entry.
func (s *Service) NormalizeLegacy(_ context.Context, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.interests[userID]
	seen := make(map[string]bool)
	kept := list[:0]
	normalized := 0
	for _, it := range list {
		if it.CanonicalKey == "" {
			it.CanonicalKey = CanonicalKey(it.Text, it.Region, it.Grade)
			normalized++
		}
		if seen[it.CanonicalKey] {
			continue
		}
		seen[it.CanonicalKey] = true
		kept = append(kept, it)
	}
	s.interests[userID] = kept
	return normalized
}

// computeCoverage grades the proprietary corpus's coverage of an interest:
// no catalog match means web research only; an activated match is decision
// grade when the grade-specific signal is strong, partial otherwise; a
// non-activated match is available for activation.
func (s *Service) computeCoverage(ctx context.Context, text, region, grade string) (*model.InterestCoverage, error) {
	catalog, err := s.catalog.Categories(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "interests: load catalog")
	}
	activated, err := s.catalog.ActivatedIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "interests: load activations")
	}

	match := s.matcher.Match(text, region, grade, catalog, activated)
	if match == nil {
		return &model.InterestCoverage{
			Level:  model.CoverageWebOnly,
			Reason: "no managed category covers this interest",
		}, nil
	}

	coverage := model.InterestCoverage{
		CategoryID: match.Category.ID,
		Category:   match.Category.Name,
	}
	switch {
	case match.IsActivated && match.Score >= gradeScoreFloor:
		coverage.Level = model.CoverageDecisionGrade
	case match.IsActivated:
		coverage.Level = model.CoveragePartial
		coverage.Reason = "grade-specific signal is weak for this category"
	default:
		coverage.Level = model.CoverageAvailable
		coverage.Reason = "category exists but is not activated for this tenant"
	}
	return &coverage, nil
}
