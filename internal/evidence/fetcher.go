// Package evidence assembles the internal data slice a reply needs: the
// portfolio summary, a supplier slice specialized by intent, and recent
// risk changes. Source failures degrade to zeroed data so the chat path
// never propagates an upstream error.
package evidence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/kvstore"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/router"
)

// portfolioTTL bounds staleness of the cached portfolio summary.
const portfolioTTL = 5 * time.Minute

const portfolioCacheKey = "evidence:portfolio"

// riskChangeWindow is how far back recent changes are fetched.
const riskChangeWindow = 30 * 24 * time.Hour

// comparisonDefault is how many suppliers a comparison shows when none are
// named.
const comparisonDefault = 3

// Source reads from the supplier-intelligence upstream.
type Source interface {
	Portfolio(ctx context.Context) (*model.Portfolio, error)
	Suppliers(ctx context.Context) ([]model.Supplier, error)
	RiskChanges(ctx context.Context, since time.Duration) ([]model.RiskChange, error)
}

// Evidence is the assembled internal data slice for one reply.
type Evidence struct {
	Portfolio    *model.Portfolio
	Suppliers    []model.Supplier
	Target       *model.Supplier
	Alternatives []model.Supplier
	Changes      []model.RiskChange
	// ChangedSuppliers indexes suppliers referenced by Changes.
	ChangedSuppliers map[string]model.Supplier
}

// Fetcher loads evidence with a short-lived portfolio cache.
type Fetcher struct {
	source Source
	cache  kvstore.Store
}

// NewFetcher creates a Fetcher.
func NewFetcher(source Source, cache kvstore.Store) *Fetcher {
	return &Fetcher{source: source, cache: cache}
}

// Fetch assembles the data sets the route requires. It never returns an
// error: on source failure the portfolio is zeroed and slices are empty,
// letting downstream components degrade gracefully.
func (f *Fetcher) Fetch(ctx context.Context, intent model.DetectedIntent, route router.WidgetRoute) *Evidence {
	ev := &Evidence{ChangedSuppliers: make(map[string]model.Supplier)}

	if route.RequiresPortfolio {
		ev.Portfolio = f.portfolio(ctx)
	}

	var suppliers []model.Supplier
	if route.RequiresSuppliers || route.RequiresRiskChanges {
		var err error
		suppliers, err = f.source.Suppliers(ctx)
		if err != nil {
			zap.L().Warn("evidence: supplier fetch failed", zap.Error(err))
			suppliers = nil
		}
	}

	if route.RequiresSuppliers {
		f.selectSuppliers(ev, intent, suppliers)
	}

	if route.RequiresRiskChanges {
		changes, err := f.source.RiskChanges(ctx, riskChangeWindow)
		if err != nil {
			zap.L().Warn("evidence: risk change fetch failed", zap.Error(err))
		} else {
			ev.Changes = changes
			byID := make(map[string]model.Supplier, len(suppliers))
			for _, s := range suppliers {
				byID[s.ID] = s
			}
			for _, c := range changes {
				if s, ok := byID[c.SupplierID]; ok {
					ev.ChangedSuppliers[c.SupplierID] = s
				}
			}
		}
	}

	return ev
}

// portfolio returns the cached portfolio summary, fetching on miss. A fetch
// failure yields a zeroed portfolio.
func (f *Fetcher) portfolio(ctx context.Context) *model.Portfolio {
	if raw, ok, _ := f.cache.Get(ctx, portfolioCacheKey); ok {
		var p model.Portfolio
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p
		}
	}

	p, err := f.source.Portfolio(ctx)
	if err != nil {
		zap.L().Warn("evidence: portfolio fetch failed, using zeroed fallback", zap.Error(err))
		return &model.Portfolio{}
	}

	if raw, err := json.Marshal(p); err == nil {
		_ = f.cache.SetWithTTL(ctx, portfolioCacheKey, raw, portfolioTTL)
	}
	return p
}

// selectSuppliers specializes the supplier slice by intent category.
func (f *Fetcher) selectSuppliers(ev *Evidence, intent model.DetectedIntent, suppliers []model.Supplier) {
	switch intent.Category {
	case model.IntentFilteredDiscovery:
		ev.Suppliers = filterSuppliers(suppliers, intent.Entities)

	case model.IntentSupplierDeepDive:
		ev.Target = findSupplier(suppliers, intent.Entities.SupplierName)
		if ev.Target != nil {
			ev.Suppliers = []model.Supplier{*ev.Target}
		}

	case model.IntentActionTrigger:
		if intent.SubIntent != model.SubFindAlternatives {
			return
		}
		target := findSupplier(suppliers, intent.Entities.SupplierName)
		if target == nil {
			return
		}
		ev.Target = target
		ev.Alternatives = lowerRiskAlternatives(suppliers, *target)
		ev.Suppliers = ev.Alternatives

	case model.IntentExplanationWhy:
		if intent.SubIntent == model.SubUnratedWhy {
			for _, s := range suppliers {
				if s.RiskLevelOf() == model.RiskUnrated {
					ev.Suppliers = append(ev.Suppliers, s)
				}
			}
			return
		}
		ev.Suppliers = suppliers

	case model.IntentComparison:
		ev.Suppliers = comparisonSet(suppliers, intent.Entities.SupplierName)

	default:
		ev.Suppliers = suppliers
	}
}

// filterSuppliers applies risk-level and region filters from extracted
// entities.
func filterSuppliers(suppliers []model.Supplier, e model.ExtractedEntities) []model.Supplier {
	var out []model.Supplier
	for _, s := range suppliers {
		if e.RiskLevel != "" && s.RiskLevelOf() != e.RiskLevel {
			continue
		}
		if e.Region != "" && !strings.EqualFold(s.Region, e.Region) &&
			!strings.EqualFold(s.Country, e.Region) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// findSupplier resolves a named supplier exactly, then by substring.
func findSupplier(suppliers []model.Supplier, name string) *model.Supplier {
	if name == "" {
		return nil
	}
	lower := strings.ToLower(name)
	for i := range suppliers {
		if strings.EqualFold(suppliers[i].Name, name) {
			return &suppliers[i]
		}
	}
	for i := range suppliers {
		if strings.Contains(strings.ToLower(suppliers[i].Name), lower) {
			return &suppliers[i]
		}
	}
	return nil
}

// lowerRiskAlternatives returns same-category suppliers with strictly lower
// risk scores than the target, best first. When none score lower, the
// fallback is the rest of the category.
func lowerRiskAlternatives(suppliers []model.Supplier, target model.Supplier) []model.Supplier {
	var lower, sameCategory []model.Supplier
	targetScore := target.RiskScore()
	for _, s := range suppliers {
		if s.ID == target.ID || !strings.EqualFold(s.Category, target.Category) {
			continue
		}
		sameCategory = append(sameCategory, s)
		if score := s.RiskScore(); score >= 0 && targetScore >= 0 && score < targetScore {
			lower = append(lower, s)
		}
	}

	out := lower
	if len(out) == 0 {
		out = sameCategory
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RiskScore() < out[j].RiskScore()
	})
	return out
}

// comparisonSet returns named suppliers, or the first three when the query
// names none.
func comparisonSet(suppliers []model.Supplier, name string) []model.Supplier {
	if name != "" {
		if s := findSupplier(suppliers, name); s != nil {
			return []model.Supplier{*s}
		}
	}
	if len(suppliers) > comparisonDefault {
		return suppliers[:comparisonDefault]
	}
	return suppliers
}
