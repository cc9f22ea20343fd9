package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/kvstore"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/router"
)

type fakeSource struct {
	portfolio      *model.Portfolio
	suppliers      []model.Supplier
	changes        []model.RiskChange
	portfolioCalls int
	fail           bool
}

func (f *fakeSource) Portfolio(context.Context) (*model.Portfolio, error) {
	f.portfolioCalls++
	if f.fail {
		return nil, eris.New("upstream down")
	}
	return f.portfolio, nil
}

func (f *fakeSource) Suppliers(context.Context) ([]model.Supplier, error) {
	if f.fail {
		return nil, eris.New("upstream down")
	}
	return f.suppliers, nil
}

func (f *fakeSource) RiskChanges(context.Context, time.Duration) ([]model.RiskChange, error) {
	if f.fail {
		return nil, eris.New("upstream down")
	}
	return f.changes, nil
}

func risky(id, name, category string, score float64) model.Supplier {
	return model.Supplier{
		ID: id, Name: name, Category: category, Region: "Asia",
		Risk: &model.RiskBlock{Score: score, Level: model.LevelForScore(score)},
	}
}

func unrated(id, name string) model.Supplier {
	return model.Supplier{ID: id, Name: name, Risk: &model.RiskBlock{Level: model.RiskUnrated}}
}

func testSuppliers() []model.Supplier {
	return []model.Supplier{
		risky("s1", "Acme Corp", "Electronics", 72),
		risky("s2", "Globex", "Electronics", 45),
		risky("s3", "Initech", "Electronics", 30),
		risky("s4", "Umbrella", "Packaging", 80),
		unrated("s5", "Hooli"),
	}
}

func newFetcher(src *fakeSource) *Fetcher {
	return NewFetcher(src, kvstore.NewMemory())
}

func TestPortfolioCache(t *testing.T) {
	src := &fakeSource{portfolio: &model.Portfolio{TotalSuppliers: 25}}
	f := newFetcher(src)
	route := router.WidgetRoute{RequiresPortfolio: true}

	ev := f.Fetch(context.Background(), model.DetectedIntent{}, route)
	require.NotNil(t, ev.Portfolio)
	assert.Equal(t, 25, ev.Portfolio.TotalSuppliers)

	f.Fetch(context.Background(), model.DetectedIntent{}, route)
	assert.Equal(t, 1, src.portfolioCalls, "second fetch is served from cache")
}

func TestPortfolioZeroedFallback(t *testing.T) {
	f := newFetcher(&fakeSource{fail: true})
	ev := f.Fetch(context.Background(), model.DetectedIntent{}, router.WidgetRoute{RequiresPortfolio: true})
	require.NotNil(t, ev.Portfolio)
	assert.Zero(t, ev.Portfolio.TotalSuppliers)
}

func TestFilteredDiscovery(t *testing.T) {
	f := newFetcher(&fakeSource{suppliers: testSuppliers()})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category: model.IntentFilteredDiscovery,
		Entities: model.ExtractedEntities{RiskLevel: model.RiskHigh},
	}, router.WidgetRoute{RequiresSuppliers: true})

	require.Len(t, ev.Suppliers, 1)
	assert.Equal(t, "Umbrella", ev.Suppliers[0].Name)
}

func TestDeepDiveSubstringResolution(t *testing.T) {
	f := newFetcher(&fakeSource{suppliers: testSuppliers()})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category: model.IntentSupplierDeepDive,
		Entities: model.ExtractedEntities{SupplierName: "acme"},
	}, router.WidgetRoute{RequiresSuppliers: true})

	require.NotNil(t, ev.Target)
	assert.Equal(t, "Acme Corp", ev.Target.Name)
}

func TestFindAlternatives(t *testing.T) {
	f := newFetcher(&fakeSource{suppliers: testSuppliers()})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category:  model.IntentActionTrigger,
		SubIntent: model.SubFindAlternatives,
		Entities:  model.ExtractedEntities{SupplierName: "Acme Corp"},
	}, router.WidgetRoute{RequiresSuppliers: true})

	require.NotNil(t, ev.Target)
	require.Len(t, ev.Alternatives, 2, "two lower-risk electronics suppliers")
	assert.Equal(t, "Initech", ev.Alternatives[0].Name, "sorted best score first")
	assert.Equal(t, "Globex", ev.Alternatives[1].Name)
	for _, alt := range ev.Alternatives {
		assert.NotEqual(t, "s1", alt.ID, "target excluded")
		assert.Less(t, alt.RiskScore(), 72.0)
	}
}

// When no same-category supplier scores lower, the fallback is the rest of
// the category minus the target.
func TestFindAlternativesFallback(t *testing.T) {
	suppliers := []model.Supplier{
		risky("s1", "Acme Corp", "Electronics", 20),
		risky("s2", "Globex", "Electronics", 45),
	}
	f := newFetcher(&fakeSource{suppliers: suppliers})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category:  model.IntentActionTrigger,
		SubIntent: model.SubFindAlternatives,
		Entities:  model.ExtractedEntities{SupplierName: "Acme Corp"},
	}, router.WidgetRoute{RequiresSuppliers: true})

	require.Len(t, ev.Alternatives, 1)
	assert.Equal(t, "Globex", ev.Alternatives[0].Name)
}

func TestUnratedListing(t *testing.T) {
	f := newFetcher(&fakeSource{suppliers: testSuppliers()})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category:  model.IntentExplanationWhy,
		SubIntent: model.SubUnratedWhy,
	}, router.WidgetRoute{RequiresSuppliers: true})

	require.Len(t, ev.Suppliers, 1)
	assert.Equal(t, "Hooli", ev.Suppliers[0].Name)
}

func TestComparisonDefaultsToFirstThree(t *testing.T) {
	f := newFetcher(&fakeSource{suppliers: testSuppliers()})
	ev := f.Fetch(context.Background(), model.DetectedIntent{
		Category: model.IntentComparison,
	}, router.WidgetRoute{RequiresSuppliers: true})

	assert.Len(t, ev.Suppliers, 3)
}

func TestRiskChangesJoined(t *testing.T) {
	src := &fakeSource{
		suppliers: testSuppliers(),
		changes: []model.RiskChange{
			{SupplierID: "s1", PreviousScore: 60, CurrentScore: 72, Direction: model.DirectionWorsened},
			{SupplierID: "zz", PreviousScore: 50, CurrentScore: 40, Direction: model.DirectionImproved},
		},
	}
	f := newFetcher(src)
	ev := f.Fetch(context.Background(), model.DetectedIntent{Category: model.IntentPortfolioOverview},
		router.WidgetRoute{RequiresRiskChanges: true})

	require.Len(t, ev.Changes, 2)
	assert.Contains(t, ev.ChangedSuppliers, "s1")
	assert.NotContains(t, ev.ChangedSuppliers, "zz", "unknown supplier ids are not joined")
}
