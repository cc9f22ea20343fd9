package category

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/beroe-labs/abi/internal/model"
)

// Catalog serves the managed-category taxonomy to coverage grading and
// source-confidence checks. The list is loaded once at startup; category
// activation changes take effect on restart.
type Catalog struct {
	categories []model.ManagedCategory
}

// NewCatalog wraps an in-memory category list.
func NewCatalog(categories []model.ManagedCategory) *Catalog {
	return &Catalog{categories: categories}
}

type catalogEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Keywords      []string `yaml:"keywords"`
	Active        bool     `yaml:"active"`
	ClientCount   int      `yaml:"client_count"`
	Analyst       string   `yaml:"analyst"`
	UpdateCadence string   `yaml:"update_cadence"`
	Coverage      struct {
		MarketReport bool `yaml:"market_report"`
		PriceIndex   bool `yaml:"price_index"`
		SupplierData bool `yaml:"supplier_data"`
		NewsAlerts   bool `yaml:"news_alerts"`
		CostModel    bool `yaml:"cost_model"`
	} `yaml:"coverage"`
}

type catalogFile struct {
	Categories []catalogEntry `yaml:"categories"`
}

// LoadCatalog reads the category taxonomy from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "category: read catalog %s", path)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, eris.Wrap(err, "category: parse catalog")
	}

	categories := make([]model.ManagedCategory, 0, len(file.Categories))
	for _, e := range file.Categories {
		categories = append(categories, model.ManagedCategory{
			ID:            e.ID,
			Name:          e.Name,
			Keywords:      e.Keywords,
			Active:        e.Active,
			ClientCount:   e.ClientCount,
			Analyst:       e.Analyst,
			UpdateCadence: e.UpdateCadence,
			Coverage: model.CoverageFlags{
				MarketReport: e.Coverage.MarketReport,
				PriceIndex:   e.Coverage.PriceIndex,
				SupplierData: e.Coverage.SupplierData,
				NewsAlerts:   e.Coverage.NewsAlerts,
				CostModel:    e.Coverage.CostModel,
			},
		})
	}
	return NewCatalog(categories), nil
}

// DefaultCatalog returns the built-in seed taxonomy, used when no catalog
// file is configured.
func DefaultCatalog() *Catalog {
	return NewCatalog([]model.ManagedCategory{
		{
			ID: "c-steel", Name: "Steel", Active: true, ClientCount: 45,
			Keywords: []string{"carbon steel", "stainless steel", "rebar", "hrc", "crc"},
			Coverage: model.CoverageFlags{MarketReport: true, PriceIndex: true, SupplierData: true, NewsAlerts: true, CostModel: true},
		},
		{
			ID: "c-resins", Name: "Resins", Active: true, ClientCount: 32,
			Keywords: []string{"polypropylene", "polyethylene", "pvc", "abs"},
			Coverage: model.CoverageFlags{MarketReport: true, PriceIndex: true, NewsAlerts: true},
		},
		{
			ID: "c-packaging", Name: "Packaging", Active: true, ClientCount: 28,
			Keywords: []string{"corrugated", "flexible packaging", "folding carton", "containerboard"},
			Coverage: model.CoverageFlags{MarketReport: true, SupplierData: true},
		},
		{
			ID: "c-logistics", Name: "Logistics", Active: false, ClientCount: 19,
			Keywords: []string{"ocean freight", "trucking", "air cargo", "warehousing"},
			Coverage: model.CoverageFlags{MarketReport: true, PriceIndex: true},
		},
		{
			ID: "c-electronics", Name: "Electronic Components", Active: true, ClientCount: 24,
			Keywords: []string{"semiconductors", "pcb", "passive components", "connectors"},
			Coverage: model.CoverageFlags{MarketReport: true, SupplierData: true, NewsAlerts: true},
		},
	})
}

// Categories returns the full taxonomy.
func (c *Catalog) Categories(_ context.Context) ([]model.ManagedCategory, error) {
	out := make([]model.ManagedCategory, len(c.categories))
	copy(out, c.categories)
	return out, nil
}

// ActivatedIDs returns the set of categories the subscription has activated.
func (c *Catalog) ActivatedIDs(_ context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, cat := range c.categories {
		if cat.Active {
			ids[cat.ID] = true
		}
	}
	return ids, nil
}
