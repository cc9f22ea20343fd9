package category

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	yaml := `
categories:
  - id: c-steel
    name: Steel
    keywords: [carbon steel, rebar, hrc]
    active: true
    client_count: 40
    coverage:
      market_report: true
      price_index: true
  - id: c-resins
    name: Resins
    keywords: [polypropylene]
    active: false
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	cats, err := catalog.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Steel", cats[0].Name)
	assert.True(t, cats[0].Coverage.MarketReport)
	assert.False(t, cats[0].Coverage.CostModel)

	ids, err := catalog.ActivatedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"c-steel": true}, ids)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
