package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beroe-labs/abi/internal/model"
)

func testCatalog() []model.ManagedCategory {
	return []model.ManagedCategory{
		{ID: "c1", Name: "Carbon Steel", Keywords: []string{"steel", "hrc", "rebar", "europe"}, Active: true, ClientCount: 40},
		{ID: "c2", Name: "Stainless Steel", Keywords: []string{"steel", "304", "316"}, Active: true, ClientCount: 25},
		{ID: "c3", Name: "Copper", Keywords: []string{"copper", "cathode", "wire rod"}, Active: false, ClientCount: 60},
		{ID: "c4", Name: "Corrugated Packaging", Keywords: []string{"packaging", "boxes", "containerboard"}, Active: true, ClientCount: 15},
	}
}

func TestMatchBasics(t *testing.T) {
	m := NewMatcher()
	catalog := testCatalog()
	activated := map[string]bool{"c1": true, "c2": true, "c4": true}

	got := m.Match("carbon steel", "", "", catalog, activated)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.Category.ID)
	assert.True(t, got.IsActivated)
	assert.Greater(t, got.Score, 0.0)
	assert.LessOrEqual(t, got.Score, 1.0)
}

func TestMatchEmptyInput(t *testing.T) {
	m := NewMatcher()
	assert.Nil(t, m.Match("", "", "", testCatalog(), nil))
	assert.Nil(t, m.Match("   ", "", "", testCatalog(), nil))
}

// Whenever a match is returned, recall over the query tokens was at least
// the floor; a query with no catalog vocabulary returns nothing.
func TestMatchRecallFloor(t *testing.T) {
	m := NewMatcher()
	got := m.Match("ocean freight rates from shanghai", "", "", testCatalog(), nil)
	assert.Nil(t, got)
}

func TestMatchRegionBonus(t *testing.T) {
	m := NewMatcher()
	catalog := testCatalog()

	plain := m.Match("steel", "", "", catalog, nil)
	require.NotNil(t, plain)
	regional := m.Match("steel", "Europe", "", catalog, nil)
	require.NotNil(t, regional)
	// "europe" is a c1 keyword, so the region bonus applies.
	assert.Equal(t, "c1", regional.Category.ID)
	assert.Greater(t, regional.Score, plain.Score)
}

// Two candidates within 0.05 of each other: the activated one wins; with
// equal activation the higher client count wins.
func TestMatchTiebreaks(t *testing.T) {
	m := NewMatcher()
	catalog := []model.ManagedCategory{
		{ID: "a", Name: "Industrial Resin", Keywords: []string{"resin"}, ClientCount: 10},
		{ID: "b", Name: "Polymer Resin", Keywords: []string{"resin"}, ClientCount: 50},
	}

	got := m.Match("resin", "", "", catalog, map[string]bool{"a": true})
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Category.ID, "activated wins within margin")

	got = m.Match("resin", "", "", catalog, nil)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Category.ID, "higher client count wins at same activation")
}

func TestMatchMemoization(t *testing.T) {
	m := NewMatcher()
	catalog := testCatalog()
	first := m.Match("stainless steel 316", "", "", catalog, nil)
	second := m.Match("stainless steel 316", "", "", catalog, nil)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Category.ID, second.Category.ID)
	assert.Equal(t, first.Score, second.Score)
}

func TestTokenOverlap(t *testing.T) {
	a := Tokenize("EU Steel")
	b := Tokenize("Steel EU")
	assert.Equal(t, 1.0, TokenOverlap(a, b))

	c := Tokenize("copper wire")
	assert.Less(t, TokenOverlap(a, c), 0.8)
	assert.Zero(t, TokenOverlap(a, map[string]bool{}))
}
