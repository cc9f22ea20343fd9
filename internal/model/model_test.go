package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{90, RiskHigh},
		{75, RiskHigh},
		{74.9, RiskMediumHigh},
		{60, RiskMediumHigh},
		{59.9, RiskMedium},
		{40, RiskMedium},
		{39.9, RiskLow},
		{0, RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestSupplierRiskAccessors(t *testing.T) {
	unrated := Supplier{ID: "s-1"}
	assert.Equal(t, RiskUnrated, unrated.RiskLevelOf())
	assert.Equal(t, float64(-1), unrated.RiskScore())

	rated := Supplier{ID: "s-2", Risk: &RiskBlock{Score: 68, Level: RiskMediumHigh}}
	assert.Equal(t, RiskMediumHigh, rated.RiskLevelOf())
	assert.Equal(t, float64(68), rated.RiskScore())
}

func TestDistributionSum(t *testing.T) {
	d := RiskDistribution{High: 3, MediumHigh: 2, Medium: 10, Low: 5, Unrated: 5}
	assert.Equal(t, 25, d.Sum())
	assert.Zero(t, RiskDistribution{}.Sum())
}

func TestRiskChangeDelta(t *testing.T) {
	worsened := RiskChange{PreviousScore: 55, CurrentScore: 72}
	assert.Equal(t, float64(17), worsened.Delta())

	improved := RiskChange{PreviousScore: 72, CurrentScore: 55}
	assert.Equal(t, float64(17), improved.Delta())
}

func TestCreditAccountAvailable(t *testing.T) {
	a := CreditAccount{TotalCredits: 10000, BonusCredits: 500, LedgerDebits: 2000, ReservedCredits: 3000}
	assert.Equal(t, int64(5500), a.Available())
}

func TestRequestStatusTerminal(t *testing.T) {
	for _, s := range []RequestStatus{RequestDenied, RequestCancelled, RequestExpired, RequestFulfilled} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []RequestStatus{RequestDraft, RequestPending, RequestApproved} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Hour)))
}

func TestSourcesHas(t *testing.T) {
	s := Sources{
		Internal: []Citation{{ID: "B1"}},
		Web:      []Citation{{ID: "W1"}},
	}
	assert.True(t, s.Has("B1"))
	assert.True(t, s.Has("W1"))
	assert.False(t, s.Has("B2"))
	assert.True(t, Citation{ID: "B1"}.Internal())
	assert.False(t, Citation{ID: "W1"}.Internal())
}

func TestCitationPattern(t *testing.T) {
	matches := CitationPattern.FindAllStringSubmatch("risk rose [B1] per reports [W2], see [B12]", -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1]+m[2])
	}
	assert.Equal(t, []string{"B1", "W2", "B12"}, ids)
}
