package model

import "time"

// RiskLevel buckets a supplier's composite risk score.
type RiskLevel string

// Risk level constants, ordered worst to best.
const (
	RiskHigh       RiskLevel = "high"
	RiskMediumHigh RiskLevel = "medium-high"
	RiskMedium     RiskLevel = "medium"
	RiskLow        RiskLevel = "low"
	RiskUnrated    RiskLevel = "unrated"
)

// RiskTrend describes score movement over the recent window.
type RiskTrend string

// Risk trend constants.
const (
	TrendWorsening RiskTrend = "worsening"
	TrendStable    RiskTrend = "stable"
	TrendImproving RiskTrend = "improving"
)

// RiskBlock holds a supplier's current risk assessment. Scores run 0-100
// where higher is worse. Level is derived from Score for scored suppliers;
// an unrated supplier carries no score.
type RiskBlock struct {
	Score         float64   `json:"score"`
	PreviousScore float64   `json:"previousScore"`
	Level         RiskLevel `json:"level"`
	Trend         RiskTrend `json:"trend"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Factors       []string  `json:"factors,omitempty"`
}

// Supplier is a single vendor in the client's portfolio.
type Supplier struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Region      string     `json:"region"`
	Country     string     `json:"country"`
	Spend       float64    `json:"spend"`
	SpendLabel  string     `json:"spendLabel"`
	Risk        *RiskBlock `json:"risk,omitempty"`
}

// RiskScore returns the supplier's score, or -1 when unrated.
func (s Supplier) RiskScore() float64 {
	if s.Risk == nil || s.Risk.Level == RiskUnrated {
		return -1
	}
	return s.Risk.Score
}

// RiskLevelOf returns the supplier's risk level, defaulting to unrated.
func (s Supplier) RiskLevelOf() RiskLevel {
	if s.Risk == nil {
		return RiskUnrated
	}
	return s.Risk.Level
}

// LevelForScore maps a composite score to its risk bucket.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 75:
		return RiskHigh
	case score >= 60:
		return RiskMediumHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskDistribution counts suppliers per risk bucket. The bucket sum must
// equal the portfolio's TotalSuppliers.
type RiskDistribution struct {
	High       int `json:"high"`
	MediumHigh int `json:"mediumHigh"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
	Unrated    int `json:"unrated"`
}

// Sum returns the total suppliers covered by the distribution.
func (d RiskDistribution) Sum() int {
	return d.High + d.MediumHigh + d.Medium + d.Low + d.Unrated
}

// Portfolio summarizes the client's supplier base.
type Portfolio struct {
	TotalSuppliers int              `json:"totalSuppliers"`
	TotalSpend     float64          `json:"totalSpend"`
	Distribution   RiskDistribution `json:"distribution"`
}

// ChangeDirection tags a risk score movement.
type ChangeDirection string

// Change direction constants.
const (
	DirectionWorsened ChangeDirection = "worsened"
	DirectionImproved ChangeDirection = "improved"
)

// RiskChange records one supplier score movement. Direction is worsened
// exactly when CurrentScore > PreviousScore.
type RiskChange struct {
	SupplierID    string          `json:"supplierId"`
	PreviousScore float64         `json:"previousScore"`
	CurrentScore  float64         `json:"currentScore"`
	Direction     ChangeDirection `json:"direction"`
	ChangeDate    time.Time       `json:"changeDate"`
}

// Delta returns the absolute score movement.
func (c RiskChange) Delta() float64 {
	d := c.CurrentScore - c.PreviousScore
	if d < 0 {
		return -d
	}
	return d
}
