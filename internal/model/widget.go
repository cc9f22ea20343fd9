package model

import "encoding/json"

// WidgetType enumerates the structured cards a reply can embed. The widget
// shape is chosen by intent routing, never by the model.
type WidgetType string

// Widget type constants.
const (
	WidgetRiskDistribution    WidgetType = "risk_distribution"
	WidgetSupplierTable       WidgetType = "supplier_table"
	WidgetRiskCard            WidgetType = "risk_card"
	WidgetComparison          WidgetType = "comparison"
	WidgetAlternativesPreview WidgetType = "alternatives_preview"
	WidgetEventsFeed          WidgetType = "events_feed"
	WidgetSpendExposure       WidgetType = "spend_exposure"
	WidgetCategoryBreakdown   WidgetType = "category_breakdown"
	WidgetRiskAlert           WidgetType = "risk_alert"
	WidgetMarketSnapshot      WidgetType = "market_snapshot"
	WidgetNone                WidgetType = ""
)

// KnownWidgetTypes lists every renderable widget kind.
var KnownWidgetTypes = []WidgetType{
	WidgetRiskDistribution,
	WidgetSupplierTable,
	WidgetRiskCard,
	WidgetComparison,
	WidgetAlternativesPreview,
	WidgetEventsFeed,
	WidgetSpendExposure,
	WidgetCategoryBreakdown,
	WidgetRiskAlert,
	WidgetMarketSnapshot,
}

// ValidWidgetType reports whether t is a renderable widget kind.
func ValidWidgetType(t WidgetType) bool {
	for _, k := range KnownWidgetTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Widget is the structured card embedded in a reply. Data is the payload
// produced by the widget transformers and matches the type's schema.
type Widget struct {
	Type WidgetType      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DistributionRow is one level's slice of the risk distribution widget.
type DistributionRow struct {
	Level   RiskLevel `json:"level"`
	Count   int       `json:"count"`
	Spend   float64   `json:"spend"`
	Percent float64   `json:"percent"`
}

// DistributionData backs the risk_distribution and category_breakdown widgets.
type DistributionData struct {
	Total int               `json:"total"`
	Rows  []DistributionRow `json:"rows"`
}

// TableRow is one supplier line in the supplier_table widget.
type TableRow struct {
	SupplierID string    `json:"supplierId"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Region     string    `json:"region"`
	SpendLabel string    `json:"spendLabel"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	RiskScore  float64   `json:"riskScore"`
}

// TableData backs the supplier_table widget.
type TableData struct {
	Rows    []TableRow        `json:"rows"`
	Filters map[string]string `json:"filters,omitempty"`
}

// RiskCardData backs the risk_card widget for a single supplier.
type RiskCardData struct {
	SupplierID string    `json:"supplierId"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Region     string    `json:"region"`
	SpendLabel string    `json:"spendLabel"`
	Score      float64   `json:"score"`
	Level      RiskLevel `json:"level"`
	Trend      RiskTrend `json:"trend"`
	Factors    []string  `json:"factors,omitempty"`
}

// ComparisonColumn is one supplier in the comparison widget.
type ComparisonColumn struct {
	SupplierID string   `json:"supplierId"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// ComparisonData backs the comparison widget.
type ComparisonData struct {
	Columns        []ComparisonColumn `json:"columns"`
	Recommendation string             `json:"recommendation"`
}

// AlternativeRow is one candidate in the alternatives_preview widget.
type AlternativeRow struct {
	SupplierID string    `json:"supplierId"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Score      float64   `json:"score"`
	Level      RiskLevel `json:"level"`
	MatchScore int       `json:"matchScore"`
}

// AlternativesData backs the alternatives_preview widget.
type AlternativesData struct {
	Target       string           `json:"target"`
	Alternatives []AlternativeRow `json:"alternatives"`
}

// AlertSeverity grades a risk alert widget.
type AlertSeverity string

// Alert severity constants.
const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// AlertChange is one movement row in the risk_alert widget.
type AlertChange struct {
	SupplierID   string          `json:"supplierId"`
	SupplierName string          `json:"supplierName"`
	From         float64         `json:"from"`
	To           float64         `json:"to"`
	Direction    ChangeDirection `json:"direction"`
}

// AlertData backs the risk_alert and events_feed widgets.
type AlertData struct {
	Severity AlertSeverity `json:"severity"`
	Changes  []AlertChange `json:"changes"`
}

// SpendRow is one supplier slice of the spend_exposure widget.
type SpendRow struct {
	SupplierID string    `json:"supplierId"`
	Name       string    `json:"name"`
	Spend      float64   `json:"spend"`
	SpendLabel string    `json:"spendLabel"`
	Percent    float64   `json:"percent"`
	RiskLevel  RiskLevel `json:"riskLevel"`
}

// SpendExposureData backs the spend_exposure widget.
type SpendExposureData struct {
	TotalSpend float64    `json:"totalSpend"`
	TotalLabel string     `json:"totalLabel"`
	Rows       []SpendRow `json:"rows"`
}

// CategoryRow is one category slice of the category_breakdown widget.
type CategoryRow struct {
	Category   string  `json:"category"`
	Suppliers  int     `json:"suppliers"`
	Spend      float64 `json:"spend"`
	SpendLabel string  `json:"spendLabel"`
	HighRisk   int     `json:"highRisk"`
	AvgScore   float64 `json:"avgScore"`
}

// CategoryBreakdownData backs the category_breakdown widget.
type CategoryBreakdownData struct {
	Rows []CategoryRow `json:"rows"`
}

// MarketSnapshotData backs the market_snapshot widget.
type MarketSnapshotData struct {
	Commodity string     `json:"commodity,omitempty"`
	Region    string     `json:"region,omitempty"`
	Summary   string     `json:"summary"`
	Sources   []Citation `json:"sources,omitempty"`
}

// MarshalWidget packs a typed payload into a Widget.
func MarshalWidget(t WidgetType, data any) (*Widget, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Widget{Type: t, Data: raw}, nil
}
