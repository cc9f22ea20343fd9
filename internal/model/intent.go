package model

// IntentCategory is the top-level classification of a chat query.
type IntentCategory string

// Intent category constants, in routing priority order.
const (
	IntentSupplierDeepDive  IntentCategory = "supplier_deep_dive"
	IntentActionTrigger     IntentCategory = "action_trigger"
	IntentExplanationWhy    IntentCategory = "explanation_why"
	IntentComparison        IntentCategory = "comparison"
	IntentFilteredDiscovery IntentCategory = "filtered_discovery"
	IntentMarketContext     IntentCategory = "market_context"
	IntentCostInflation     IntentCategory = "cost_inflation"
	IntentPortfolioOverview IntentCategory = "portfolio_overview"
	IntentGeneral           IntentCategory = "general"
)

// SubIntent refines a category for routing and evidence selection.
type SubIntent string

// Sub-intent constants.
const (
	SubOverallSummary   SubIntent = "overall_summary"
	SubByDimension      SubIntent = "by_dimension"
	SubSpendWeighted    SubIntent = "spend_weighted"
	SubNewsEvents       SubIntent = "news_events"
	SubFindAlternatives SubIntent = "find_alternatives"
	SubRequestReport    SubIntent = "request_report"
	SubProfileLookup    SubIntent = "profile_lookup"
	SubUnratedWhy       SubIntent = "unrated_why"
	SubScoreWhy         SubIntent = "score_why"
	SubPriceOutlook     SubIntent = "price_outlook"
	SubNone             SubIntent = ""
)

// ResponseType distinguishes chat-only replies from widget-bearing ones.
type ResponseType string

// Response type constants.
const (
	ResponseTextOnly ResponseType = "text_only"
	ResponseWidget   ResponseType = "widget"
	ResponseHandoff  ResponseType = "handoff"
)

// ExtractedEntities holds values pulled from the query by the entity passes.
type ExtractedEntities struct {
	RiskLevel    RiskLevel `json:"riskLevel,omitempty"`
	Region       string    `json:"region,omitempty"`
	SupplierName string    `json:"supplierName,omitempty"`
	Commodity    string    `json:"commodity,omitempty"`
	Category     string    `json:"category,omitempty"`
}

// DetectedIntent is the classifier's verdict for one query.
type DetectedIntent struct {
	Category          IntentCategory    `json:"category"`
	SubIntent         SubIntent         `json:"subIntent,omitempty"`
	Confidence        float64           `json:"confidence"`
	ResponseType      ResponseType      `json:"responseType"`
	ArtifactType      string            `json:"artifactType,omitempty"`
	Entities          ExtractedEntities `json:"extractedEntities"`
	RequiresHandoff   bool              `json:"requiresHandoff"`
	RequiresResearch  bool              `json:"requiresResearch"`
	RequiresDiscovery bool              `json:"requiresDiscovery"`
}
