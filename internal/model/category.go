package model

// CoverageFlags marks which proprietary features a managed category unlocks.
type CoverageFlags struct {
	MarketReport bool `json:"marketReport"`
	PriceIndex   bool `json:"priceIndex"`
	SupplierData bool `json:"supplierData"`
	NewsAlerts   bool `json:"newsAlerts"`
	CostModel    bool `json:"costModel"`
}

// ManagedCategory is a taxonomy node from the managed-category catalog.
type ManagedCategory struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Keywords      []string      `json:"keywords"`
	Active        bool          `json:"active"`
	ClientCount   int           `json:"clientCount"`
	Coverage      CoverageFlags `json:"coverage"`
	Analyst       string        `json:"analyst,omitempty"`
	UpdateCadence string        `json:"updateCadence,omitempty"`
}
