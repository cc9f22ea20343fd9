// Package router maps a detected intent to the widget and data sets a reply
// needs. The mapping is a registry-driven table so the same routes are
// reusable outside the chat pipeline.
package router

import "github.com/beroe-labs/abi/internal/model"

// WidgetRoute describes what a reply for an intent requires.
type WidgetRoute struct {
	WidgetType          model.WidgetType
	ArtifactType        string
	RequiresSuppliers   bool
	RequiresPortfolio   bool
	RequiresRiskChanges bool
	RequiresHandoff     bool
}

// baseRoutes keys the default route by intent category.
var baseRoutes = map[model.IntentCategory]WidgetRoute{
	model.IntentPortfolioOverview: {
		WidgetType:        model.WidgetRiskDistribution,
		ArtifactType:      "portfolio_dashboard",
		RequiresPortfolio: true,
		RequiresSuppliers: true,
	},
	model.IntentFilteredDiscovery: {
		WidgetType:        model.WidgetSupplierTable,
		ArtifactType:      "supplier_list",
		RequiresSuppliers: true,
	},
	model.IntentSupplierDeepDive: {
		WidgetType:        model.WidgetRiskCard,
		ArtifactType:      "supplier_profile",
		RequiresSuppliers: true,
	},
	model.IntentComparison: {
		WidgetType:        model.WidgetComparison,
		ArtifactType:      "supplier_comparison",
		RequiresSuppliers: true,
	},
	model.IntentExplanationWhy: {
		WidgetType:          model.WidgetSupplierTable,
		ArtifactType:        "risk_explanation",
		RequiresSuppliers:   true,
		RequiresRiskChanges: true,
	},
	model.IntentActionTrigger: {
		WidgetType:        model.WidgetAlternativesPreview,
		ArtifactType:      "supplier_alternatives",
		RequiresSuppliers: true,
	},
	model.IntentMarketContext: {
		WidgetType:   model.WidgetMarketSnapshot,
		ArtifactType: "market_brief",
	},
	model.IntentCostInflation: {
		WidgetType:   model.WidgetMarketSnapshot,
		ArtifactType: "price_outlook",
	},
	model.IntentGeneral: {
		WidgetType: model.WidgetNone,
	},
}

// subOverride is a partial route merged over the base route when the
// sub-intent matches.
type subOverride struct {
	widgetType   model.WidgetType
	artifactType string
	riskChanges  bool
	handoff      bool
}

var subOverrides = map[model.SubIntent]subOverride{
	model.SubFindAlternatives: {
		widgetType:   model.WidgetAlternativesPreview,
		artifactType: "supplier_alternatives",
	},
	model.SubRequestReport: {
		widgetType: model.WidgetNone,
		handoff:    true,
	},
	model.SubNewsEvents: {
		widgetType:   model.WidgetEventsFeed,
		artifactType: "events_feed",
		riskChanges:  true,
	},
	model.SubSpendWeighted: {
		widgetType:   model.WidgetSpendExposure,
		artifactType: "spend_exposure",
	},
	model.SubByDimension: {
		widgetType:   model.WidgetCategoryBreakdown,
		artifactType: "category_breakdown",
	},
}

// Route resolves the widget route for an intent. A handoff intent always
// routes to no widget.
func Route(intent model.DetectedIntent) WidgetRoute {
	route, ok := baseRoutes[intent.Category]
	if !ok {
		route = baseRoutes[model.IntentGeneral]
	}

	if ov, ok := subOverrides[intent.SubIntent]; ok {
		if ov.widgetType != route.WidgetType {
			route.WidgetType = ov.widgetType
		}
		if ov.artifactType != "" {
			route.ArtifactType = ov.artifactType
		}
		if ov.riskChanges {
			route.RequiresRiskChanges = true
		}
		if ov.handoff {
			route.RequiresHandoff = true
		}
	}

	if intent.RequiresHandoff || route.RequiresHandoff {
		route.RequiresHandoff = true
		route.WidgetType = model.WidgetNone
		route.ArtifactType = ""
	}

	return route
}

// Registry returns a copy of the base route table keyed by category.
func Registry() map[model.IntentCategory]WidgetRoute {
	out := make(map[model.IntentCategory]WidgetRoute, len(baseRoutes))
	for k, v := range baseRoutes {
		out[k] = v
	}
	return out
}
