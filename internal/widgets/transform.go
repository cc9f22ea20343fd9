// Package widgets maps domain objects to widget payloads. Every transformer
// is pure and total: missing risk blocks, empty slices, and zero portfolios
// produce empty-but-valid payloads, never panics.
package widgets

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/beroe-labs/abi/internal/model"
)

// criticalDelta is the single-change score movement that makes an alert
// critical.
const criticalDelta = 10

// maxMatchScore caps alternative match scores below a perfect fit.
const maxMatchScore = 98

var spendPrinter = message.NewPrinter(language.English)

// SpendLabel renders a spend amount as a compact human label.
func SpendLabel(spend float64) string {
	switch {
	case spend >= 1e9:
		return fmt.Sprintf("$%.1fB", spend/1e9)
	case spend >= 1e6:
		return fmt.Sprintf("$%.1fM", spend/1e6)
	case spend >= 1e3:
		return fmt.Sprintf("$%.0fK", spend/1e3)
	default:
		return spendPrinter.Sprintf("$%.0f", spend)
	}
}

func spendLabelOr(s model.Supplier) string {
	if s.SpendLabel != "" {
		return s.SpendLabel
	}
	return SpendLabel(s.Spend)
}

// RiskCard builds the single-supplier profile card.
func RiskCard(s model.Supplier) model.RiskCardData {
	card := model.RiskCardData{
		SupplierID: s.ID,
		Name:       s.Name,
		Category:   s.Category,
		Region:     s.Region,
		SpendLabel: spendLabelOr(s),
		Level:      s.RiskLevelOf(),
		Trend:      model.TrendStable,
	}
	if s.Risk != nil {
		card.Score = s.Risk.Score
		if s.Risk.Trend != "" {
			card.Trend = s.Risk.Trend
		}
		card.Factors = s.Risk.Factors
	}
	return card
}

// SupplierTable builds the filtered supplier list widget.
func SupplierTable(suppliers []model.Supplier, filters map[string]string) model.TableData {
	rows := make([]model.TableRow, 0, len(suppliers))
	for _, s := range suppliers {
		rows = append(rows, model.TableRow{
			SupplierID: s.ID,
			Name:       s.Name,
			Category:   s.Category,
			Region:     s.Region,
			SpendLabel: spendLabelOr(s),
			RiskLevel:  s.RiskLevelOf(),
			RiskScore:  s.RiskScore(),
		})
	}
	return model.TableData{Rows: rows, Filters: filters}
}

// Comparison builds the side-by-side widget with generated strengths,
// weaknesses, and a recommendation favoring the lowest-risk column.
func Comparison(suppliers []model.Supplier) model.ComparisonData {
	columns := make([]model.ComparisonColumn, 0, len(suppliers))
	bestIdx := -1
	bestScore := -1.0

	for i, s := range suppliers {
		score := s.RiskScore()
		columns = append(columns, model.ComparisonColumn{
			SupplierID: s.ID,
			Name:       s.Name,
			Score:      score,
			Strengths:  strengthsOf(s),
			Weaknesses: weaknessesOf(s),
		})
		if score >= 0 && (bestIdx == -1 || score < bestScore) {
			bestIdx = i
			bestScore = score
		}
	}

	data := model.ComparisonData{Columns: columns}
	switch {
	case bestIdx >= 0:
		data.Recommendation = fmt.Sprintf("%s carries the lowest risk score (%.0f) of the compared suppliers.",
			suppliers[bestIdx].Name, bestScore)
	case len(suppliers) > 0:
		data.Recommendation = "None of the compared suppliers is currently rated; request an assessment before deciding."
	}
	return data
}

func strengthsOf(s model.Supplier) []string {
	var out []string
	switch s.RiskLevelOf() {
	case model.RiskLow:
		out = append(out, "Low composite risk score")
	case model.RiskMedium:
		out = append(out, "Moderate, stable risk profile")
	}
	if s.Risk != nil && s.Risk.Trend == model.TrendImproving {
		out = append(out, "Risk trending down over the last quarter")
	}
	if s.Region != "" {
		out = append(out, "Established presence in "+s.Region)
	}
	if len(out) == 0 {
		out = append(out, "Incumbent relationship")
	}
	return out
}

func weaknessesOf(s model.Supplier) []string {
	var out []string
	switch s.RiskLevelOf() {
	case model.RiskHigh:
		out = append(out, "High composite risk score")
	case model.RiskMediumHigh:
		out = append(out, "Elevated composite risk score")
	case model.RiskUnrated:
		out = append(out, "No risk assessment on file")
	}
	if s.Risk != nil && s.Risk.Trend == model.TrendWorsening {
		out = append(out, "Risk trending up over the last quarter")
	}
	if len(out) == 0 {
		out = append(out, "No notable weaknesses identified")
	}
	return out
}

// Alternatives builds the alternatives_preview widget. The target is never
// listed; candidates keep their incoming order (best first) and carry a
// match score capped below 98.
func Alternatives(target model.Supplier, candidates []model.Supplier) model.AlternativesData {
	rows := make([]model.AlternativeRow, 0, len(candidates))
	for i, s := range candidates {
		if s.ID == target.ID {
			continue
		}
		rows = append(rows, model.AlternativeRow{
			SupplierID: s.ID,
			Name:       s.Name,
			Region:     s.Region,
			Score:      s.RiskScore(),
			Level:      s.RiskLevelOf(),
			MatchScore: matchScore(target, s, i),
		})
	}
	return model.AlternativesData{Target: target.Name, Alternatives: rows}
}

// matchScore grades a candidate: rank and risk distance reduce the score,
// sharing the target's region recovers a little.
func matchScore(target, candidate model.Supplier, rank int) int {
	score := maxMatchScore - rank*4
	if candidate.Region != "" && candidate.Region != target.Region {
		score -= 5
	}
	if candidate.RiskScore() < 0 {
		score -= 15
	}
	if score < 40 {
		score = 40
	}
	return score
}

// Alert builds the risk_alert and events_feed payload. Severity: critical
// when any single movement exceeds 10 points, warning when anything
// worsened, info otherwise.
func Alert(changes []model.RiskChange, suppliers map[string]model.Supplier) model.AlertData {
	data := model.AlertData{Severity: model.SeverityInfo, Changes: make([]model.AlertChange, 0, len(changes))}
	for _, c := range changes {
		name := c.SupplierID
		if s, ok := suppliers[c.SupplierID]; ok && s.Name != "" {
			name = s.Name
		}
		data.Changes = append(data.Changes, model.AlertChange{
			SupplierID:   c.SupplierID,
			SupplierName: name,
			From:         c.PreviousScore,
			To:           c.CurrentScore,
			Direction:    c.Direction,
		})
		if c.Delta() > criticalDelta {
			data.Severity = model.SeverityCritical
		} else if c.Direction == model.DirectionWorsened && data.Severity != model.SeverityCritical {
			data.Severity = model.SeverityWarning
		}
	}
	return data
}

// Distribution builds the portfolio risk distribution widget: per level
// count, spend, and percent of the portfolio. Row counts sum to the
// portfolio total.
func Distribution(p model.Portfolio, suppliers []model.Supplier) model.DistributionData {
	counts := map[model.RiskLevel]int{
		model.RiskHigh:       p.Distribution.High,
		model.RiskMediumHigh: p.Distribution.MediumHigh,
		model.RiskMedium:     p.Distribution.Medium,
		model.RiskLow:        p.Distribution.Low,
		model.RiskUnrated:    p.Distribution.Unrated,
	}
	spend := make(map[model.RiskLevel]float64)
	for _, s := range suppliers {
		spend[s.RiskLevelOf()] += s.Spend
	}

	total := p.TotalSuppliers
	if total == 0 {
		total = p.Distribution.Sum()
	}

	levels := []model.RiskLevel{
		model.RiskHigh, model.RiskMediumHigh, model.RiskMedium, model.RiskLow, model.RiskUnrated,
	}
	rows := make([]model.DistributionRow, 0, len(levels))
	for _, level := range levels {
		row := model.DistributionRow{Level: level, Count: counts[level], Spend: spend[level]}
		if total > 0 {
			row.Percent = float64(row.Count) / float64(total) * 100
		}
		rows = append(rows, row)
	}
	return model.DistributionData{Total: total, Rows: rows}
}

// SpendExposure builds the spend-weighted view, largest suppliers first.
func SpendExposure(suppliers []model.Supplier) model.SpendExposureData {
	sorted := make([]model.Supplier, len(suppliers))
	copy(sorted, suppliers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Spend > sorted[j].Spend })

	var total float64
	for _, s := range sorted {
		total += s.Spend
	}

	rows := make([]model.SpendRow, 0, len(sorted))
	for _, s := range sorted {
		row := model.SpendRow{
			SupplierID: s.ID,
			Name:       s.Name,
			Spend:      s.Spend,
			SpendLabel: spendLabelOr(s),
			RiskLevel:  s.RiskLevelOf(),
		}
		if total > 0 {
			row.Percent = s.Spend / total * 100
		}
		rows = append(rows, row)
	}
	return model.SpendExposureData{TotalSpend: total, TotalLabel: SpendLabel(total), Rows: rows}
}

// CategoryBreakdown aggregates suppliers per category.
func CategoryBreakdown(suppliers []model.Supplier) model.CategoryBreakdownData {
	type agg struct {
		suppliers int
		spend     float64
		highRisk  int
		scoreSum  float64
		scored    int
	}
	byCategory := make(map[string]*agg)
	var order []string
	for _, s := range suppliers {
		cat := s.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		a, ok := byCategory[cat]
		if !ok {
			a = &agg{}
			byCategory[cat] = a
			order = append(order, cat)
		}
		a.suppliers++
		a.spend += s.Spend
		if s.RiskLevelOf() == model.RiskHigh {
			a.highRisk++
		}
		if score := s.RiskScore(); score >= 0 {
			a.scoreSum += score
			a.scored++
		}
	}
	sort.Strings(order)

	rows := make([]model.CategoryRow, 0, len(order))
	for _, cat := range order {
		a := byCategory[cat]
		row := model.CategoryRow{
			Category:   cat,
			Suppliers:  a.suppliers,
			Spend:      a.spend,
			SpendLabel: SpendLabel(a.spend),
			HighRisk:   a.highRisk,
		}
		if a.scored > 0 {
			row.AvgScore = a.scoreSum / float64(a.scored)
		}
		rows = append(rows, row)
	}
	return model.CategoryBreakdownData{Rows: rows}
}

// MarketSnapshot builds the market brief payload from synthesized content.
func MarketSnapshot(commodity, region, summary string, sources []model.Citation) model.MarketSnapshotData {
	return model.MarketSnapshotData{
		Commodity: commodity,
		Region:    region,
		Summary:   summary,
		Sources:   sources,
	}
}
