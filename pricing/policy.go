package pricing

import "schadescout/models"

// Policy holds the tunable deal-scoring knobs.
type Policy struct {
	CutoffRatio        float64 // asking must be <= market * ratio
	ThresholdExcellent float64
	ThresholdGood      float64
	ThresholdFair      float64
	MinSamples         int
	BaselineYear       int
	DepreciationRate   float64
	SampleFloor        float64 // live sample prices below this are parts/export lots
	SampleCeiling      float64 // and above this are not our segment
}

// DefaultPolicy matches the production tuning.
func DefaultPolicy() Policy {
	return Policy{
		CutoffRatio:        0.75,
		ThresholdExcellent: 50,
		ThresholdGood:      30,
		ThresholdFair:      15,
		MinSamples:         3,
		BaselineYear:       2020,
		DepreciationRate:   0.9,
		SampleFloor:        1000,
		SampleCeiling:      25000,
	}
}

// PlausibleSamples keeps only live sample prices inside the floor/ceiling
// band. Marktplaats result pages mix in parts lots priced at tens of
// euros; a median over those is not a market value.
func (p Policy) PlausibleSamples(prices []float64) []float64 {
	var kept []float64
	for _, v := range prices {
		if v < p.SampleFloor || v > p.SampleCeiling {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

// DealMetrics is the scored outcome for a single listing.
type DealMetrics struct {
	ProfitPercent float64
	Rating        models.DealRating
}

// Score computes profit margin against market value. The margin is never
// clamped; overpriced cars go negative.
func (p Policy) Score(asking, market float64) DealMetrics {
	var profit float64
	if market > 0 {
		profit = (market - asking) / market * 100
	}

	rating := models.RatingPoor
	switch {
	case profit >= p.ThresholdExcellent:
		rating = models.RatingExcellent
	case profit >= p.ThresholdGood:
		rating = models.RatingGood
	case profit >= p.ThresholdFair:
		rating = models.RatingFair
	}

	return DealMetrics{ProfitPercent: profit, Rating: rating}
}

// Profitable reports whether asking clears the buy cutoff.
func (p Policy) Profitable(asking, market float64) bool {
	if market <= 0 {
		return false
	}
	return asking <= market*p.CutoffRatio
}
