package pricing

import (
	"math"
	"strings"
)

// Baseline resale values for the target models, priced at the baseline
// year. Older cars depreciate from here; newer cars never adjust upward.
var staticPrices = map[string]float64{
	"volkswagen polo": 3450,
	"volkswagen golf": 3450,
	"volkswagen up":   3450,
	"opel corsa":      1500,
	"opel astra":      1500,
	"toyota yaris":    4500,
	"toyota aygo":     4500,
	"ford fiesta":     2248,
	"renault clio":    1800,
	"kia picanto":     2850,
	"fiat 500":        3000,
	"suzuki swift":    2499,
	"hyundai i10":     2500,
	"citroen c1":      2000,
	"peugeot 107":     2000,
}

func staticKey(make, model string) string {
	return strings.ToLower(strings.TrimSpace(make)) + " " + strings.ToLower(strings.TrimSpace(model))
}

// StaticFallback returns the depreciated static price for a model, or
// false when the model is not in the table.
func (p Policy) StaticFallback(make, model string, year int) (float64, bool) {
	base, ok := staticPrices[staticKey(make, model)]
	if !ok {
		return 0, false
	}

	age := p.BaselineYear - year
	if age < 0 {
		age = 0
	}
	return base * math.Pow(p.DepreciationRate, float64(age)), true
}
