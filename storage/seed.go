package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Undamaged market values for the target models in the newest seed year.
// Older years are derived by flat yearly depreciation.
var seedAnchors = map[string]float64{
	"Volkswagen|Polo": 9500,
	"Volkswagen|Golf": 11000,
	"Volkswagen|Up":   7500,
	"Opel|Corsa":      7000,
	"Opel|Astra":      8000,
	"Toyota|Yaris":    9000,
	"Toyota|Aygo":     6500,
	"Ford|Fiesta":     7500,
	"Renault|Clio":    7000,
	"Kia|Picanto":     6000,
	"Fiat|500":        7500,
	"Suzuki|Swift":    7000,
	"Hyundai|i10":     6500,
	"Citroen|C1":      5500,
	"Peugeot|107":     5500,
}

const (
	seedYearFrom     = 2010
	seedYearTo       = 2019
	seedSampleCount  = 25
	seedDepreciation = 0.9
)

// SeedMarketPrices fills the historical price table for the target models.
// Existing rows are left untouched so collected data wins over seed data.
func (s *PostgresStore) SeedMarketPrices(ctx context.Context) (int, error) {
	inserted := 0
	for key, anchor := range seedAnchors {
		make, model, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}

		for year := seedYearFrom; year <= seedYearTo; year++ {
			age := seedYearTo - year
			price := math.Round(anchor * math.Pow(seedDepreciation, float64(age)))

			tag, err := s.pool.Exec(ctx, `
				INSERT INTO market_prices (make, model, year, average_price, sample_count, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (make, model, year) DO NOTHING`,
				make, model, year, price, seedSampleCount)
			if err != nil {
				return inserted, fmt.Errorf("seed %s %s %d: %w", make, model, year, err)
			}
			if tag.RowsAffected() > 0 {
				inserted++
			}
		}
	}
	return inserted, nil
}
