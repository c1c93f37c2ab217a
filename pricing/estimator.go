// Package pricing estimates fair market value for a (make, model, year)
// and scores listings against it.
package pricing

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"schadescout/models"
)

type Basis string

const (
	BasisLiveSample Basis = "live_sample"
	BasisHistorical Basis = "historical_db"
	BasisStatic     Basis = "static_fallback"
)

// Estimate is a market value with its provenance.
type Estimate struct {
	Value      float64
	Basis      Basis
	SampleSize int
}

// Sampler collects live asking prices for undamaged cars of a model/year.
type Sampler interface {
	SamplePrices(ctx context.Context, make, model string, year int) ([]float64, error)
}

// HistoryStore reads aggregated historical prices.
type HistoryStore interface {
	GetMarketPrice(ctx context.Context, make, model string, year int) (avg float64, samples int, err error)
}

// MarketRecorder folds live sample batches back into the historical
// aggregates. Optional on a HistoryStore; when present, every accepted
// live sample improves the fallback for later runs.
type MarketRecorder interface {
	UpsertMarketPrice(ctx context.Context, mp *models.MarketPrice) error
}

// Estimator resolves market value with basis precedence: live sample,
// historical averages, static fallback. Results are cached for the
// lifetime of the estimator, which callers scope to one scrape run.
type Estimator struct {
	sampler Sampler // optional
	history HistoryStore
	policy  Policy

	mu    sync.Mutex
	cache map[string]Estimate
}

func NewEstimator(sampler Sampler, history HistoryStore, policy Policy) *Estimator {
	return &Estimator{
		sampler: sampler,
		history: history,
		policy:  policy,
		cache:   make(map[string]Estimate),
	}
}

func cacheKey(make, model string, year int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(make), strings.ToLower(model), year)
}

// Estimate returns the market value for a model/year cell.
func (e *Estimator) Estimate(ctx context.Context, make, model string, year int) (Estimate, error) {
	key := cacheKey(make, model, year)

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	est, err := e.resolve(ctx, make, model, year)
	if err != nil {
		return Estimate{}, err
	}

	e.mu.Lock()
	e.cache[key] = est
	e.mu.Unlock()
	return est, nil
}

func (e *Estimator) resolve(ctx context.Context, make, model string, year int) (Estimate, error) {
	if e.sampler != nil {
		prices, err := e.sampler.SamplePrices(ctx, make, model, year)
		if err != nil {
			log.Printf("Live sample failed for %s %s %d: %v", make, model, year, err)
		} else {
			prices = e.policy.PlausibleSamples(prices)
			if len(prices) >= e.policy.MinSamples {
				e.record(ctx, make, model, year, prices)
				return Estimate{
					Value:      median(prices),
					Basis:      BasisLiveSample,
					SampleSize: len(prices),
				}, nil
			}
		}
	}

	if e.history != nil {
		if est, ok, err := e.fromHistory(ctx, make, model, year); err != nil {
			return Estimate{}, err
		} else if ok {
			return est, nil
		}
	}

	if v, ok := e.policy.StaticFallback(make, model, year); ok {
		return Estimate{Value: v, Basis: BasisStatic, SampleSize: 0}, nil
	}

	return Estimate{}, fmt.Errorf("no market price for %s %s %d", make, model, year)
}

// record persists an accepted sample batch when the history store
// supports it. Best effort; a failed write never fails the estimate.
func (e *Estimator) record(ctx context.Context, make, model string, year int, prices []float64) {
	recorder, ok := e.history.(MarketRecorder)
	if !ok {
		return
	}

	mp := &models.MarketPrice{
		Make:         make,
		Model:        model,
		Year:         year,
		AveragePrice: mean(prices),
		SampleCount:  len(prices),
	}
	if err := recorder.UpsertMarketPrice(ctx, mp); err != nil {
		log.Printf("Failed to record market samples for %s %s %d: %v", make, model, year, err)
	}
}

// fromHistory tries the exact year, then neighbor years out to +-2 with a
// per-step discount.
func (e *Estimator) fromHistory(ctx context.Context, make, model string, year int) (Estimate, bool, error) {
	for _, offset := range []int{0, -1, 1, -2, 2} {
		avg, samples, err := e.history.GetMarketPrice(ctx, make, model, year+offset)
		if err != nil {
			return Estimate{}, false, fmt.Errorf("history lookup: %w", err)
		}
		if samples < e.policy.MinSamples || avg <= 0 {
			continue
		}

		value := avg * math.Pow(e.policy.DepreciationRate, math.Abs(float64(offset)))
		return Estimate{Value: value, Basis: BasisHistorical, SampleSize: samples}, true, nil
	}
	return Estimate{}, false, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
