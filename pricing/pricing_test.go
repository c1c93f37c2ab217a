package pricing

import (
	"context"
	"errors"
	"math"
	"testing"

	"schadescout/models"
)

func TestScoreRatings(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		asking, market float64
		wantProfit     float64
		wantRating     models.DealRating
	}{
		{1000, 2000, 50, models.RatingExcellent},
		{1300, 2000, 35, models.RatingGood},
		{1600, 2000, 20, models.RatingFair},
		{1900, 2000, 5, models.RatingPoor},
		{2100, 2000, -5, models.RatingPoor},
	}

	for _, tt := range tests {
		got := p.Score(tt.asking, tt.market)
		if math.Abs(got.ProfitPercent-tt.wantProfit) > 0.001 {
			t.Errorf("Score(%v, %v).ProfitPercent = %v, want %v", tt.asking, tt.market, got.ProfitPercent, tt.wantProfit)
		}
		if got.Rating != tt.wantRating {
			t.Errorf("Score(%v, %v).Rating = %s, want %s", tt.asking, tt.market, got.Rating, tt.wantRating)
		}
	}
}

func TestProfitable(t *testing.T) {
	p := DefaultPolicy()

	if !p.Profitable(1500, 2000) {
		t.Error("1500 against 2000 should clear the 0.75 cutoff")
	}
	if p.Profitable(1501, 2000) {
		t.Error("1501 against 2000 should not clear the cutoff")
	}
	if p.Profitable(100, 0) {
		t.Error("zero market value is never profitable")
	}
}

func TestStaticFallback(t *testing.T) {
	p := DefaultPolicy()

	v, ok := p.StaticFallback("Volkswagen", "Polo", 2020)
	if !ok || v != 3450 {
		t.Fatalf("baseline year price = %v, %v", v, ok)
	}

	v, ok = p.StaticFallback("Volkswagen", "Polo", 2018)
	want := 3450 * 0.9 * 0.9
	if !ok || math.Abs(v-want) > 0.001 {
		t.Fatalf("2018 price = %v, want %v", v, want)
	}

	// Never adjusted upward past the baseline
	v, ok = p.StaticFallback("Volkswagen", "Polo", 2023)
	if !ok || v != 3450 {
		t.Fatalf("post-baseline price = %v, want 3450", v)
	}

	if _, ok := p.StaticFallback("Lada", "Niva", 2015); ok {
		t.Fatal("unknown model should not have a static price")
	}
}

type fakeSampler struct {
	prices []float64
	err    error
	calls  int
}

func (f *fakeSampler) SamplePrices(ctx context.Context, make, model string, year int) ([]float64, error) {
	f.calls++
	return f.prices, f.err
}

type fakeHistory struct {
	rows map[int]struct {
		avg     float64
		samples int
	}
}

func (f *fakeHistory) GetMarketPrice(ctx context.Context, make, model string, year int) (float64, int, error) {
	row, ok := f.rows[year]
	if !ok {
		return 0, 0, nil
	}
	return row.avg, row.samples, nil
}

func TestEstimateLiveSampleWins(t *testing.T) {
	sampler := &fakeSampler{prices: []float64{4000, 5000, 6000}}
	history := &fakeHistory{rows: map[int]struct {
		avg     float64
		samples int
	}{2016: {avg: 9999, samples: 10}}}

	e := NewEstimator(sampler, history, DefaultPolicy())
	est, err := e.Estimate(context.Background(), "Toyota", "Yaris", 2016)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisLiveSample {
		t.Fatalf("basis = %s, want live_sample", est.Basis)
	}
	if est.Value != 5000 {
		t.Fatalf("value = %v, want median 5000", est.Value)
	}
	if est.SampleSize != 3 {
		t.Fatalf("sample size = %d", est.SampleSize)
	}
}

func TestEstimateDiscardsImplausibleSamples(t *testing.T) {
	// Parts and export lots priced in the tens of euros must never
	// become a market value
	sampler := &fakeSampler{prices: []float64{50, 75, 90}}
	e := NewEstimator(sampler, &fakeHistory{}, DefaultPolicy())

	est, err := e.Estimate(context.Background(), "Fiat", "500", 2020)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisStatic {
		t.Fatalf("basis = %s, want static_fallback when all samples are implausible", est.Basis)
	}
}

func TestEstimateTrimsOutliersBeforeMedian(t *testing.T) {
	sampler := &fakeSampler{prices: []float64{500, 4000, 5000, 6000, 30000}}
	e := NewEstimator(sampler, &fakeHistory{}, DefaultPolicy())

	est, err := e.Estimate(context.Background(), "Toyota", "Yaris", 2016)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisLiveSample {
		t.Fatalf("basis = %s, want live_sample", est.Basis)
	}
	if est.Value != 5000 {
		t.Fatalf("value = %v, want median 5000 of the plausible band", est.Value)
	}
	if est.SampleSize != 3 {
		t.Fatalf("sample size = %d, want 3 after filtering", est.SampleSize)
	}
}

type recordingHistory struct {
	fakeHistory
	recorded *models.MarketPrice
}

func (r *recordingHistory) UpsertMarketPrice(ctx context.Context, mp *models.MarketPrice) error {
	r.recorded = mp
	return nil
}

func TestEstimatePersistsAcceptedSamples(t *testing.T) {
	sampler := &fakeSampler{prices: []float64{4000, 5000, 6000}}
	history := &recordingHistory{}
	e := NewEstimator(sampler, history, DefaultPolicy())

	if _, err := e.Estimate(context.Background(), "Toyota", "Yaris", 2016); err != nil {
		t.Fatal(err)
	}

	if history.recorded == nil {
		t.Fatal("accepted live sample was not folded into history")
	}
	mp := history.recorded
	if mp.Make != "Toyota" || mp.Model != "Yaris" || mp.Year != 2016 {
		t.Fatalf("recorded cell = %s %s %d", mp.Make, mp.Model, mp.Year)
	}
	if mp.AveragePrice != 5000 {
		t.Fatalf("recorded average = %v, want 5000", mp.AveragePrice)
	}
	if mp.SampleCount != 3 {
		t.Fatalf("recorded sample count = %d, want 3", mp.SampleCount)
	}
}

func TestEstimateSmallSampleFallsThrough(t *testing.T) {
	sampler := &fakeSampler{prices: []float64{4000, 5000}}
	history := &fakeHistory{rows: map[int]struct {
		avg     float64
		samples int
	}{2016: {avg: 6000, samples: 8}}}

	e := NewEstimator(sampler, history, DefaultPolicy())
	est, err := e.Estimate(context.Background(), "Toyota", "Yaris", 2016)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisHistorical {
		t.Fatalf("basis = %s, want historical_db", est.Basis)
	}
	if est.Value != 6000 {
		t.Fatalf("value = %v, want 6000", est.Value)
	}
}

func TestEstimateNeighborYearDiscounted(t *testing.T) {
	history := &fakeHistory{rows: map[int]struct {
		avg     float64
		samples int
	}{
		2016: {avg: 6000, samples: 2}, // below minimum sample gate
		2015: {avg: 6000, samples: 5},
	}}

	e := NewEstimator(nil, history, DefaultPolicy())
	est, err := e.Estimate(context.Background(), "Toyota", "Yaris", 2016)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisHistorical {
		t.Fatalf("basis = %s, want historical_db", est.Basis)
	}
	want := 6000 * 0.9
	if math.Abs(est.Value-want) > 0.001 {
		t.Fatalf("value = %v, want discounted %v", est.Value, want)
	}
}

func TestEstimateStaticFallback(t *testing.T) {
	e := NewEstimator(nil, &fakeHistory{}, DefaultPolicy())

	est, err := e.Estimate(context.Background(), "Fiat", "500", 2020)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisStatic {
		t.Fatalf("basis = %s, want static_fallback", est.Basis)
	}
	if est.Value != 3000 {
		t.Fatalf("value = %v, want 3000", est.Value)
	}
}

func TestEstimateUnknownModel(t *testing.T) {
	e := NewEstimator(nil, &fakeHistory{}, DefaultPolicy())

	if _, err := e.Estimate(context.Background(), "Lada", "Niva", 2015); err == nil {
		t.Fatal("expected error for model with no price source")
	}
}

func TestEstimateCachedPerKey(t *testing.T) {
	sampler := &fakeSampler{prices: []float64{4000, 5000, 6000}}
	e := NewEstimator(sampler, &fakeHistory{}, DefaultPolicy())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.Estimate(ctx, "Toyota", "Yaris", 2016); err != nil {
			t.Fatal(err)
		}
	}
	if sampler.calls != 1 {
		t.Fatalf("sampler called %d times, want 1", sampler.calls)
	}
}

func TestEstimateSamplerErrorFallsThrough(t *testing.T) {
	sampler := &fakeSampler{err: errors.New("blocked")}
	e := NewEstimator(sampler, &fakeHistory{}, DefaultPolicy())

	est, err := e.Estimate(context.Background(), "Kia", "Picanto", 2020)
	if err != nil {
		t.Fatal(err)
	}
	if est.Basis != BasisStatic {
		t.Fatalf("basis = %s, want static_fallback after sampler error", est.Basis)
	}
}
