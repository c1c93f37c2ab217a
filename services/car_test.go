package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"schadescout/classify"
	"schadescout/models"
	"schadescout/pricing"
)

type fakeCarStore struct {
	cars    map[string]*models.Car
	images  []string
	matches []*models.CarMatch
}

func newFakeCarStore() *fakeCarStore {
	return &fakeCarStore{cars: make(map[string]*models.Car)}
}

func (f *fakeCarStore) GetCarByURL(ctx context.Context, url string) (*models.Car, error) {
	if c, ok := f.cars[url]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeCarStore) UpsertCar(ctx context.Context, car *models.Car) error {
	copied := *car
	f.cars[car.URL] = &copied
	return nil
}

func (f *fakeCarStore) EnqueueCarImage(ctx context.Context, carID uuid.UUID, originalURL string, position int) error {
	f.images = append(f.images, originalURL)
	return nil
}

func (f *fakeCarStore) GetCarsByFingerprint(ctx context.Context, fingerprint string, excludeID uuid.UUID) ([]models.Car, error) {
	var out []models.Car
	for _, c := range f.cars {
		if c.Fingerprint == fingerprint && c.ID != excludeID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCarStore) InsertCarMatch(ctx context.Context, m *models.CarMatch) (bool, error) {
	f.matches = append(f.matches, m)
	return true, nil
}

type fakeHistory struct {
	avg     float64
	samples int
}

func (f *fakeHistory) GetMarketPrice(ctx context.Context, carMake, carModel string, year int) (float64, int, error) {
	return f.avg, f.samples, nil
}

func newTestService(store *fakeCarStore, history *fakeHistory) *CarService {
	policy := pricing.DefaultPolicy()
	estimator := pricing.NewEstimator(nil, history, policy)
	return NewCarService(store, classify.New(nil, nil, nil), estimator, policy, NewCrosslistService(store))
}

func TestProcessCandidate_ProfitableCosmeticCar(t *testing.T) {
	store := newFakeCarStore()
	svc := newTestService(store, &fakeHistory{avg: 6000, samples: 5})

	cand := &models.CarCandidate{
		Source:      "marktplaats",
		URL:         "https://www.marktplaats.nl/v/auto-s/volkswagen/m123-polo",
		Title:       "Volkswagen Polo 2016 met lakschade",
		Description: "Nette auto, kleine deukjes en lakschade aan de achterklep",
		PriceText:   "€ 3.200,-",
		MileageText: "85.000 km",
		Photos:      []string{"https://images.example.com/polo1.jpg"},
	}

	result, err := svc.ProcessCandidate(context.Background(), cand)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Rejected {
		t.Fatalf("unexpected rejection: %s", result.RejectReason)
	}
	if !result.IsNew {
		t.Fatal("expected new car")
	}
	if result.Rating != models.RatingGood {
		t.Fatalf("expected rating good, got %s", result.Rating)
	}

	car := store.cars[cand.URL]
	if car == nil {
		t.Fatal("car not persisted")
	}
	if car.Make != "Volkswagen" || car.Model != "Polo" {
		t.Fatalf("unexpected make/model: %s %s", car.Make, car.Model)
	}
	if car.Year == nil || *car.Year != 2016 {
		t.Fatalf("unexpected year: %v", car.Year)
	}
	if car.Mileage == nil || *car.Mileage != 85000 {
		t.Fatalf("unexpected mileage: %v", car.Mileage)
	}
	if car.Price != 3200 {
		t.Fatalf("unexpected price: %f", car.Price)
	}
	if car.DamageSeverity != models.DamageCosmetic {
		t.Fatalf("unexpected severity: %s", car.DamageSeverity)
	}
	if car.MarketPrice != 6000 {
		t.Fatalf("unexpected market price: %f", car.MarketPrice)
	}
	if car.ProfitPercent < 46 || car.ProfitPercent > 47 {
		t.Fatalf("unexpected profit percent: %f", car.ProfitPercent)
	}
	if car.Fingerprint == "" {
		t.Fatal("expected fingerprint")
	}
	if len(store.images) != 1 {
		t.Fatalf("expected 1 queued photo, got %d", len(store.images))
	}
}

func TestProcessCandidate_SecondSightingUpdates(t *testing.T) {
	store := newFakeCarStore()
	svc := newTestService(store, &fakeHistory{avg: 6000, samples: 5})

	cand := &models.CarCandidate{
		Source:      "marktplaats",
		URL:         "https://www.marktplaats.nl/v/auto-s/volkswagen/m123-polo",
		Title:       "Volkswagen Polo 2016 met lakschade",
		Description: "lakschade aan de achterklep",
		PriceText:   "€ 3.200,-",
		MileageText: "85.000 km",
	}

	first, err := svc.ProcessCandidate(context.Background(), cand)
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}

	cand.PriceText = "€ 2.950,-"
	second, err := svc.ProcessCandidate(context.Background(), cand)
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}

	if second.IsNew {
		t.Fatal("second sighting should not be new")
	}
	if second.CarID != first.CarID {
		t.Fatalf("id changed across sightings: %s vs %s", first.CarID, second.CarID)
	}
	if store.cars[cand.URL].Price != 2950 {
		t.Fatalf("price not updated: %f", store.cars[cand.URL].Price)
	}
}

func TestProcessCandidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		cand   models.CarCandidate
		reason string
	}{
		{
			name:   "missing url",
			cand:   models.CarCandidate{Title: "Volkswagen Polo 2016 lakschade", PriceText: "€ 1.000"},
			reason: "missing url",
		},
		{
			name: "excluded wanted ad",
			cand: models.CarCandidate{
				URL:       "https://example.com/1",
				Title:     "Gezocht: Volkswagen Polo met schade",
				PriceText: "€ 1.000",
			},
			reason: "excluded keyword",
		},
		{
			name: "unknown model",
			cand: models.CarCandidate{
				URL:       "https://example.com/2",
				Title:     "Volkswagen met lakschade 2016",
				PriceText: "€ 1.000",
			},
			reason: "make or model not recognized",
		},
		{
			name: "no price",
			cand: models.CarCandidate{
				URL:       "https://example.com/3",
				Title:     "Volkswagen Polo 2016 lakschade",
				PriceText: "n.o.t.k.",
			},
			reason: "no usable price",
		},
		{
			name: "no year",
			cand: models.CarCandidate{
				URL:       "https://example.com/4",
				Title:     "Volkswagen Polo lakschade",
				PriceText: "€ 1.000",
			},
			reason: "no usable year",
		},
		{
			name: "no damage keywords",
			cand: models.CarCandidate{
				URL:         "https://example.com/5",
				Title:       "Volkswagen Polo 2016",
				Description: "Nette auto in prima staat",
				PriceText:   "€ 1.000",
			},
			reason: "no damage keywords found",
		},
		{
			name: "severe damage",
			cand: models.CarCandidate{
				URL:         "https://example.com/6",
				Title:       "Volkswagen Polo 2016",
				Description: "motorschade, niet rijdend",
				PriceText:   "€ 1.000",
			},
			reason: "severe damage",
		},
		{
			name: "above buy cutoff",
			cand: models.CarCandidate{
				URL:         "https://example.com/7",
				Title:       "Volkswagen Polo 2016 lakschade",
				Description: "lakschade",
				PriceText:   "€ 5.500",
			},
			reason: "above buy cutoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeCarStore()
			svc := newTestService(store, &fakeHistory{avg: 6000, samples: 5})

			result, err := svc.ProcessCandidate(context.Background(), &tt.cand)
			if err != nil {
				t.Fatalf("process failed: %v", err)
			}
			if !result.Rejected {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(result.RejectReason, tt.reason) {
				t.Fatalf("expected reason containing %q, got %q", tt.reason, result.RejectReason)
			}
			if len(store.cars) != 0 {
				t.Fatalf("rejected candidate was persisted: %d cars", len(store.cars))
			}
		})
	}
}

func TestCrosslistMatchesAcrossSources(t *testing.T) {
	store := newFakeCarStore()
	svc := newTestService(store, &fakeHistory{avg: 6000, samples: 5})

	first := &models.CarCandidate{
		Source:      "schadeautos",
		URL:         "https://www.schadeautos.nl/nl/schade/personenautos/volkswagen/o/12345",
		Title:       "Volkswagen Polo 2016 lakschade",
		Description: "lakschade linksvoor",
		PriceText:   "€ 3.200,-",
		MileageText: "85.000 km",
	}
	if _, err := svc.ProcessCandidate(context.Background(), first); err != nil {
		t.Fatalf("first process failed: %v", err)
	}

	second := &models.CarCandidate{
		Source:      "marktplaats",
		URL:         "https://www.marktplaats.nl/v/auto-s/volkswagen/m999-polo",
		Title:       "Volkswagen Polo 2016 lakschade",
		Description: "lakschade linksvoor",
		PriceText:   "€ 3.200,-",
		MileageText: "85.000 km",
	}
	if _, err := svc.ProcessCandidate(context.Background(), second); err != nil {
		t.Fatalf("second process failed: %v", err)
	}

	if len(store.matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(store.matches))
	}
	m := store.matches[0]
	if m.Confidence < 0.75 {
		t.Fatalf("unexpected confidence: %f", m.Confidence)
	}
	found := false
	for _, r := range m.Reasons {
		if r == "same_fingerprint" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected same_fingerprint reason, got %v", m.Reasons)
	}
}

func TestProcessStatsAggregate(t *testing.T) {
	stats := &ProcessStats{}
	stats.Aggregate(&ProcessResult{IsNew: true})
	stats.Aggregate(&ProcessResult{Rejected: true})
	stats.Aggregate(&ProcessResult{})

	if stats.CarsProcessed != 3 || stats.CarsNew != 1 || stats.CarsRejected != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if string(stats.ToJSON()) == "" {
		t.Fatal("expected JSON metadata")
	}
}
