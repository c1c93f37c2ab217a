package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"schadescout/models"
)

// MatchStore is the slice of the car store used for cross-source matching.
type MatchStore interface {
	GetCarsByFingerprint(ctx context.Context, fingerprint string, excludeID uuid.UUID) ([]models.Car, error)
	InsertCarMatch(ctx context.Context, m *models.CarMatch) (bool, error)
}

// CrosslistService suggests which cars on different sources are the same
// physical vehicle, so the same deal is not chased twice.
type CrosslistService struct {
	store MatchStore
}

func NewCrosslistService(store MatchStore) *CrosslistService {
	return &CrosslistService{store: store}
}

// FindMatches records matches between the new car and existing cars that
// share its fingerprint. Same-source hits are skipped; the URL upsert
// already deduplicates those.
func (s *CrosslistService) FindMatches(ctx context.Context, car *models.Car) (int, error) {
	if car.Fingerprint == "" {
		return 0, nil
	}

	candidates, err := s.store.GetCarsByFingerprint(ctx, car.Fingerprint, car.ID)
	if err != nil {
		return 0, fmt.Errorf("fingerprint lookup: %w", err)
	}

	inserted := 0
	for _, other := range candidates {
		if other.Source == car.Source {
			continue
		}

		confidence, reasons := scoreMatch(car, &other)
		match := &models.CarMatch{
			CarID:      car.ID,
			MatchedID:  other.ID,
			Confidence: confidence,
			Reasons:    reasons,
		}
		ok, err := s.store.InsertCarMatch(ctx, match)
		if err != nil {
			return inserted, fmt.Errorf("insert match: %w", err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func scoreMatch(a, b *models.Car) (float64, []string) {
	reasons := []string{"same_fingerprint"}
	confidence := 0.75

	if a.Year != nil && b.Year != nil && *a.Year == *b.Year {
		reasons = append(reasons, "same_year")
		confidence += 0.05
	}
	if a.Mileage != nil && b.Mileage != nil {
		diff := *a.Mileage - *b.Mileage
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1000 {
			reasons = append(reasons, "close_mileage")
			confidence += 0.1
		}
	}
	if priceDelta(a.Price, b.Price) <= 0.15 {
		reasons = append(reasons, "close_price")
		confidence += 0.05
	}

	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence, reasons
}

func priceDelta(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 1
	}
	maxVal := a
	if b > maxVal {
		maxVal = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff / maxVal
}
