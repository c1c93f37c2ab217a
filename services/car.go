package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"schadescout/classify"
	"schadescout/identity"
	"schadescout/models"
	"schadescout/normalize"
	"schadescout/pricing"
	"schadescout/vehicle"
)

// CarStore is the slice of the car store the pipeline writes through.
type CarStore interface {
	GetCarByURL(ctx context.Context, url string) (*models.Car, error)
	UpsertCar(ctx context.Context, car *models.Car) error
	EnqueueCarImage(ctx context.Context, carID uuid.UUID, originalURL string, position int) error
}

// CarService runs the scoring pipeline for one extracted candidate:
// filter, normalize, classify, price, score, persist.
type CarService struct {
	store      CarStore
	classifier *classify.Classifier
	estimator  *pricing.Estimator
	policy     pricing.Policy
	crosslist  *CrosslistService
}

func NewCarService(store CarStore, classifier *classify.Classifier, estimator *pricing.Estimator, policy pricing.Policy, crosslist *CrosslistService) *CarService {
	return &CarService{
		store:      store,
		classifier: classifier,
		estimator:  estimator,
		policy:     policy,
		crosslist:  crosslist,
	}
}

// ProcessResult contains the outcome of processing a candidate
type ProcessResult struct {
	CarID        uuid.UUID
	IsNew        bool
	Rejected     bool
	RejectReason string
	Rating       models.DealRating
}

// ProcessCandidate is idempotent; the same URL processed twice updates
// the existing row.
func (s *CarService) ProcessCandidate(ctx context.Context, cand *models.CarCandidate) (*ProcessResult, error) {
	result := &ProcessResult{}
	now := time.Now()

	if cand.URL == "" {
		return reject(result, "missing url"), nil
	}

	text := cand.Title + " " + cand.Description
	if kw, excluded := s.classifier.Excluded(text); excluded {
		return reject(result, fmt.Sprintf("excluded keyword: %s", kw)), nil
	}

	carMake, carModel := vehicle.ParseMakeModel(cand.Title)
	if carMake == vehicle.Unknown || carModel == vehicle.Unknown {
		return reject(result, "make or model not recognized"), nil
	}

	price, ok := normalize.ParsePrice(cand.PriceText)
	if !ok {
		return reject(result, "no usable price"), nil
	}

	year, hasYear := normalize.ParseYear(cand.YearText)
	if !hasYear {
		year, hasYear = normalize.ParseYear(cand.Title)
	}
	if !hasYear {
		return reject(result, "no usable year"), nil
	}

	mileage, hasMileage := normalize.ParseMileage(cand.MileageText)

	verdict := s.classifier.Classify(text)
	switch verdict.Severity {
	case models.DamageNone:
		return reject(result, verdict.Reason), nil
	case models.DamageSevere:
		return reject(result, fmt.Sprintf("severe damage: %v", verdict.Keywords)), nil
	}

	estimate, err := s.estimator.Estimate(ctx, carMake, carModel, year)
	if err != nil {
		return reject(result, fmt.Sprintf("no market price: %v", err)), nil
	}

	metrics := s.policy.Score(price, estimate.Value)
	result.Rating = metrics.Rating

	if !s.policy.Profitable(price, estimate.Value) {
		return reject(result, fmt.Sprintf("above buy cutoff (asking %.0f, market %.0f)", price, estimate.Value)), nil
	}

	existing, err := s.store.GetCarByURL(ctx, cand.URL)
	if err != nil {
		return nil, fmt.Errorf("get car: %w", err)
	}

	car := &models.Car{
		Source:           cand.Source,
		URL:              cand.URL,
		Title:            cand.Title,
		Make:             carMake,
		Model:            carModel,
		Year:             &year,
		Price:            price,
		Description:      cand.Description,
		DamageSeverity:   verdict.Severity,
		DamageKeywords:   verdict.Keywords,
		MarketPrice:      estimate.Value,
		MarketBasis:      string(estimate.Basis),
		MarketSampleSize: estimate.SampleSize,
		ProfitPercent:    metrics.ProfitPercent,
		Rating:           metrics.Rating,
		IsActive:         true,
		LastSeenAt:       now,
		UpdatedAt:        now,
	}
	if hasMileage {
		car.Mileage = &mileage
	}
	car.Fingerprint = identity.Fingerprint(carMake, carModel, year, mileage)

	if raw, err := json.Marshal(cand); err == nil {
		car.RawData = raw
	}

	if existing != nil {
		car.ID = existing.ID
		car.FirstSeenAt = existing.FirstSeenAt
		car.CreatedAt = existing.CreatedAt
	} else {
		car.ID = uuid.New()
		car.FirstSeenAt = now
		car.CreatedAt = now
		result.IsNew = true
	}

	if err := s.store.UpsertCar(ctx, car); err != nil {
		return nil, fmt.Errorf("upsert car: %w", err)
	}
	result.CarID = car.ID

	for i, photoURL := range cand.Photos {
		if err := s.store.EnqueueCarImage(ctx, car.ID, photoURL, i); err != nil {
			log.Printf("Warning: failed to queue image %s: %v", photoURL, err)
		}
	}

	if result.IsNew && s.crosslist != nil {
		if _, err := s.crosslist.FindMatches(ctx, car); err != nil {
			log.Printf("Warning: crosslist matching failed: %v", err)
		}
	}

	return result, nil
}

func reject(r *ProcessResult, reason string) *ProcessResult {
	r.Rejected = true
	r.RejectReason = reason
	return r
}

// ProcessStats tracks aggregate statistics for a scrape run
type ProcessStats struct {
	CarsProcessed int
	CarsNew       int
	CarsRejected  int
	Errors        int
}

// Aggregate adds a ProcessResult to the stats
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.CarsProcessed++
	if r.IsNew {
		s.CarsNew++
	}
	if r.Rejected {
		s.CarsRejected++
	}
}

// ToJSON returns JSON-serializable metadata
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"cars_processed": s.CarsProcessed,
		"cars_new":       s.CarsNew,
		"cars_rejected":  s.CarsRejected,
		"errors":         s.Errors,
	})
	return data
}
