package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DamageSeverity string

const (
	DamageSevere   DamageSeverity = "severe"
	DamageCosmetic DamageSeverity = "cosmetic"
	DamageNone     DamageSeverity = "none"
)

type DealRating string

const (
	RatingExcellent DealRating = "excellent"
	RatingGood      DealRating = "good"
	RatingFair      DealRating = "fair"
	RatingPoor      DealRating = "poor"
)

// DamageVerdict is the classification outcome for a listing's free text.
type DamageVerdict struct {
	Severity DamageSeverity `json:"severity"`
	Keywords []string       `json:"keywords"`
	Reason   string         `json:"reason,omitempty"`
}

// CarCandidate is the raw extraction from a source page, before
// normalization and classification.
type CarCandidate struct {
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceText   string   `json:"price_text"`
	MileageText string   `json:"mileage_text"`
	YearText    string   `json:"year_text"`
	Photos      []string `json:"photos,omitempty"`
}

// Car is the persisted, scored listing.
type Car struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Source           string          `json:"source" db:"source"`
	URL              string          `json:"url" db:"url"`
	Title            string          `json:"title" db:"title"`
	Make             string          `json:"make" db:"make"`
	Model            string          `json:"model" db:"model"`
	Year             *int            `json:"year" db:"year"`
	Mileage          *int            `json:"mileage" db:"mileage"`
	Price            float64         `json:"price" db:"price"`
	Description      string          `json:"description" db:"description"`
	DamageSeverity   DamageSeverity  `json:"damage_severity" db:"damage_severity"`
	DamageKeywords   []string        `json:"damage_keywords" db:"damage_keywords"`
	Fingerprint      string          `json:"fingerprint" db:"fingerprint"`
	MarketPrice      float64         `json:"market_price" db:"market_price"`
	MarketBasis      string          `json:"market_basis" db:"market_basis"`
	MarketSampleSize int             `json:"market_sample_size" db:"market_sample_size"`
	ProfitPercent    float64         `json:"profit_percent" db:"profit_percent"`
	Rating           DealRating      `json:"rating" db:"rating"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	RawData          json.RawMessage `json:"raw_data,omitempty" db:"raw_data"`
	FirstSeenAt      time.Time       `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt       time.Time       `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// MarketPrice is a historical average for a (make, model, year) cell.
type MarketPrice struct {
	ID           int64     `json:"id" db:"id"`
	Make         string    `json:"make" db:"make"`
	Model        string    `json:"model" db:"model"`
	Year         int       `json:"year" db:"year"`
	AveragePrice float64   `json:"average_price" db:"average_price"`
	SampleCount  int       `json:"sample_count" db:"sample_count"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CarMatch links a car to a suspected duplicate on another source.
type CarMatch struct {
	ID         int64     `json:"id" db:"id"`
	CarID      uuid.UUID `json:"car_id" db:"car_id"`
	MatchedID  uuid.UUID `json:"matched_id" db:"matched_id"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Reasons    []string  `json:"reasons" db:"reasons"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "pending"
	ImageStatusUploaded ImageStatus = "uploaded"
	ImageStatusFailed   ImageStatus = "failed"
)

// CarImage is a photo queued for archival upload.
type CarImage struct {
	ID          int64       `json:"id" db:"id"`
	CarID       uuid.UUID   `json:"car_id" db:"car_id"`
	OriginalURL string      `json:"original_url" db:"original_url"`
	S3Key       *string     `json:"s3_key" db:"s3_key"`
	ContentHash string      `json:"content_hash" db:"content_hash"`
	Status      ImageStatus `json:"status" db:"status"`
	Attempts    int         `json:"attempts" db:"attempts"`
	Position    int         `json:"position" db:"position"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// DomainScrapeRun is the Postgres-side run record exposed over the API.
type DomainScrapeRun struct {
	ID            int64           `json:"id" db:"id"`
	Source        string          `json:"source" db:"source"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at" db:"finished_at"`
	Status        string          `json:"status" db:"status"`
	CarsFound     int             `json:"cars_found" db:"cars_found"`
	CarsNew       int             `json:"cars_new" db:"cars_new"`
	CarsRejected  int             `json:"cars_rejected" db:"cars_rejected"`
	ErrorsCount   int             `json:"errors_count" db:"errors_count"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}
