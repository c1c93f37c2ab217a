package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"schadescout/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cars (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER,
		mileage INTEGER,
		price DOUBLE PRECISION NOT NULL,
		description TEXT,
		damage_severity TEXT,
		damage_keywords JSONB DEFAULT '[]',
		fingerprint TEXT,
		market_price DOUBLE PRECISION,
		market_basis TEXT,
		market_sample_size INTEGER DEFAULT 0,
		profit_percent DOUBLE PRECISION,
		rating TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		raw_data JSONB,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_prices (
		id BIGSERIAL PRIMARY KEY,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		average_price DOUBLE PRECISION NOT NULL,
		sample_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (make, model, year)
	);

	CREATE TABLE IF NOT EXISTS car_matches (
		id BIGSERIAL PRIMARY KEY,
		car_id UUID NOT NULL REFERENCES cars(id),
		matched_id UUID NOT NULL REFERENCES cars(id),
		confidence DOUBLE PRECISION,
		reasons JSONB DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (car_id, matched_id)
	);

	CREATE TABLE IF NOT EXISTS car_images (
		id BIGSERIAL PRIMARY KEY,
		car_id UUID NOT NULL REFERENCES cars(id),
		original_url TEXT NOT NULL,
		s3_key TEXT,
		content_hash TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (car_id, original_url)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		cars_found INTEGER DEFAULT 0,
		cars_new INTEGER DEFAULT 0,
		cars_rejected INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		metadata JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_cars_fingerprint ON cars(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_cars_rating ON cars(rating) WHERE is_active;
	CREATE INDEX IF NOT EXISTS idx_cars_make_model ON cars(make, model);
	CREATE INDEX IF NOT EXISTS idx_images_pending ON car_images(status) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_runs_source ON scrape_runs(source, started_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Cars
// =============================================================================

func (s *PostgresStore) UpsertCar(ctx context.Context, c *models.Car) error {
	keywords, _ := json.Marshal(c.DamageKeywords)

	query := `
		INSERT INTO cars (
			id, source, url, title, make, model, year, mileage, price, description,
			damage_severity, damage_keywords, fingerprint, market_price, market_basis,
			market_sample_size, profit_percent, rating, is_active, raw_data,
			first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (url) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), cars.title),
			year = COALESCE(EXCLUDED.year, cars.year),
			mileage = COALESCE(EXCLUDED.mileage, cars.mileage),
			price = EXCLUDED.price,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), cars.description),
			damage_severity = EXCLUDED.damage_severity,
			damage_keywords = EXCLUDED.damage_keywords,
			fingerprint = EXCLUDED.fingerprint,
			market_price = EXCLUDED.market_price,
			market_basis = EXCLUDED.market_basis,
			market_sample_size = EXCLUDED.market_sample_size,
			profit_percent = EXCLUDED.profit_percent,
			rating = EXCLUDED.rating,
			is_active = TRUE,
			raw_data = COALESCE(EXCLUDED.raw_data, cars.raw_data),
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		c.ID, c.Source, c.URL, c.Title, c.Make, c.Model, c.Year, c.Mileage, c.Price, c.Description,
		c.DamageSeverity, keywords, c.Fingerprint, c.MarketPrice, c.MarketBasis,
		c.MarketSampleSize, c.ProfitPercent, c.Rating, c.IsActive, c.RawData,
		c.FirstSeenAt, c.LastSeenAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

const carColumns = `id, source, url, title, make, model, year, mileage, price, description,
	damage_severity, damage_keywords, fingerprint, market_price, market_basis,
	market_sample_size, profit_percent, rating, is_active, raw_data,
	first_seen_at, last_seen_at, created_at, updated_at`

func scanCar(row pgx.Row) (*models.Car, error) {
	var c models.Car
	var keywords []byte
	err := row.Scan(
		&c.ID, &c.Source, &c.URL, &c.Title, &c.Make, &c.Model, &c.Year, &c.Mileage, &c.Price, &c.Description,
		&c.DamageSeverity, &keywords, &c.Fingerprint, &c.MarketPrice, &c.MarketBasis,
		&c.MarketSampleSize, &c.ProfitPercent, &c.Rating, &c.IsActive, &c.RawData,
		&c.FirstSeenAt, &c.LastSeenAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(keywords) > 0 {
		json.Unmarshal(keywords, &c.DamageKeywords)
	}
	return &c, nil
}

func (s *PostgresStore) GetCarByURL(ctx context.Context, url string) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE url = $1`

	c, err := scanCar(s.pool.QueryRow(ctx, query, url))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) GetCarByID(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1`

	c, err := scanCar(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CarFilter narrows ListCars. Zero values mean no constraint.
type CarFilter struct {
	Rating     string
	Make       string
	MaxPrice   float64
	OnlyActive bool
	Limit      int
}

func (s *PostgresStore) ListCars(ctx context.Context, filter CarFilter) ([]models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE 1=1`
	var args []interface{}
	n := 0

	if filter.Rating != "" {
		n++
		query += fmt.Sprintf(" AND rating = $%d", n)
		args = append(args, filter.Rating)
	}
	if filter.Make != "" {
		n++
		query += fmt.Sprintf(" AND LOWER(make) = LOWER($%d)", n)
		args = append(args, filter.Make)
	}
	if filter.MaxPrice > 0 {
		n++
		query += fmt.Sprintf(" AND price <= $%d", n)
		args = append(args, filter.MaxPrice)
	}
	if filter.OnlyActive {
		query += " AND is_active"
	}

	query += " ORDER BY profit_percent DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	return cars, rows.Err()
}

func (s *PostgresStore) GetCarsByFingerprint(ctx context.Context, fingerprint string, excludeID uuid.UUID) ([]models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE fingerprint = $1 AND id != $2`

	rows, err := s.pool.Query(ctx, query, fingerprint, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	return cars, rows.Err()
}

// StatsSummary aggregates the car table for the API.
type StatsSummary struct {
	TotalCars     int            `json:"total_cars"`
	ActiveCars    int            `json:"active_cars"`
	ByRating      map[string]int `json:"by_rating"`
	AvgProfitPct  float64        `json:"avg_profit_percent"`
	BestProfitPct float64        `json:"best_profit_percent"`
}

func (s *PostgresStore) GetStatsSummary(ctx context.Context) (*StatsSummary, error) {
	summary := &StatsSummary{ByRating: make(map[string]int)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COALESCE(AVG(profit_percent), 0),
			COALESCE(MAX(profit_percent), 0)
		FROM cars`).Scan(&summary.TotalCars, &summary.ActiveCars, &summary.AvgProfitPct, &summary.BestProfitPct)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT rating, COUNT(*) FROM cars WHERE is_active GROUP BY rating`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rating string
		var count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		summary.ByRating[rating] = count
	}
	return summary, rows.Err()
}

func (s *PostgresStore) GetStaleActiveCars(ctx context.Context, staleDuration time.Duration, limit int) ([]models.Car, error) {
	query := `SELECT ` + carColumns + `
		FROM cars
		WHERE is_active AND last_seen_at < $1
		ORDER BY last_seen_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, time.Now().Add(-staleDuration), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	return cars, rows.Err()
}

func (s *PostgresStore) MarkCarInactive(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE cars SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) TouchCar(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE cars SET last_seen_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// =============================================================================
// Market prices
// =============================================================================

func (s *PostgresStore) GetMarketPrice(ctx context.Context, make, model string, year int) (float64, int, error) {
	var avg float64
	var samples int
	err := s.pool.QueryRow(ctx, `
		SELECT average_price, sample_count FROM market_prices
		WHERE LOWER(make) = LOWER($1) AND LOWER(model) = LOWER($2) AND year = $3`,
		make, model, year).Scan(&avg, &samples)
	if err == pgx.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return avg, samples, nil
}

// UpsertMarketPrice folds a new sample batch into the running average.
func (s *PostgresStore) UpsertMarketPrice(ctx context.Context, mp *models.MarketPrice) error {
	query := `
		INSERT INTO market_prices (make, model, year, average_price, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (make, model, year) DO UPDATE SET
			average_price = (market_prices.average_price * market_prices.sample_count
				+ EXCLUDED.average_price * EXCLUDED.sample_count)
				/ NULLIF(market_prices.sample_count + EXCLUDED.sample_count, 0),
			sample_count = market_prices.sample_count + EXCLUDED.sample_count,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, mp.Make, mp.Model, mp.Year, mp.AveragePrice, mp.SampleCount)
	return err
}

// =============================================================================
// Car matches
// =============================================================================

func (s *PostgresStore) InsertCarMatch(ctx context.Context, m *models.CarMatch) (bool, error) {
	reasons, _ := json.Marshal(m.Reasons)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO car_matches (car_id, matched_id, confidence, reasons)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (car_id, matched_id) DO NOTHING`,
		m.CarID, m.MatchedID, m.Confidence, reasons)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =============================================================================
// Car images
// =============================================================================

func (s *PostgresStore) EnqueueCarImage(ctx context.Context, carID uuid.UUID, originalURL string, position int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO car_images (car_id, original_url, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (car_id, original_url) DO NOTHING`,
		carID, originalURL, position)
	return err
}

func (s *PostgresStore) GetPendingImages(ctx context.Context, limit int) ([]models.CarImage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, car_id, original_url, COALESCE(s3_key, ''), COALESCE(content_hash, ''), status, attempts, position, created_at
		FROM car_images WHERE status = 'pending' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.CarImage
	for rows.Next() {
		var img models.CarImage
		var s3Key string
		if err := rows.Scan(&img.ID, &img.CarID, &img.OriginalURL, &s3Key, &img.ContentHash,
			&img.Status, &img.Attempts, &img.Position, &img.CreatedAt); err != nil {
			return nil, err
		}
		if s3Key != "" {
			img.S3Key = &s3Key
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PostgresStore) UpdateImageStatus(ctx context.Context, id int64, status models.ImageStatus, s3Key *string, contentHash string, attempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE car_images SET status = $2, s3_key = $3, content_hash = $4, attempts = $5
		WHERE id = $1`,
		id, status, s3Key, contentHash, attempts)
	return err
}

// =============================================================================
// Scrape runs
// =============================================================================

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO scrape_runs (source, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id`,
		run.Source, run.StartedAt, run.Status).Scan(&run.ID)
}

func (s *PostgresStore) UpdateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET finished_at = $2, status = $3, cars_found = $4,
			cars_new = $5, cars_rejected = $6, errors_count = $7, metadata = $8
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.Status, run.CarsFound,
		run.CarsNew, run.CarsRejected, run.ErrorsCount, run.Metadata)
	return err
}

func (s *PostgresStore) ListScrapeRuns(ctx context.Context, limit int) ([]models.DomainScrapeRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, started_at, finished_at, status, cars_found, cars_new, cars_rejected, errors_count, metadata
		FROM scrape_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.DomainScrapeRun
	for rows.Next() {
		var r models.DomainScrapeRun
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.CarsFound, &r.CarsNew, &r.CarsRejected, &r.ErrorsCount, &r.Metadata); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
