package workers

import (
	"context"
	"log"
	"net/http"
	"time"

	"schadescout/storage"
)

// HealthcheckWorker re-checks active cars that have not been seen by the
// scraper for a while. A listing that 404s went off the market, usually
// because the car sold, and should stop showing up in deal queries.
type HealthcheckWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client

	staleAfter time.Duration
	trigger    chan struct{}
}

// NewHealthcheckWorker creates a new healthcheck worker
func NewHealthcheckWorker(store *storage.PostgresStore, client *http.Client, staleAfter time.Duration) *HealthcheckWorker {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &HealthcheckWorker{
		store:      store,
		httpClient: client,
		staleAfter: staleAfter,
		trigger:    make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sweep outside the regular interval.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run starts the healthcheck loop
func (w *HealthcheckWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-w.trigger:
			w.sweep(ctx, batchSize)
		case <-ticker.C:
			w.sweep(ctx, batchSize)
		}
	}
}

func (w *HealthcheckWorker) sweep(ctx context.Context, batchSize int) {
	cars, err := w.store.GetStaleActiveCars(ctx, w.staleAfter, batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}

	if len(cars) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(cars))

	var alive, gone int
	for i := range cars {
		car := &cars[i]

		if ctx.Err() != nil {
			return
		}

		switch w.checkURL(ctx, car.URL) {
		case listingGone:
			if err := w.store.MarkCarInactive(ctx, car.ID); err != nil {
				log.Printf("Healthcheck: mark inactive %s: %v", car.ID, err)
				continue
			}
			gone++
			log.Printf("Healthcheck: listing gone %s (%s %s)", car.URL, car.Make, car.Model)
		case listingAlive:
			if err := w.store.TouchCar(ctx, car.ID); err != nil {
				log.Printf("Healthcheck: touch %s: %v", car.ID, err)
				continue
			}
			alive++
		case listingUnknown:
			// Transient error, leave the record alone and retry next sweep
		}

		time.Sleep(500 * time.Millisecond)
	}

	log.Printf("Healthcheck: %d alive, %d gone", alive, gone)
}

type listingState int

const (
	listingAlive listingState = iota
	listingGone
	listingUnknown
)

func (w *HealthcheckWorker) checkURL(ctx context.Context, url string) listingState {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return listingUnknown
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return listingUnknown
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return listingGone
	case http.StatusMethodNotAllowed:
		// Some sites reject HEAD, fall back to GET
		return w.checkURLGet(ctx, url)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return listingAlive
	}
	return listingUnknown
}

func (w *HealthcheckWorker) checkURLGet(ctx context.Context, url string) listingState {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return listingUnknown
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return listingUnknown
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return listingGone
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return listingAlive
	}
	return listingUnknown
}
