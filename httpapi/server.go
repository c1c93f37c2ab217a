package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"schadescout/models"
	"schadescout/scraper"
	"schadescout/storage"
)

// Server exposes the read API over scored cars plus a scrape trigger.
type Server struct {
	store        *storage.PostgresStore
	orchestrator *scraper.Orchestrator
	httpServer   *http.Server
}

func NewServer(addr string, store *storage.PostgresStore, orchestrator *scraper.Orchestrator) *Server {
	s := &Server{
		store:        store,
		orchestrator: orchestrator,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cars", s.handleListCars).Methods(http.MethodGet)
	api.HandleFunc("/cars/stats/summary", s.handleStatsSummary).Methods(http.MethodGet)
	api.HandleFunc("/cars/{id}", s.handleGetCar).Methods(http.MethodGet)
	api.HandleFunc("/scraping/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/scraping/run", s.handleTriggerRun).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server exits.
func (s *Server) ListenAndServe() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.CarFilter{
		Rating:     q.Get("rating"),
		Make:       q.Get("make"),
		OnlyActive: q.Get("active") != "false",
	}
	if v := q.Get("max_price"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxPrice = p
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	cars, err := s.store.ListCars(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		log.Printf("API: list cars: %v", err)
		return
	}
	if cars == nil {
		cars = []models.Car{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cars":  cars,
		"count": len(cars),
	})
}

func (s *Server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid car id")
		return
	}

	car, err := s.store.GetCarByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		log.Printf("API: get car: %v", err)
		return
	}
	if car == nil {
		writeError(w, http.StatusNotFound, "car not found")
		return
	}

	writeJSON(w, http.StatusOK, car)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.GetStatsSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		log.Printf("API: stats summary: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	runs, err := s.store.ListScrapeRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		log.Printf("API: list sessions: %v", err)
		return
	}
	if runs == nil {
		runs = []models.DomainScrapeRun{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": runs,
		"count":    len(runs),
	})
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator.IsRunning() {
		writeError(w, http.StatusConflict, "scrape already running")
		return
	}

	var body struct {
		Source string `json:"source"`
	}
	if r.Body != nil {
		// Body is optional; an empty or invalid body means all sources
		json.NewDecoder(r.Body).Decode(&body)
	}

	// Detach from the request context so the run survives the response
	go func() {
		ctx := context.Background()
		if body.Source != "" {
			s.orchestrator.TryRunSource(ctx, body.Source)
		} else {
			s.orchestrator.TryRun(ctx)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"source": body.Source,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
