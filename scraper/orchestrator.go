package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"schadescout/classify"
	"schadescout/config"
	"schadescout/httputil"
	"schadescout/models"
	"schadescout/pricing"
	"schadescout/services"
	"schadescout/vpn"
)

// RunStore is the operational-store slice the orchestrator writes run
// records, logs and command parameters through.
type RunStore interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	UpdateSourceStats(source string) error
	Log(runID *int64, level models.LogLevel, message, source string) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

// DomainStore is the Postgres-backed slice the processing pipeline and
// run mirroring need.
type DomainStore interface {
	services.CarStore
	pricing.HistoryStore
	CreateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error
	UpdateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error
}

// Orchestrator drives scrape runs across all configured sources. At most
// one run is active at a time; overlapping triggers are skipped.
type Orchestrator struct {
	cfg      *config.Config
	store    RunStore
	handlers map[string]Handler
	pgStore  DomainStore

	crosslist *services.CrosslistService
	vpnClient *vpn.ExpressVPN

	mu      sync.Mutex
	running bool
	paused  bool
}

func NewOrchestrator(cfg *config.Config, store RunStore, pgStore DomainStore, clients *httputil.Clients) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, sourceCfg := range cfg.Sources {
		if !sourceCfg.Enabled {
			continue
		}
		handlers[id] = NewHandler(sourceCfg, &cfg.Scraper, clients)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
		pgStore:  pgStore,
	}
}

// SetServices injects the Postgres-backed services
func (o *Orchestrator) SetServices(crosslist *services.CrosslistService) {
	o.crosslist = crosslist
}

// SetVPN wires the VPN client into browser handlers for block recovery.
func (o *Orchestrator) SetVPN(v *vpn.ExpressVPN) {
	o.vpnClient = v
	for _, h := range o.handlers {
		if bh, ok := h.(*BrowserHandler); ok {
			bh.SetVPN(v)
		}
	}
}

// TryRun starts a run of all sources unless one is already active.
// Returns false when the run was skipped.
func (o *Orchestrator) TryRun(ctx context.Context) bool {
	o.mu.Lock()
	if o.running || o.paused {
		skipped := "already running"
		if o.paused {
			skipped = "paused"
		}
		o.mu.Unlock()
		log.Printf("Scrape skipped: %s", skipped)
		return false
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.runAll(ctx, "")
	return true
}

// TryRunSource runs a single source unless a run is already active.
func (o *Orchestrator) TryRunSource(ctx context.Context, source string) bool {
	o.mu.Lock()
	if o.running || o.paused {
		o.mu.Unlock()
		log.Printf("Scrape of %s skipped: busy or paused", source)
		return false
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.runAll(ctx, source)
	return true
}

// IsRunning reports whether a scrape run is in progress.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) runAll(ctx context.Context, only string) {
	// The seen set and the estimator cache inside the car service span
	// every source of the run: a car listed on two sites is priced once,
	// and a URL met under two search terms is processed once.
	carService := o.newCarService()
	seen := make(map[string]bool)

	for sourceID := range o.handlers {
		if only != "" && sourceID != only {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := o.runSource(ctx, sourceID, carService, seen); err != nil {
			log.Printf("Error running source %s: %v", sourceID, err)
		}
	}
	if only != "" {
		if _, ok := o.handlers[only]; !ok {
			log.Printf("Unknown or disabled source: %s", only)
		}
	}
}

func (o *Orchestrator) runSource(ctx context.Context, sourceID string, carService *services.CarService, seen map[string]bool) error {
	sourceCfg, ok := o.cfg.Sources[sourceID]
	if !ok {
		return fmt.Errorf("unknown source: %s", sourceID)
	}

	handler, ok := o.handlers[sourceID]
	if !ok {
		return fmt.Errorf("no handler for source: %s", sourceID)
	}

	run := &models.ScrapeRun{
		Source:    sourceID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	// Mirror the run in Postgres for the read API
	var pgRunID *int64
	if o.pgStore != nil {
		pgRun := &models.DomainScrapeRun{
			Source:    sourceID,
			StartedAt: time.Now(),
			Status:    "running",
		}
		if err := o.pgStore.CreateScrapeRun(ctx, pgRun); err != nil {
			log.Printf("Warning: failed to create Postgres run: %v", err)
		} else {
			pgRunID = &pgRun.ID
		}
	}

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", sourceCfg.Name), sourceID)

	stats := &services.ProcessStats{}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		o.store.UpdateRun(run)
		o.store.UpdateSourceStats(sourceID)

		if pgRunID != nil {
			pgRun := &models.DomainScrapeRun{
				ID:           *pgRunID,
				FinishedAt:   &now,
				Status:       "completed",
				CarsFound:    run.CarsFound,
				CarsNew:      stats.CarsNew,
				CarsRejected: stats.CarsRejected,
				ErrorsCount:  stats.Errors,
				Metadata:     stats.ToJSON(),
			}
			if run.Status == models.RunStatusFailed {
				pgRun.Status = "failed"
			}
			o.pgStore.UpdateScrapeRun(ctx, pgRun)
		}
	}()

	for _, target := range o.cfg.Targets {
		if ctx.Err() != nil {
			run.Status = models.RunStatusFailed
			return ctx.Err()
		}

		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Searching %s %s", target.Make, target.Model), sourceID)

		candidates, err := handler.Scrape(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				run.Status = models.RunStatusFailed
				return ctx.Err()
			}
			// One target failing must not cost us the rest of the run
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape error for %s %s: %v", target.Make, target.Model, err), sourceID)
			run.ErrorsCount++
			stats.Errors++
			continue
		}

		run.CarsFound += len(candidates)
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("%s %s: %d candidates", target.Make, target.Model, len(candidates)), sourceID)

		for i := range candidates {
			cand := &candidates[i]
			if cand.URL != "" && seen[cand.URL] {
				continue
			}
			seen[cand.URL] = true

			result, err := carService.ProcessCandidate(ctx, cand)
			if err != nil {
				o.log(run.ID, models.LogLevelError, fmt.Sprintf("Process error for %s: %v", cand.URL, err), sourceID)
				run.ErrorsCount++
				stats.Errors++
				continue
			}
			stats.Aggregate(result)

			if result.Rejected {
				run.CarsRejected++
			} else if result.IsNew {
				run.CarsNew++
			}
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d found, %d new, %d rejected",
			run.CarsFound, run.CarsNew, run.CarsRejected), sourceID)

	return nil
}

// newCarService builds the per-run processing chain. The marktplaats
// handler doubles as the live price sampler when it is a browser handler.
func (o *Orchestrator) newCarService() *services.CarService {
	var sampler pricing.Sampler
	if h, ok := o.handlers["marktplaats"]; ok {
		if browser, ok := h.(*BrowserHandler); ok {
			sampler = browser
		}
	}

	classifier := newClassifier(&o.cfg.Lexicons)
	policy := policyFromConfig(&o.cfg.Pricing)
	estimator := pricing.NewEstimator(sampler, o.pgStore, policy)
	return services.NewCarService(o.pgStore, classifier, estimator, policy, o.crosslist)
}

// newClassifier applies lexicon overrides from config, falling back to the
// built-in word lists when a list is empty.
func newClassifier(lex *config.Lexicons) *classify.Classifier {
	return classify.New(lex.Severe, lex.Cosmetic, lex.Exclude)
}

func policyFromConfig(cfg *config.PricingConfig) pricing.Policy {
	p := pricing.DefaultPolicy()
	if cfg.CutoffRatio > 0 {
		p.CutoffRatio = cfg.CutoffRatio
	}
	if cfg.ThresholdExcellent > 0 {
		p.ThresholdExcellent = cfg.ThresholdExcellent
	}
	if cfg.ThresholdGood > 0 {
		p.ThresholdGood = cfg.ThresholdGood
	}
	if cfg.ThresholdFair > 0 {
		p.ThresholdFair = cfg.ThresholdFair
	}
	if cfg.MinSamples > 0 {
		p.MinSamples = cfg.MinSamples
	}
	if cfg.BaselineYear > 0 {
		p.BaselineYear = cfg.BaselineYear
	}
	if cfg.DepreciationRate > 0 {
		p.DepreciationRate = cfg.DepreciationRate
	}
	if cfg.SampleFloor > 0 {
		p.SampleFloor = cfg.SampleFloor
	}
	if cfg.SampleCeiling > 0 {
		p.SampleCeiling = cfg.SampleCeiling
	}
	return p
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		o.TryRun(ctx)
	case models.CmdScrapeSource:
		if params.Source != "" {
			o.TryRunSource(ctx, params.Source)
		} else {
			o.TryRun(ctx)
		}
	case models.CmdPause:
		o.mu.Lock()
		o.paused = true
		o.mu.Unlock()
		log.Println("Scraper paused")
	case models.CmdResume:
		o.mu.Lock()
		o.paused = false
		o.mu.Unlock()
		log.Println("Scraper resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Close shuts down browser handlers.
func (o *Orchestrator) Close() {
	for _, h := range o.handlers {
		if bh, ok := h.(*BrowserHandler); ok {
			bh.Close()
		}
	}
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, source string) {
	log.Printf("[%s] %s: %s", level, source, message)
	o.store.Log(&runID, level, message, source)
}

func (o *Orchestrator) GetSourceIDs() []string {
	var ids []string
	for id := range o.handlers {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := map[string]interface{}{
		"paused":  o.paused,
		"running": o.running,
		"sources": o.GetSourceIDs(),
	}
	return json.Marshal(status)
}
