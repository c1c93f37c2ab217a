package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schadescout/config"
	"schadescout/httpapi"
	"schadescout/httputil"
	"schadescout/logging"
	"schadescout/scheduler"
	"schadescout/scraper"
	"schadescout/services"
	"schadescout/storage"
	"schadescout/vpn"
	"schadescout/workers"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Run scrape once and exit")
	seedPrices = flag.Bool("seed", false, "Seed historical market prices and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("schadescout.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting schadescout...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d source configs, %d search targets", len(cfg.Sources), len(cfg.Targets))
	for id, source := range cfg.Sources {
		log.Printf("  - %s (%s)", source.Name, id)
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", cfg.Proxy.URL)
	}

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.URL))

	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *seedPrices {
		n, err := pgStore.SeedMarketPrices(ctx)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeded %d market price rows", n)
		return
	}

	crosslistService := services.NewCrosslistService(pgStore)
	log.Println("Services initialized")

	// SQLite holds operational data: runs, logs, command queue
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, pgStore, clients)
	orchestrator.SetServices(crosslistService)
	defer orchestrator.Close()

	if cfg.ExpressVPN.AutoConnect {
		vpnClient := vpn.NewExpressVPN(&vpn.Config{
			ActivationCode: cfg.ExpressVPN.ActivationCode,
			AutoConnect:    cfg.ExpressVPN.AutoConnect,
			Region:         cfg.ExpressVPN.Region,
		})
		if err := vpnClient.EnsureConnected(); err != nil {
			log.Printf("Warning: VPN not connected: %v", err)
		}
		orchestrator.SetVPN(vpnClient)
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if !orchestrator.TryRun(ctx) {
			log.Fatal("Scrape did not start")
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var uploader workers.Uploader
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		uploader = s3up
		log.Printf("S3 uploads enabled: %s", cfg.S3.Bucket)
	} else {
		uploader = workers.NewNoOpUploader()
		log.Println("No S3 bucket configured, photo archival disabled")
	}

	imageWorker := workers.NewImageWorker(pgStore, uploader)
	go imageWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Image worker started")

	healthcheckWorker := workers.NewHealthcheckWorker(pgStore, clients.Scraping, 24*time.Hour)
	go healthcheckWorker.Run(ctx, 20, 30*time.Minute)
	log.Println("Healthcheck worker started")

	sched.SetWorkers(imageWorker, healthcheckWorker)

	apiServer := httpapi.NewServer(cfg.API.Addr, pgStore, orchestrator)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiServer.Shutdown(shutdownCtx)
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
