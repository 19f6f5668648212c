package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/carlosrabelo/tatuscan/internal/db"
	"github.com/carlosrabelo/tatuscan/internal/handlers"
	"github.com/carlosrabelo/tatuscan/internal/inventory"
	"github.com/carlosrabelo/tatuscan/internal/metrics"
	"github.com/carlosrabelo/tatuscan/internal/middleware"
	"github.com/carlosrabelo/tatuscan/internal/web"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type config struct {
	dbPath   string
	port     string
	timezone string
	logLevel slog.Level
}

// loadConfig reads service configuration from environment variables and
// applies defaults. TATUSCAN_PORT wins over the generic PORT.
func loadConfig() (config, error) {
	var cfg config

	dir := os.Getenv("TATUSCAN_DB_DIR")
	if dir == "" {
		dir = "/data"
	}
	file := os.Getenv("TATUSCAN_DB_FILE")
	if file == "" {
		file = "tatuscan.db"
	}
	cfg.dbPath = filepath.Join(dir, file)

	cfg.port = os.Getenv("TATUSCAN_PORT")
	if cfg.port == "" {
		cfg.port = os.Getenv("PORT")
	}
	if cfg.port == "" {
		cfg.port = "8040"
	}

	cfg.timezone = os.Getenv("TIMEZONE")
	if cfg.timezone == "" {
		cfg.timezone = "America/Cuiaba"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "INFO"
	}
	if err := cfg.logLevel.UnmarshalText([]byte(level)); err != nil {
		return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.logLevel,
	})))

	loc, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", cfg.timezone, err)
	}

	database, err := db.New(cfg.dbPath, loc)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	svc := &inventory.Service{DB: database, Loc: loc}
	api := &handlers.Handler{Svc: svc}
	dashboard := &web.Handler{Svc: svc}

	metrics.Register(database)

	mux := http.NewServeMux()

	// Dashboard
	mux.HandleFunc("GET /{$}", dashboard.Home)
	mux.HandleFunc("GET /report", dashboard.Report)
	mux.HandleFunc("GET /charts", dashboard.Charts)

	// Health check and Prometheus metrics
	mux.HandleFunc("GET /api/health", api.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Machine inventory API
	mux.Handle("GET /api/machines",
		metrics.Middleware("/api/machines", http.HandlerFunc(api.ListMachines)))
	mux.Handle("GET /api/inventory",
		metrics.Middleware("/api/inventory", http.HandlerFunc(api.ListMachines)))
	mux.Handle("POST /api/machines",
		metrics.Middleware("/api/machines", http.HandlerFunc(api.ReportMachine)))
	mux.Handle("PATCH /api/machines/{id}",
		metrics.Middleware("/api/machines/{id}", http.HandlerFunc(api.PatchActivation)))
	mux.Handle("DELETE /api/machines/{id}",
		metrics.Middleware("/api/machines/{id}", http.HandlerFunc(api.DeleteMachine)))

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/api/health" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestID(middleware.RequestLogger(slog.Default(), skip, mux))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("tatuscand %s (%s) listening on :%s", version, commit, cfg.port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("database close error: %v", err)
	}
	log.Println("server stopped")
}
