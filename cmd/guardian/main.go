package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/config"
	"github.com/danielpatrickdp/guardian/internal/enforce"
	"github.com/danielpatrickdp/guardian/internal/health"
	"github.com/danielpatrickdp/guardian/internal/manifest"
	"github.com/danielpatrickdp/guardian/internal/ratelimit"
	"github.com/danielpatrickdp/guardian/internal/rollout"
	"github.com/danielpatrickdp/guardian/internal/server"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/telemetry"
)

// #region main

func main() {
	configPath := flag.String("config", envOr("GUARDIAN_CONFIG", "guardian.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := audit.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open audit store: %v", err)
	}
	defer store.Close()

	artifact, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		log.Fatalf("load manifest: %v", err)
	}

	// Protection loop: sampler → supervisor → enforcer.
	killWindow := ratelimit.NewKillWindow(cfg.KillLimit)
	controller := enforce.NewHTTPController(cfg.ControlURL)
	enforcer := enforce.NewEnforcer(controller, killWindow, store, cfg.Retry, cfg.Enforce)
	sup := supervisor.New(cfg.Thresholds, cfg.Supervisor, enforcer, store)
	sampler := health.NewSampler(health.NewSystemReader(), cfg.Sampler)

	// Rollout loop: telemetry → slo → gate.
	reader := telemetry.NewHTTPReader(cfg.TelemetryURL, cfg.Retry)
	gate, err := rollout.NewGate(cfg.Rollout, cfg.SLO, reader, store, sup.CurrentState, artifact)
	if err != nil {
		log.Fatalf("build promotion gate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples := make(chan health.Sample, 1)
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		sampler.Run(ctx, samples)
	}()
	go func() {
		defer wg.Done()
		sup.Run(ctx, samples)
	}()
	go func() {
		defer wg.Done()
		enforcer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		gate.Run(ctx)
	}()

	srv := server.New(server.Config{ListenAddr: cfg.ListenAddr, ActionHistory: 20},
		sup, gate, killWindow, store)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
	go func() {
		log.Printf("[MAIN] listening on %s (db=%s manifest=%s)", cfg.ListenAddr, cfg.DBPath, artifact.Hash)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[MAIN] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Enforce.ShutdownGrace+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] http shutdown: %v", err)
	}

	// The enforcer drains in-flight commands on its way out.
	wg.Wait()
	log.Println("[MAIN] stopped")
}

// #endregion main

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
