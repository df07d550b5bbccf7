package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/config"
	"github.com/sharnoff/placenet/dataset"
	"github.com/sharnoff/placenet/server"
	"github.com/sharnoff/placenet/session"
	"github.com/sharnoff/placenet/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file (defaults are used if empty)")
	addr := flag.String("addr", "", "Override listen address")
	dataPath := flag.String("data", "", "Override placement CSV path")
	modelDir := flag.String("model-dir", "", "Override directory for saved models")
	sessionDB := flag.String("session-db", "", "Override session archive path")
	seed := flag.Int64("seed", 0, "PRNG seed")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	cfg.ApplyOverrides(config.Overrides{
		Addr:      *addr,
		DataPath:  *dataPath,
		ModelDir:  *modelDir,
		SessionDB: *sessionDB,
		Seed:      *seed,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("cpu=%q cores=%d threads=%d avx2=%v", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores,
		cpuid.CPU.LogicalCores, cpuid.CPU.Supports(cpuid.AVX2))

	data, err := dataset.Open(cfg.DataPath, cfg.SyntheticSize, cfg.Seed)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	log.Printf("data=%q records=%d", cfg.DataPath, data.Len())

	sessions, err := store.OpenSessions(cfg.SessionDB)
	if err != nil {
		log.Fatalf("open session archive: %v", err)
	}
	defer sessions.Close()

	mode, err := placenet.ParseMode(cfg.Mode)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	m, err := session.NewManager(data, sessions, session.Options{
		TestFraction: cfg.TestFraction,
		Seed:         cfg.Seed,
		GridSteps:    cfg.GridSteps,
		ImageSize:    cfg.ImageSize,
		Pace:         cfg.Pace,
		ModelDir:     cfg.ModelDir,
		Defaults: session.TrainParams{
			Epochs:       cfg.Epochs,
			LearningRate: cfg.LearningRate,
			Mode:         mode,
			ReportEvery:  cfg.ReportEvery,
			Seed:         cfg.Seed,
		},
	})
	if err != nil {
		log.Fatalf("create session manager: %v", err)
	}
	defer m.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("addr=%s listening", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
	log.Printf("stopped")
}
