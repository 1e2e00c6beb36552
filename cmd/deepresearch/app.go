package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/config"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/orchestrator"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/phase"
	"github.com/guangtouwangba/open-deep-research/internal/resilience"
	"github.com/guangtouwangba/open-deep-research/internal/search"
)

// app holds everything one command invocation needs to run jobs.
type app struct {
	cfg    *config.Config
	store  *persistence.SQLiteStore
	gen    backend.Backend
	pm     *backend.ProcessManager
	bus    *events.EventBus
	engine *orchestrator.Engine
}

// openStore opens the job database without wiring any collaborators.
func openStore(ctx context.Context, cfg *config.Config) (*persistence.SQLiteStore, error) {
	store, err := persistence.NewSQLiteStore(ctx, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}
	return store, nil
}

// newApp wires the store, collaborators and engine. gate may be nil for
// unattended runs.
func newApp(ctx context.Context, cfg *config.Config, gate phase.Gate) (*app, error) {
	pm := backend.NewProcessManager()
	reg := resilience.NewRegistry()

	gen, err := backend.New(cfg.BackendConfig(), pm)
	if err != nil {
		return nil, fmt.Errorf("creating generation backend: %w", err)
	}
	gen = backend.WithRetry(gen, "generation", reg, cfg.RetryPolicy())

	domains, err := domain.NewRegistry(cfg.Domains...)
	if err != nil {
		gen.Close()
		return nil, fmt.Errorf("loading domains: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		gen.Close()
		return nil, err
	}

	bus := events.NewEventBus()
	engine, err := orchestrator.NewEngine(orchestrator.EngineConfig{
		Store:            store,
		Generator:        gen,
		Searcher:         newSearcher(cfg, reg),
		Domains:          domains,
		Gate:             gate,
		Bus:              bus,
		Concurrency:      cfg.Pipeline.Concurrency,
		CallTimeout:      cfg.CallTimeout(),
		DedupThreshold:   cfg.Pipeline.DedupThreshold,
		OverlapThreshold: cfg.Pipeline.OverlapThreshold,
		MinSources:       cfg.Pipeline.MinSources,
		MaxClaims:        cfg.Pipeline.MaxClaims,
		CouncilTopics:    cfg.Pipeline.CouncilTopics,
	})
	if err != nil {
		bus.Close()
		store.Close()
		gen.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, gen: gen, pm: pm, bus: bus, engine: engine}, nil
}

// newSearcher returns the configured provider, or search.Unavailable when
// search is off or cannot be set up. Missing search never blocks a job.
func newSearcher(cfg *config.Config, reg *resilience.Registry) search.Searcher {
	if cfg.Search.Provider == "none" {
		return search.Unavailable{}
	}

	opts := []search.TavilyOption{search.WithTimeout(cfg.SearchTimeout())}
	if cfg.Search.Endpoint != "" {
		opts = append(opts, search.WithEndpoint(cfg.Search.Endpoint))
	}
	client, err := search.NewTavilyClient(cfg.Search.APIKey, opts...)
	if err != nil {
		log.Printf("WARNING: web search disabled: %v", err)
		return search.Unavailable{}
	}
	return search.WithRetry(client, "search", reg, cfg.RetryPolicy())
}

func (a *app) Close() error {
	a.bus.Close()
	return errors.Join(a.store.Close(), a.gen.Close())
}
