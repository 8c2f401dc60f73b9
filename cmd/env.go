package main

import (
	"context"
	"time"

	"github.com/localpulse/rankgrid-cli/internal/config"
	"github.com/localpulse/rankgrid-cli/internal/rankcheck"
	"github.com/localpulse/rankgrid-cli/internal/store"
	"github.com/localpulse/rankgrid-cli/pkg/dataforseo"
)

// newProvider builds the ranking provider client selected by config. The
// fake path shares the orchestrator and aggregator with production.
func newProvider(cfg *config.Config, businessName string) dataforseo.Client {
	if cfg.Provider.Mode == "fake" {
		return dataforseo.NewFake(businessName)
	}
	return dataforseo.NewClient(
		cfg.Provider.Login,
		cfg.Provider.Password,
		dataforseo.WithBaseURL(cfg.Provider.BaseURL),
		dataforseo.WithRateLimit(cfg.Provider.RateLimit),
	)
}

// newEngine builds a check engine with configured polling and scoring.
func newEngine(cfg *config.Config, client dataforseo.Client) *rankcheck.Engine {
	pollOpts := []dataforseo.PollOption{
		dataforseo.WithInitialWait(time.Duration(cfg.Poll.InitialWaitSecs) * time.Second),
		dataforseo.WithBackoff(
			time.Duration(cfg.Poll.BackoffSecs)*time.Second,
			time.Duration(cfg.Poll.BackoffCapSecs)*time.Second,
		),
		dataforseo.WithDeadline(time.Duration(cfg.Poll.TaskDeadlineSecs) * time.Second),
	}
	if cfg.Provider.Mode == "fake" {
		// No reason to simulate provider latency on the fake path.
		pollOpts = []dataforseo.PollOption{
			dataforseo.WithInitialWait(time.Millisecond),
			dataforseo.WithBackoff(time.Millisecond, 10*time.Millisecond),
		}
	}

	return rankcheck.NewEngine(client,
		rankcheck.WithVisibilityPolicy(cfg.Visibility),
		rankcheck.WithPollOptions(pollOpts...),
		rankcheck.WithDevice(cfg.Provider.Device),
		rankcheck.WithDepth(cfg.Provider.Depth),
	)
}

// newStore opens the configured persistence backend and ensures the schema.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	if cfg.Store.Driver == "postgres" {
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	} else {
		st, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
