package domain

import (
	"context"
	"fmt"
	"log/slog"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

// Resolver obtains the destination suite of a sync.
type Resolver interface {
	// Resolve starts resolution in the background and returns immediately.
	Resolve(ctx context.Context) *Resolution
}

type resolver struct {
	cfg    *m.Config
	client adapter.QTestClient
}

// NewResolver constructs a Resolver using the strategy selected by cfg.
func NewResolver(cfg *m.Config, client adapter.QTestClient) Resolver {
	return &resolver{cfg: cfg, client: client}
}

func (r *resolver) Resolve(ctx context.Context) *Resolution {
	resolution := newResolution()

	if err := r.cfg.Validate(); err != nil {
		resolution.settle(m.SuiteResolution{}, err)
		return resolution
	}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("suite resolution panicked", "panic", p)
				resolution.settle(m.SuiteResolution{}, fmt.Errorf("suite resolution panicked: %v", p))
			}
		}()

		value, err := r.resolve(ctx)
		if err != nil {
			slog.Error("suite resolution failed", "strategy", r.cfg.Strategy(), "error", err)
		}

		resolution.settle(value, err)
	}()

	return resolution
}

func (r *resolver) resolve(ctx context.Context) (m.SuiteResolution, error) {
	switch r.cfg.Strategy() {
	case m.StrategyExistingSuite:
		runs, err := r.client.ListTestRuns(ctx, r.cfg.SuiteID)
		if err != nil {
			return m.SuiteResolution{}, fmt.Errorf("list test runs of suite %s: %w", r.cfg.SuiteID, err)
		}

		slog.Info("test runs found", "suiteID", r.cfg.SuiteID, "count", len(runs))

		return m.SuiteResolution{SuiteID: r.cfg.SuiteID, Runs: runs}, nil

	case m.StrategyNewSuite:
		suiteID, err := r.client.CreateSuite(ctx, r.cfg.ParentType, r.cfg.ParentID, r.cfg.SuiteName)
		if err != nil {
			return m.SuiteResolution{}, fmt.Errorf("create suite %q: %w", r.cfg.SuiteName, err)
		}

		return m.SuiteResolution{SuiteID: suiteID, Runs: m.RunMapping{}}, nil

	case m.StrategyNone:
	}

	return m.SuiteResolution{}, m.ErrMissingSuite
}
