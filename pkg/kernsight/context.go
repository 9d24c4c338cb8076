package kernsight

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// Context is the explicit value threaded into every component, replacing
// the global DB handle and classifier singletons a duck-typed rewrite of
// this system would reach for (§9 design note). One Context per process:
// built on startup, dropped on shutdown. Tests build fresh ones against a
// tempdir store.
//
// The action catalog (pkg/actions) isn't a field here — it's a pure,
// stateless package of lookup tables and builder functions, so there's
// nothing to hold a reference to.
type Context struct {
	Store     *store.Store
	Baselines *baseline.Engine
	Metrics   *Metrics
	Clock     Clock
	Config    Config
	Logger    *zap.Logger
}

// NewContext opens the store at cfg.DBPath and wires the baseline engine
// and a fresh, private Metrics registry around it. Callers that already
// hold a Clock or Logger they want shared across multiple Contexts (tests,
// mainly) should use Wire instead.
func NewContext(cfg Config, logger *zap.Logger) (*Context, error) {
	return Wire(cfg, logger, SystemClock{})
}

// Wire builds a Context from an already-constructed Clock, letting tests
// substitute a FixedClock without re-deriving the rest of the wiring.
func Wire(cfg Config, logger *zap.Logger, clock Clock) (*Context, error) {
	st, err := store.Open(cfg.DBPath, clock)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Init(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Context{
		Store:     st,
		Baselines: baseline.New(st, clock),
		Metrics:   NewMetrics(),
		Clock:     clock,
		Config:    cfg,
		Logger:    logger,
	}, nil
}

// Close drops the Context's store handle. Safe to call once per Context.
func (c *Context) Close() error {
	return c.Store.Close()
}
