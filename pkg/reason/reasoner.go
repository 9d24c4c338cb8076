package reason

import (
	"context"

	"go.uber.org/zap"
)

// Reasoner is the interface both implementations satisfy (§4.10
// "propose(context) -> Decision").
type Reasoner interface {
	Propose(ctx context.Context, in Input) (*Decision, error)
}

// Hybrid composes the oracle and the rule-based table the way the
// decision loop actually wants to use them: try the oracle when
// enabled, fall through to the deterministic table on any failure
// (disabled, API error, exhausted retries). When the table has no entry
// for the signal's (signal_type, severity) pair, Propose returns
// RuleBased's UnknownType error and no decision.
type Hybrid struct {
	oracle  *Oracle
	enabled bool
	logger  *zap.Logger
}

// NewHybrid builds the composed reasoner. enabled mirrors
// Config.OracleEnabled (KERNELSIGHT_ORACLE_ENABLED).
func NewHybrid(oracle *Oracle, enabled bool, logger *zap.Logger) *Hybrid {
	return &Hybrid{oracle: oracle, enabled: enabled, logger: logger}
}

func (h *Hybrid) Propose(ctx context.Context, in Input) (*Decision, error) {
	if h.enabled && h.oracle != nil {
		d, err := h.oracle.Propose(ctx, in)
		if err == nil {
			return d, nil
		}
		h.logger.Warn("oracle failed, falling through to rule-based", zap.Error(err))
	}
	return RuleBased(in)
}
