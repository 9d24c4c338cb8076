package reason

import (
	"fmt"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// ruleKey is the (signal_type, severity) lookup key §4.10 specifies.
type ruleKey struct {
	signalType string
	severity   string
}

// rule builds the ActionRef and fixed confidence for one table entry.
// build receives the Input so it can pull parameters (pid, device,
// iface) out of the triggering signal.
type rule struct {
	build      func(in Input) ActionRef
	confidence float64
}

// ruleTable is the deterministic decision table (§4.10 "rule-based
// mode"). It is intentionally small and literal — every entry mirrors
// one of the named examples in §4.10, generalized to the remaining
// signal/severity pairs the classifiers in pkg/classify can produce.
var ruleTable = map[ruleKey]rule{
	{"memory_pressure", "critical"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "clear_page_cache"} },
		confidence: 0.80,
	},
	{"memory_pressure", "high"}: {
		build: func(in Input) ActionRef {
			return ActionRef{ActionType: "lower_process_priority", Params: map[string]any{
				"pid":      topPID(in.Signal),
				"priority": 10,
			}}
		},
		confidence: 0.80,
	},
	{"memory_pressure", "medium"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "list_top_memory", Params: map[string]any{"limit": 10}} },
		confidence: 0.80,
	},
	{"swap_thrashing", "high"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "reduce_swappiness", Params: map[string]any{"value": 10}} },
		confidence: 0.80,
	},
	{"swap_thrashing", "critical"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "reduce_swappiness", Params: map[string]any{"value": 1}} },
		confidence: 0.80,
	},
	{"io_congestion", "high"}: {
		build: func(in Input) ActionRef {
			return ActionRef{ActionType: "lower_io_priority", Params: map[string]any{"pid": topPID(in.Signal), "io_class": 3}}
		},
		confidence: 0.80,
	},
	{"io_congestion", "critical"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "flush_buffers"} },
		confidence: 0.80,
	},
	{"tcp_exhaustion", "high"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "reduce_fin_timeout", Params: map[string]any{"seconds": 15}} },
		confidence: 0.80,
	},
	{"network_degradation", "critical"}: {
		build: func(in Input) ActionRef {
			return ActionRef{ActionType: "rate_limit_syn", Params: map[string]any{"iface": scopeOr(in.Signal, "eth0"), "rate": 100}}
		},
		confidence: 0.80,
	},
	{"network_degradation", "high"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "check_network_stats", Params: map[string]any{"iface": scopeOr(in.Signal, "eth0")}} },
		confidence: 0.80,
	},
	{"scheduler", "critical"}: {
		build: func(in Input) ActionRef {
			return ActionRef{ActionType: "lower_process_priority", Params: map[string]any{"pid": entityPID(in.Signal), "priority": 15}}
		},
		confidence: 0.80,
	},
	{"scheduler", "high"}: {
		build: func(in Input) ActionRef {
			return ActionRef{ActionType: "lower_process_priority", Params: map[string]any{"pid": entityPID(in.Signal), "priority": 10}}
		},
		confidence: 0.80,
	},
	{"syscall", "high"}: {
		build:      func(in Input) ActionRef { return ActionRef{ActionType: "check_open_files", Params: map[string]any{"pid": entityPID(in.Signal)}} },
		confidence: 0.80,
	},
}

// RuleBased implements the deterministic fallback: a decision table
// keyed by (signal_type, severity) returning the canonical action, with
// a fixed confidence per entry (§4.10). Deterministic by construction —
// no randomness, no wall-clock reads — so tests can rely on it.
func RuleBased(in Input) (*Decision, error) {
	key := ruleKey{signalType: in.Signal.SignalType, severity: in.Signal.Severity}
	r, ok := ruleTable[key]
	if !ok {
		return nil, kernsight.UnknownType("reason.RuleBased", fmt.Errorf("no rule for (%s, %s)", key.signalType, key.severity))
	}

	d := &Decision{
		Observation:       in.ObservationText,
		Hypothesis:        fmt.Sprintf("%s at %s severity matches a known remediation pattern", in.Signal.SignalType, in.Signal.Severity),
		Evidence:          []string{in.Signal.Summary},
		BaselineContext:   in.Baseline,
		PredictedOutcome:  projectionToMap(in.Projection),
		RecommendedAction: r.build(in),
		Confidence:        r.confidence,
		Source:            "rule_based",
	}
	return d, nil
}

// topPID pulls the highest-RSS pid the classifier recorded in the
// signal's context, when available. Host-scoped memory signals do not
// always carry per-process attribution (raw_meminfo has no per-process
// breakdown) — in that case this returns 0, which pkg/actions' positive-
// integer validator correctly rejects, aborting the cycle with
// ValidationFailure rather than acting on a guessed pid.
func topPID(sig store.Signal) int {
	if sig.Context == nil {
		return 0
	}
	if v, ok := sig.Context["top_rss_pid"]; ok {
		if n, ok := asInt(fmt.Sprint(v)); ok {
			return n
		}
	}
	return 0
}

func scopeOr(sig store.Signal, fallback string) string {
	if sig.Scope != "" {
		return sig.Scope
	}
	return fallback
}

// entityPID reads the pid out of a process-scoped signal's entity_id,
// which pkg/classify always sets to the decimal pid string for
// process-entity signals (scheduler, syscall).
func entityPID(sig store.Signal) int {
	if n, ok := asInt(sig.EntityID); ok {
		return n
	}
	return 0
}

func asInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
