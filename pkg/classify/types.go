// Package classify implements the C4 classifier set: pure functions
// mapping a window of raw rows plus a baselines snapshot to severity-
// graded signals (§4.4).
package classify

import (
	"fmt"
	"time"

	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// Pattern tags are a closed vocabulary (GLOSSARY).
const (
	PatternLinearGrowth    = "linear_growth"
	PatternBurst           = "burst"
	PatternThunderingHerd  = "thundering_herd"
	PatternSynFloodSuspect = "syn_flood_suspect"
	PatternForkBombSuspect = "fork_bomb_suspect"
	PatternSwapCascade     = "swap_cascade"
	PatternBlockStarvation = "block_starvation"
)

// Signal types (§3.2).
const (
	TypeMemoryPressure        = "memory_pressure"
	TypeLoadMismatch          = "load_mismatch"
	TypeIOCongestion          = "io_congestion"
	TypeNetworkDegradation    = "network_degradation"
	TypeTCPExhaustion         = "tcp_exhaustion"
	TypeSwapThrashing         = "swap_thrashing"
	TypeBlockDeviceSaturation = "block_device_saturation"
	TypeScheduler             = "scheduler"
	TypeSyscall               = "syscall"
	TypePageFault              = "page_fault"
)

// Evidence is one metric's supporting detail in a signal's evidence
// object (§4.4 requirement 4).
type Evidence struct {
	Current      float64  `json:"current"`
	BaselineMean float64  `json:"baseline_mean"`
	BaselineStd  float64  `json:"baseline_std"`
	Zscore       float64  `json:"zscore"`
	Trend        *float64 `json:"trend,omitempty"`
}

// builder accumulates the fields of one signal before it is handed back
// to the caller for persistence via store.UpsertSignal.
type builder struct {
	sig store.Signal
}

func newSignal(now time.Time, category kernsight.Category, signalType, scope, semanticLabel string, severity kernsight.Severity) *builder {
	return &builder{sig: store.Signal{
		Timestamp:     now,
		Category:      string(category),
		SignalType:    signalType,
		Scope:         scope,
		SemanticLabel: semanticLabel,
		Severity:      string(severity),
		Context:       map[string]any{},
	}}
}

func (b *builder) summary(format string, args ...any) *builder {
	b.sig.Summary = fmt.Sprintf(format, args...)
	return b
}

func (b *builder) patterns(p ...string) *builder {
	b.sig.Patterns = p
	return b
}

func (b *builder) hints(h ...string) *builder {
	b.sig.ReasoningHints = h
	return b
}

func (b *builder) evidence(metric string, e Evidence) *builder {
	ev, _ := b.sig.Context["evidence"].(map[string]Evidence)
	if ev == nil {
		ev = map[string]Evidence{}
	}
	ev[metric] = e
	b.sig.Context["evidence"] = ev
	return b
}

func (b *builder) source(table string, id int64) *builder {
	b.sig.SourceTable = table
	b.sig.SourceID = id
	return b
}

func (b *builder) entity(entityType, id, name string) *builder {
	b.sig.EntityType = entityType
	b.sig.EntityID = id
	b.sig.EntityName = name
	return b
}

func (b *builder) pressure(score float64) *builder {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	b.sig.PressureScore = score
	return b
}

func (b *builder) build() store.Signal { return b.sig }

func zscoreEvidence(current float64, st *baseline.Stats) Evidence {
	if st == nil {
		return Evidence{Current: current}
	}
	return Evidence{
		Current:      current,
		BaselineMean: st.Mean,
		BaselineStd:  st.Std,
		Zscore:       st.Zscore(current),
	}
}
