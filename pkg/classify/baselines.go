package classify

import (
	"github.com/kernelsight/kernelsight/pkg/baseline"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// Signal and Stats are local aliases so classifier files read naturally
// without repeating the owning package name on every line.
type (
	Signal = store.Signal
	Stats  = baseline.Stats
	Trend  = baseline.Trend
)

// Baselines is the pre-fetched set of baseline stats and trends a
// classification pass runs against, keyed by (family, scope). Building
// this once per pass keeps each classifier a pure function over data
// already in hand rather than a store caller in its own right.
type Baselines struct {
	stats  map[string]*Stats
	trends map[string]Trend
}

// NewBaselines constructs an empty baseline set; callers populate it via
// Put/PutTrend before handing it to the classifiers.
func NewBaselines() *Baselines {
	return &Baselines{stats: map[string]*Stats{}, trends: map[string]Trend{}}
}

func baselineKey(family, scope string) string {
	if scope == "" {
		return family
	}
	return family + ":" + scope
}

// Put records a computed/loaded baseline for later lookup.
func (b *Baselines) Put(family, scope string, s *Stats) {
	b.stats[baselineKey(family, scope)] = s
}

// Get returns the baseline for (family, scope), or nil if none was
// loaded — classifiers must treat a nil baseline as "fall back to
// absolute thresholds" per §4.5.
func (b *Baselines) Get(family, scope string) *Stats {
	return b.stats[baselineKey(family, scope)]
}

// PutTrend records a computed trend for later lookup.
func (b *Baselines) PutTrend(family, scope string, t Trend) {
	b.trends[baselineKey(family, scope)] = t
}

// GetTrend returns the trend for (family, scope) and whether one was
// recorded at all (as opposed to recorded-but-absent).
func (b *Baselines) GetTrend(family, scope string) (Trend, bool) {
	t, ok := b.trends[baselineKey(family, scope)]
	return t, ok
}
