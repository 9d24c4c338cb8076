package loop

import (
	"context"
	"encoding/json"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// priorPayload is what gets marshaled into an action_prior::...
// system_baselines row's payload_json.
type priorPayload struct {
	Value float64 `json:"value"`
}

func priorKey(signalType, actionType string) string {
	return "action_prior::" + signalType + "::" + actionType
}

// getPrior reads the learned confidence prior for (signalType,
// actionType), or fallback if none has been recorded yet.
func getPrior(ctx context.Context, snap *store.Snapshot, signalType, actionType string, fallback float64) (float64, error) {
	b, err := snap.GetBaseline(ctx, priorKey(signalType, actionType), 0)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return fallback, nil
	}
	var p priorPayload
	if err := json.Unmarshal(b.PayloadJSON, &p); err != nil {
		return fallback, nil
	}
	return p.Value, nil
}

// adjustPrior implements REFLECT's prior update: hypothesisCorrect (the
// re-observed outcome, not the executor's raw exit code) raises the
// prior toward 1 by learningRate, a signal that recurred despite the
// action lowers it toward 0. Persisted under the
// action_prior::(signal_type,action_type) key in system_baselines — the
// one place priors are allowed to be learned.
func adjustPrior(ctx context.Context, st *store.Store, clock kernsight.Clock, signalType, actionType string, hypothesisCorrect bool, learningRate, current float64) error {
	var next float64
	if hypothesisCorrect {
		next = current + learningRate*(1-current)
	} else {
		next = current - learningRate*current
	}
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}

	payload, err := json.Marshal(priorPayload{Value: next})
	if err != nil {
		return kernsight.Fatal("loop.adjustPrior", err)
	}

	snap := st.Snapshot()
	existing, err := snap.GetBaseline(ctx, priorKey(signalType, actionType), 0)
	if err != nil {
		return err
	}
	sampleCount := 1
	if existing != nil {
		sampleCount = existing.SampleCount + 1
	}

	return st.UpsertBaseline(ctx, store.Baseline{
		MetricType:  priorKey(signalType, actionType),
		Lookback:    0,
		PayloadJSON: payload,
		SampleCount: sampleCount,
		LastUpdated: clock.Now(),
	})
}
