package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const netErrorBaselineFactor = 3.0

// ClassifyNetwork implements the network degradation classifier (§4.4
// "Network degradation"): the per-interface rx+tx error/drop rate
// against its baseline p95.
func ClassifyNetwork(w *Window, baselines *Baselines, now time.Time) []Signal {
	byIface := map[string][]netRow{}
	for _, r := range w.NetIface {
		byIface[r.iface] = append(byIface[r.iface], r)
	}

	var out []Signal
	for iface, rows := range byIface {
		if len(rows) < 2 {
			continue
		}
		first, last := rows[0], rows[len(rows)-1]
		dt := last.at.Sub(first.at).Seconds()
		if dt <= 0 {
			continue
		}
		firstTotal := first.rxErrors + first.txErrors + first.rxDrops + first.txDrops
		lastTotal := last.rxErrors + last.txErrors + last.rxDrops + last.txDrops
		if lastTotal < firstTotal {
			continue
		}
		rate := float64(lastTotal-firstTotal) / dt

		st := baselines.Get("net_error_rate", iface)
		if st == nil || st.Insufficient || rate <= st.P95*netErrorBaselineFactor {
			continue
		}

		sev := kernsight.SeverityMedium
		if rate >= st.P95*netErrorBaselineFactor*2 {
			sev = kernsight.SeverityHigh
		}

		b := newSignal(now, kernsight.CategorySymptom, TypeNetworkDegradation, iface, "net_error_rate", sev).
			summary("interface %s is seeing %.2f errors+drops/s over %.0fs, more than %gx its baseline p95 of %.2f/s", iface, rate, dt, netErrorBaselineFactor, st.P95).
			evidence("error_rate_per_sec", zscoreEvidence(rate, st)).
			source("raw_net_interface", last.id).
			entity("network_interface", iface, iface).
			pressure(clampPressure(rate / (st.P95*netErrorBaselineFactor*3 + 1))).
			hints("check interface error counters with ip -s link", "check for a flapping link or bad cable", "check for a switch-side congestion signal")
		out = append(out, b.build())
	}
	return out
}
