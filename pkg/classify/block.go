package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const blockSaturationThreshold = 0.8

// ClassifyBlockDevice implements the block device saturation classifier
// (§4.4 "Block device saturation"): per-device IOPS rate times average
// service time, the Little's-law utilization already computed by the
// baseline engine's block_util family.
func ClassifyBlockDevice(w *Window, baselines *Baselines, now time.Time) []Signal {
	byDevice := map[string][]blockRow{}
	for _, r := range w.BlockStats {
		byDevice[r.device] = append(byDevice[r.device], r)
	}

	var out []Signal
	for device, rows := range byDevice {
		if len(rows) < 2 {
			continue
		}
		first, last := rows[0], rows[len(rows)-1]
		dt := last.at.Sub(first.at).Seconds()
		if dt <= 0 || last.ioTicksMS < first.ioTicksMS {
			continue
		}
		util := float64(last.ioTicksMS-first.ioTicksMS) / (dt * 1000)
		if util > 1 {
			util = 1
		}
		if util <= blockSaturationThreshold {
			continue
		}

		iops := float64(last.readIOs+last.writeIOs-first.readIOs-first.writeIOs) / dt
		st := baselines.Get("block_util", device)
		sev := kernsight.SeverityMedium
		if util >= 0.95 {
			sev = kernsight.SeverityHigh
		}

		b := newSignal(now, kernsight.CategorySymptom, TypeBlockDeviceSaturation, device, "block_utilization", sev).
			summary("device %s utilization is %.0f%% (%.0f IOPS) over the last %.0fs, above the %.0f%% saturation threshold", device, util*100, iops, dt, blockSaturationThreshold*100).
			evidence("utilization", zscoreEvidence(util, st)).
			source("raw_blockstats", last.id).
			entity("block_device", device, device).
			pressure(util).
			patterns(PatternBlockStarvation).
			hints("check for a single dominant writer via iotop", "check device queue depth settings", "consider spreading IO across devices")
		out = append(out, b.build())
	}
	return out
}
