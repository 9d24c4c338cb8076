package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const ioLatencyBaselineFactor = 10.0

// ClassifyIO implements the IO congestion classifier (§4.4 "IO
// congestion"): read/write latency percentiles against their baselines,
// plus per-device in-flight and queue-time derivatives from blockstats.
func ClassifyIO(w *Window, baselines *Baselines, now time.Time) []Signal {
	var out []Signal

	if len(w.IO) > 0 {
		latest := w.IO[len(w.IO)-1]
		readSt := baselines.Get("io_read_p95_us", "")
		writeSt := baselines.Get("io_write_p95_us", "")

		readHigh := readSt != nil && !readSt.Insufficient && latest.readP95US > readSt.P95*ioLatencyBaselineFactor
		writeHigh := writeSt != nil && !writeSt.Insufficient && latest.writeP95US > writeSt.P95*ioLatencyBaselineFactor

		if readHigh || writeHigh {
			sev := kernsight.SeverityHigh
			b := newSignal(now, kernsight.CategorySymptom, TypeIOCongestion, "host", "io_latency_p95", sev).
				summary("IO p95 latency is read=%.0fus write=%.0fus, more than %gx the baseline p95 (read=%.0fus write=%.0fus)",
					latest.readP95US, latest.writeP95US, ioLatencyBaselineFactor, baselineOr0(readSt), baselineOr0(writeSt)).
				evidence("read_p95_us", zscoreEvidence(latest.readP95US, readSt)).
				evidence("write_p95_us", zscoreEvidence(latest.writeP95US, writeSt)).
				source("raw_io", latest.id).
				entity("host", "localhost", "localhost").
				pressure(0.8).
				hints("check for a slow backing device", "check for io scheduler contention", "check dirty page writeback rate")
			out = append(out, b.build())
		}
	}

	byDevice := map[string][]blockRow{}
	for _, r := range w.BlockStats {
		byDevice[r.device] = append(byDevice[r.device], r)
	}
	for device, rows := range byDevice {
		if len(rows) < 2 {
			continue
		}
		first, last := rows[0], rows[len(rows)-1]
		dt := last.at.Sub(first.at).Seconds()
		if dt <= 0 {
			continue
		}
		queueMS := float64(last.ioTicksMS - first.ioTicksMS)
		queueUtil := queueMS / (dt * 1000)
		if queueUtil > 1 {
			queueUtil = 1
		}
		avgInFlight := avgInFlightForDevice(rows)

		if queueUtil < 0.8 && avgInFlight < 4 {
			continue
		}
		sev := kernsight.SeverityMedium
		if queueUtil >= 0.95 || avgInFlight >= 8 {
			sev = kernsight.SeverityHigh
		}
		b := newSignal(now, kernsight.CategorySymptom, TypeIOCongestion, device, "block_queue_depth", sev).
			summary("device %s is %.0f%% busy servicing IO with an average of %.1f requests in flight over %.0fs", device, queueUtil*100, avgInFlight, dt).
			evidence("queue_utilization", Evidence{Current: queueUtil}).
			evidence("avg_in_flight", Evidence{Current: avgInFlight}).
			source("raw_blockstats", last.id).
			entity("block_device", device, device).
			pressure(queueUtil).
			hints("check iostat -x for this device", "check for a single heavy writer process", "consider device-level throttling")
		out = append(out, b.build())
	}

	return out
}

func avgInFlightForDevice(rows []blockRow) float64 {
	var sum int64
	for _, r := range rows {
		sum += r.inFlight
	}
	return float64(sum) / float64(len(rows))
}

func baselineOr0(st *Stats) float64 {
	if st == nil {
		return 0
	}
	return st.P95
}
