package classify

import (
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

const (
	tcpTimeWaitRatio    = 2.0
	tcpTimeWaitFloor    = 10000
	tcpSynRecvRatio     = 8.0
	tcpSynRecvFloor     = 1000
)

// ClassifyTCP implements the TCP exhaustion classifier (§4.4 "TCP
// exhaustion"), including the syn_flood_suspect variant emitted as a
// network_degradation signal.
func ClassifyTCP(w *Window, baselines *Baselines, now time.Time) []Signal {
	if len(w.TCPStats) == 0 {
		return nil
	}
	latest := w.TCPStats[len(w.TCPStats)-1]

	var out []Signal

	if latest.timeWait > int64(float64(latest.established)*tcpTimeWaitRatio) && latest.timeWait > tcpTimeWaitFloor {
		st := baselines.Get("tcp_time_wait", "")
		b := newSignal(now, kernsight.CategorySymptom, TypeTCPExhaustion, "host", "tcp_time_wait", kernsight.SeverityHigh).
			summary("TCP time_wait count is %d, more than %gx established (%d) and above the %d floor", latest.timeWait, tcpTimeWaitRatio, latest.established, tcpTimeWaitFloor).
			evidence("time_wait", zscoreEvidence(float64(latest.timeWait), st)).
			source("raw_tcp_stats", latest.id).
			entity("host", "localhost", "localhost").
			pressure(0.7).
			hints("check for short-lived outbound connections churn", "review net.ipv4.tcp_tw_reuse", "check for a connection-per-request client pattern")
		out = append(out, b.build())
	}

	if latest.synRecv > int64(float64(latest.established)*tcpSynRecvRatio) && latest.synRecv > tcpSynRecvFloor {
		st := baselines.Get("tcp_syn_recv", "")
		b := newSignal(now, kernsight.CategorySymptom, TypeNetworkDegradation, "host", "tcp_syn_recv", kernsight.SeverityCritical).
			summary("TCP syn_recv count is %d, more than %gx established (%d) and above the %d floor, consistent with a SYN flood", latest.synRecv, tcpSynRecvRatio, latest.established, tcpSynRecvFloor).
			evidence("syn_recv", zscoreEvidence(float64(latest.synRecv), st)).
			source("raw_tcp_stats", latest.id).
			entity("host", "localhost", "localhost").
			pressure(0.9).
			patterns(PatternSynFloodSuspect).
			hints("check for spoofed source addresses", "review syncookies setting", "consider rate limiting inbound SYN at the firewall")
		out = append(out, b.build())
	}

	return out
}
