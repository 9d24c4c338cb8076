package loop

import "github.com/kernelsight/kernelsight/pkg/kernsight"

// criticalConfidencePenalty is subtracted from a critical-severity
// decision's confidence before gating, per §4.9 step 5 "critical-
// severity actions may lower confidence by 0.05" — read here as an
// extra margin of caution exactly where a false positive is most
// expensive, rather than a discount on the decision's own merit.
const criticalConfidencePenalty = 0.05

// gateResult is the GATE phase's verdict.
type gateResult struct {
	Pass       bool
	Effective  float64
	Threshold  float64
}

// gate implements §4.9 step 5: the action proceeds only when confidence
// (after the critical-severity penalty, if applicable) is at or above
// the severity's threshold.
func gate(cfg kernsight.Config, severity string, confidence float64) gateResult {
	effective := confidence
	if severity == string(kernsight.SeverityCritical) {
		effective -= criticalConfidencePenalty
	}
	threshold := cfg.ConfidenceThreshold(severity)
	return gateResult{Pass: effective >= threshold, Effective: effective, Threshold: threshold}
}
