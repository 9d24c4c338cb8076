package kernsight

// Severity is the ordered banding every signal and gate decision is
// expressed in (§3.2, §8.1 "none < low < medium < high < critical").
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is at least as severe as min, per the total
// order none < low < medium < high < critical.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Category is the signal_metadata.category enum (§3.2).
type Category string

const (
	CategorySymptom  Category = "symptom"
	CategoryContext  Category = "context"
	CategoryBaseline Category = "baseline"
)
