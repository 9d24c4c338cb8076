package reason

import (
	"fmt"

	"github.com/kernelsight/kernelsight/pkg/actions"
	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// Validate exhaustively checks a Decision's schema (§4.9 step 4 "the
// loop must validate the decision's schema exhaustively"): every
// required field is present, confidence is in [0,1], and
// recommended_action.action_type is drawn from the enumerated catalog.
// Used both by the loop (on any decision) and by the oracle adapter (to
// decide whether a reply needs a retry).
func Validate(d *Decision) error {
	var problems []string

	if d.Observation == "" {
		problems = append(problems, "observation is empty")
	}
	if d.Hypothesis == "" {
		problems = append(problems, "hypothesis is empty")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence %.3f is outside [0,1]", d.Confidence))
	}
	if d.RecommendedAction.ActionType == "" {
		problems = append(problems, "recommended_action.action_type is empty")
	} else if actions.Lookup(d.RecommendedAction.ActionType) == nil {
		problems = append(problems, fmt.Sprintf("recommended_action.action_type %q is not in the catalog", d.RecommendedAction.ActionType))
	}

	if len(problems) > 0 {
		return kernsight.InputMalformed("reason.Validate", errSchema(problems))
	}
	return nil
}

func errSchema(problems []string) error {
	msg := "decision schema violations:"
	for _, p := range problems {
		msg += " " + p + ";"
	}
	return fmt.Errorf("%s", msg)
}
