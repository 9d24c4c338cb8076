package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// maxOracleRetries bounds schema-violation retries before falling
// through to the rule-based table (§4.10, Open Question decision: bound
// kept at the spec's suggested two).
const maxOracleRetries = 2

// Oracle is the LLM-backed reasoner. It serializes the decision context
// into a prompt, requires a strict JSON reply matching the Decision
// schema, and retries up to maxOracleRetries times on violation before
// giving up (the caller falls through to RuleBased).
type Oracle struct {
	client *anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewOracle builds an Oracle against the Anthropic API. apiKey is read
// by the caller from the environment; an empty key still constructs a
// client (requests will fail, surfacing as a fall-through to rule-based
// rather than a startup error).
func NewOracle(apiKey string, logger *zap.Logger) *Oracle {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Oracle{client: &client, model: anthropic.ModelClaude3_5SonnetLatest, logger: logger}
}

// Propose implements the oracle half of §4.10: prompt, parse, validate,
// retry up to maxOracleRetries, then give up. Never falls through to
// rule-based itself — that decision belongs to the caller (Hybrid),
// which is what "fail closed to rule-based" in §9's open questions
// means in terms of package boundaries.
func (o *Oracle) Propose(ctx context.Context, in Input) (*Decision, error) {
	prompt := buildPrompt(in)

	var lastErr error
	for attempt := 0; attempt <= maxOracleRetries; attempt++ {
		reply, err := o.call(ctx, prompt, lastErr)
		if err != nil {
			lastErr = err
			continue
		}
		d, err := parseDecision(reply)
		if err != nil {
			lastErr = err
			o.logger.Warn("oracle: schema violation, retrying", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		d.Source = "oracle"
		return d, nil
	}
	return nil, kernsight.InputMalformed("reason.Oracle.Propose", fmt.Errorf("exhausted %d retries: %w", maxOracleRetries, lastErr))
}

func (o *Oracle) call(ctx context.Context, prompt string, retryContext error) (string, error) {
	if retryContext != nil {
		prompt = prompt + "\n\nYour previous reply was rejected: " + retryContext.Error() + "\nReturn ONLY the corrected JSON object, nothing else."
	}
	msg, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", kernsight.Retryable("reason.Oracle.call", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// buildPrompt serializes the observation, baselines, simulation, and the
// enumerated action catalog into the prompt the SDK call sends (§4.10
// "serialize context ... into a prompt").
func buildPrompt(in Input) string {
	ctxJSON, _ := json.MarshalIndent(map[string]any{
		"signal":            in.Signal,
		"baseline":          in.Baseline,
		"trend":             in.Trend,
		"simulation":        projectionToMap(in.Projection),
		"available_actions": in.AvailableActions,
		"observation":       in.ObservationText,
	}, "", "  ")

	return fmt.Sprintf(`You are the reasoning component of a host observability system.
Given the following decision context, propose exactly one remediation.

%s

Reply with ONLY a JSON object of this exact shape, no prose, no markdown fences:
{
  "observation": string,
  "hypothesis": string,
  "evidence": [string, ...],
  "baseline_context": object,
  "predicted_outcome": object,
  "recommended_action": {"action_type": string, "params": object},
  "confidence": number between 0 and 1
}
"recommended_action.action_type" must be one of the available_actions listed above.`, string(ctxJSON))
}

// parseDecision strictly decodes reply as JSON and runs it through the
// same Validate every decision (oracle or rule-based) must pass.
func parseDecision(reply string) (*Decision, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	dec := json.NewDecoder(strings.NewReader(reply))
	dec.DisallowUnknownFields()
	var d Decision
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
