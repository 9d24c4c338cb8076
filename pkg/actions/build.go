package actions

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// denylist matches commands no build_command call may ever produce,
// regardless of catalog entry (§4.7 step 4). A hit is always fatal.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf`),
	regexp.MustCompile(`mkfs`),
	regexp.MustCompile(`dd\s+of=/dev/`),
	regexp.MustCompile(`chmod\s+777\s+/`),
	regexp.MustCompile(`[;&|` + "`" + `$]`), // shell metacharacters outside quoted args
}

// Built is the result of a successful build_command call.
type Built struct {
	ActionType  string
	Command     string
	Args        []string // tokenized argv, for no-shell exec.Command
	Risk        Risk
	Rollback    string // "" if the action has no rollback template
	OutputLimit int    // 0 means unlimited; caps captured output lines
}

// Build implements build_command (§4.7): lookup, validate, substitute,
// allowlist/denylist check, return.
func Build(actionType string, params map[string]any) (*Built, error) {
	spec := Lookup(actionType)
	if spec == nil {
		return nil, kernsight.UnknownType("actions.Build", errUnknownAction(actionType))
	}

	var violations []string
	for _, p := range spec.Params {
		v, ok := params[p.Name]
		if !ok {
			violations = append(violations, p.Name+" is required")
			continue
		}
		if msg := p.Validate(v); msg != "" {
			violations = append(violations, msg)
		}
	}
	if len(violations) > 0 {
		return nil, kernsight.ValidationFailure("actions.Build", errInvalidParams(violations))
	}

	cmd := substitute(spec.CommandTemplate, spec.Params, params)

	for _, re := range denylist {
		if re.MatchString(cmd) {
			return nil, kernsight.PermissionDenied("actions.Build", errDenylistHit(actionType, cmd))
		}
	}
	if spec.Allowlist != "" {
		if ok, _ := regexp.MatchString(spec.Allowlist, cmd); !ok {
			return nil, kernsight.PermissionDenied("actions.Build", errAllowlistMiss(actionType, cmd))
		}
	}

	built := &Built{ActionType: actionType, Command: cmd, Args: strings.Fields(cmd), Risk: spec.DefaultRisk}
	if spec.RollbackTemplate != "" {
		built.Rollback = substitute(spec.RollbackTemplate, spec.Params, params)
	}
	if spec.OutputLimitParam != "" {
		if n, ok := asInt(params[spec.OutputLimitParam]); ok {
			built.OutputLimit = n
		}
	}
	return built, nil
}

// substitute replaces every "{name}" placeholder in tmpl with its
// rendered parameter value. Parameters are pre-validated, so rendering
// never needs to escape shell metacharacters: the command is executed
// without a shell (§4.8), and the denylist/allowlist check below still
// runs as a second line of defense.
func substitute(tmpl string, params []Param, values map[string]any) string {
	out := tmpl
	for _, p := range params {
		out = strings.ReplaceAll(out, "{"+p.Name+"}", render(values[p.Name]))
	}
	return out
}

func render(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.Itoa(int(n))
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.Itoa(int(n))
	default:
		return ""
	}
}
