package actions

import (
	"fmt"
	"strings"
)

func errUnknownAction(actionType string) error {
	return fmt.Errorf("unknown action type %q", actionType)
}

func errInvalidParams(violations []string) error {
	return fmt.Errorf("invalid parameters: %s", strings.Join(violations, "; "))
}

func errDenylistHit(actionType, cmd string) error {
	return fmt.Errorf("action %q rendered a denylisted command: %q", actionType, cmd)
}

func errAllowlistMiss(actionType, cmd string) error {
	return fmt.Errorf("action %q rendered a command outside its allowlist: %q", actionType, cmd)
}
