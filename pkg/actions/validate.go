package actions

import (
	"fmt"
	"regexp"
)

// positiveInt validates a positive (>0) integer parameter, e.g. pid.
func positiveInt(name string) Validator {
	return func(v any) string {
		n, ok := asInt(v)
		if !ok {
			return fmt.Sprintf("%s must be an integer", name)
		}
		if n <= 0 {
			return fmt.Sprintf("%s must be positive, got %d", name, n)
		}
		return ""
	}
}

// intRange validates an integer parameter within [lo, hi] inclusive.
func intRange(name string, lo, hi int) Validator {
	return func(v any) string {
		n, ok := asInt(v)
		if !ok {
			return fmt.Sprintf("%s must be an integer", name)
		}
		if n < lo || n > hi {
			return fmt.Sprintf("%s must be in [%d,%d], got %d", name, lo, hi, n)
		}
		return ""
	}
}

// cpuSet validates a comma-separated CPU list like "0,1,2" or "0-3".
func cpuSet(name string) Validator {
	re := regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)
	return func(v any) string {
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return fmt.Sprintf("%s must be a CPU list like \"0,1,2\" or \"0-3\"", name)
		}
		return ""
	}
}

// deviceName validates a block device name, e.g. "sda", "nvme0n1".
func deviceName(name string) Validator {
	re := regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	return func(v any) string {
		s, ok := v.(string)
		if !ok || s == "" || !re.MatchString(s) {
			return fmt.Sprintf("%s must be a bare device name", name)
		}
		return ""
	}
}

// ifaceName validates a network interface name, e.g. "eth0".
func ifaceName(name string) Validator {
	re := regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	return func(v any) string {
		s, ok := v.(string)
		if !ok || s == "" || !re.MatchString(s) {
			return fmt.Sprintf("%s must be a bare interface name", name)
		}
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
