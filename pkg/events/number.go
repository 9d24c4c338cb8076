package events

import (
	"bytes"
	"fmt"
	"strconv"
)

// Counter is a cumulative counter field. The wire format allows either a
// JSON number or a JSON string (§6.1: "cumulative counters may exceed
// 2^53 and arrive as strings"), so it unmarshals either representation
// into a plain uint64.
type Counter uint64

func (c *Counter) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := jsonUnquote(b, &s); err != nil {
			return fmt.Errorf("counter: %w", err)
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("counter: %w", err)
		}
		*c = Counter(v)
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("counter: %w", err)
	}
	*c = Counter(v)
	return nil
}

func (c Counter) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(c), 10)), nil
}

// jsonUnquote strips one layer of JSON string quoting without round-
// tripping through encoding/json, keeping the codec allocation-lean per
// §4.1's "pure and allocation-lean" requirement.
func jsonUnquote(b []byte, out *string) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("not a JSON string: %s", b)
	}
	inner := b[1 : len(b)-1]
	if bytes.IndexByte(inner, '\\') < 0 {
		*out = string(inner)
		return nil
	}
	var buf bytes.Buffer
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			case '"', '\\', '/':
				buf.WriteByte(inner[i])
			default:
				buf.WriteByte(inner[i])
			}
			continue
		}
		buf.WriteByte(inner[i])
	}
	*out = buf.String()
	return nil
}
