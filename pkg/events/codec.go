package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// discriminator peeks at the fields needed to route a line to a variant
// without fully decoding it: the explicit "type" tag, or — for legacy
// records that predate the tag — the presence of syscall_name or the
// context_switches/time_bucket pair (§4.1).
type discriminator struct {
	Type            *string          `json:"type"`
	SyscallName     *json.RawMessage `json:"syscall_name"`
	ContextSwitches *json.RawMessage `json:"context_switches"`
	TimeBucket      *json.RawMessage `json:"time_bucket"`
}

// Parse turns one UTF-8 JSON line into its concrete Event variant. It is
// pure and allocation-lean: one decode pass for the discriminator, one
// strict decode into the concrete variant. Errors are always
// *kernsight.Error with KindInputMalformed or KindUnknownType — callers
// never see a bare encoding/json error (§4.1, §7).
func Parse(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, kernsight.InputMalformed("events.Parse", fmt.Errorf("empty line"))
	}

	var d discriminator
	if err := json.Unmarshal(line, &d); err != nil {
		return nil, kernsight.InputMalformed("events.Parse", err)
	}

	typ, ok := classify(d)
	if !ok {
		return nil, kernsight.InputMalformed("events.Parse", fmt.Errorf("missing type discriminator"))
	}

	switch typ {
	case TypeSyscall:
		return decodeStrict[Syscall](line, typ)
	case TypePageFault:
		return decodeStrict[PageFault](line, typ)
	case TypeIO:
		return decodeStrict[IO](line, typ)
	case TypeSched:
		return decodeStrict[Sched](line, typ)
	case TypeMemInfo:
		return decodeStrict[MemInfo](line, typ)
	case TypeLoadAvg:
		return decodeStrict[LoadAvg](line, typ)
	case TypeBlockStats:
		return decodeStrict[BlockStats](line, typ)
	case TypeNetInterface:
		return decodeStrict[NetInterface](line, typ)
	case TypeTCPStats:
		return decodeStrict[TCPStats](line, typ)
	case TypeTCPRetransmits:
		return decodeStrict[TCPRetransmits](line, typ)
	default:
		return nil, kernsight.UnknownType("events.Parse", fmt.Errorf("unrecognized type %q", typ))
	}
}

// classify resolves the discriminator to a Type, falling back to the
// legacy key-presence heuristics when the "type" tag itself is absent.
// It returns ok=false only when no discriminator — explicit or legacy —
// can be found at all.
func classify(d discriminator) (Type, bool) {
	if d.Type != nil {
		return Type(*d.Type), true
	}
	if d.SyscallName != nil {
		return TypeSyscall, true
	}
	if d.ContextSwitches != nil && d.TimeBucket != nil {
		return TypeSched, true
	}
	return "", false
}

// decodeStrict decodes line into T, rejecting any JSON field not present
// on T (§4.1 "Fields absent in the variant are rejected") and any
// trailing bytes after the single top-level object (§8.3).
func decodeStrict[T Event](line []byte, typ Type) (Event, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, kernsight.InputMalformed("events.Parse."+string(typ), err)
	}
	if dec.More() {
		return nil, kernsight.InputMalformed("events.Parse."+string(typ), fmt.Errorf("trailing data after object"))
	}
	return v, nil
}

// Serialize renders an Event back to its wire JSON form, stamping the
// type discriminator so Parse(Serialize(e)) round-trips (§8.2).
func Serialize(e Event) ([]byte, error) {
	switch v := e.(type) {
	case Syscall:
		v.Type = TypeSyscall
		return json.Marshal(v)
	case PageFault:
		v.Type = TypePageFault
		return json.Marshal(v)
	case IO:
		v.Type = TypeIO
		return json.Marshal(v)
	case Sched:
		v.Type = TypeSched
		return json.Marshal(v)
	case MemInfo:
		v.Type = TypeMemInfo
		return json.Marshal(v)
	case LoadAvg:
		v.Type = TypeLoadAvg
		return json.Marshal(v)
	case BlockStats:
		v.Type = TypeBlockStats
		return json.Marshal(v)
	case NetInterface:
		v.Type = TypeNetInterface
		return json.Marshal(v)
	case TCPStats:
		v.Type = TypeTCPStats
		return json.Marshal(v)
	case TCPRetransmits:
		v.Type = TypeTCPRetransmits
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("events.Serialize: unsupported type %T", e)
	}
}
