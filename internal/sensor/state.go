package sensor

import "fmt"

// State is the tri-state door status.
//
// The zero value is Unknown, which also stands for "never observed".
type State int

const (
	// Unknown means no successful reading has been made.
	Unknown State = iota

	// Closed means the contact is made.
	Closed

	// Open means the contact is broken.
	Open
)

// StateFromContact maps a contact reading to a State.
func StateFromContact(open bool) State {
	if open {
		return Open
	}
	return Closed
}

// String returns "unknown", "closed" or "open".
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Label returns the upper-case form used in log lines.
func (s State) Label() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open":
		*s = Open
	case "closed":
		*s = Closed
	case "unknown", "":
		*s = Unknown
	default:
		return fmt.Errorf("invalid door state %q", text)
	}
	return nil
}
