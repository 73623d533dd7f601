package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultFloor is the implicit floor of legacy single-floor maps.
const DefaultFloor = "0"

// ErrBadNodeID is returned when a wire id cannot be parsed.
var ErrBadNodeID = errors.New("invalid node id")

// NodeID identifies a waypoint globally. On the wire it is encoded as
// "<floor>_<local>"; everywhere else it is handled as a value.
type NodeID struct {
	Floor string
	Local int
}

// ID builds a NodeID.
func ID(floor string, local int) NodeID {
	return NodeID{Floor: floor, Local: local}
}

// String returns the wire form.
func (id NodeID) String() string {
	return id.Floor + "_" + strconv.Itoa(id.Local)
}

// IsZero reports whether id is the zero value.
func (id NodeID) IsZero() bool {
	return id.Floor == "" && id.Local == 0
}

// Compare orders ids by floor, then by local id.
func (id NodeID) Compare(other NodeID) int {
	if c := cmp.Compare(id.Floor, other.Floor); c != 0 {
		return c
	}
	return cmp.Compare(id.Local, other.Local)
}

// Less reports whether id sorts before other.
func (id NodeID) Less(other NodeID) bool {
	return id.Compare(other) < 0
}

// ParseNodeID decodes the wire form. The split happens at the last
// underscore so floor ids may themselves contain underscores. A bare number
// is accepted as a node on DefaultFloor (legacy route files).
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NodeID{}, fmt.Errorf("%w: empty", ErrBadNodeID)
	}

	i := strings.LastIndex(s, "_")
	if i < 0 {
		local, err := strconv.Atoi(s)
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: %q", ErrBadNodeID, s)
		}
		return NodeID{Floor: DefaultFloor, Local: local}, nil
	}

	floor, rest := s[:i], s[i+1:]
	if floor == "" {
		return NodeID{}, fmt.Errorf("%w: %q has no floor", ErrBadNodeID, s)
	}
	local, err := strconv.Atoi(rest)
	if err != nil {
		return NodeID{}, fmt.Errorf("%w: %q", ErrBadNodeID, s)
	}
	return NodeID{Floor: floor, Local: local}, nil
}

// MustParseNodeID is ParseNodeID for literals in tests and examples.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *NodeID) UnmarshalText(b []byte) error {
	parsed, err := ParseNodeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SortNodeIDs sorts ids in place.
func SortNodeIDs(ids []NodeID) {
	slices.SortFunc(ids, NodeID.Compare)
}
