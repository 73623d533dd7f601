package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		in   string
		want NodeID
	}{
		{"0_1", ID("0", 1)},
		{"12_305", ID("12", 305)},
		{"wing_a_7", ID("wing_a", 7)},
		{"42", ID(DefaultFloor, 42)},
	}

	for _, tt := range tests {
		got, err := ParseNodeID(tt.in)
		if err != nil {
			t.Fatalf("ParseNodeID(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseNodeID(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if tt.in != "42" && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}

func TestParseNodeIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "_3", "1_x", "abc"} {
		if _, err := ParseNodeID(in); !errors.Is(err, ErrBadNodeID) {
			t.Errorf("ParseNodeID(%q) error = %v, want ErrBadNodeID", in, err)
		}
	}
}

func TestNodeIDOrder(t *testing.T) {
	ids := []NodeID{ID("1", 2), ID("0", 10), ID("0", 2), ID("1", 1)}
	SortNodeIDs(ids)

	want := []string{"0_2", "0_10", "1_1", "1_2"}
	for i, id := range ids {
		if id.String() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, id, want[i])
		}
	}
}

func TestNodeIDAsJSONMapKey(t *testing.T) {
	in := map[NodeID]int{ID("0", 1): 5}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"0_1":5}` {
		t.Errorf("got %s", data)
	}

	var out map[NodeID]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out[ID("0", 1)] != 5 {
		t.Errorf("round trip lost the key: %v", out)
	}
}

func TestRouteHelpers(t *testing.T) {
	r := Route{Path: []NodeID{ID("0", 1), ID("0", 2), ID("1", 1), ID("1", 2)}, Distance: 45}

	if !r.Found() || r.Steps() != 3 {
		t.Fatalf("unexpected route shape: %+v", r)
	}
	if !r.CrossesFloor(1) || r.CrossesFloor(0) || r.CrossesFloor(3) {
		t.Error("CrossesFloor misreports the floor change at index 1")
	}
	if got := r.Floors(); len(got) != 2 || got[0] != "0" || got[1] != "1" {
		t.Errorf("Floors() = %v", got)
	}
	if NoRoute().Found() {
		t.Error("NoRoute must not be found")
	}
}
