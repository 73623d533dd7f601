package navigation

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/model"
)

func deg(d float64) float64 { return d * math.Pi / 180 }

func TestRelative(t *testing.T) {
	tests := []struct {
		diff float64
		want Direction
	}{
		{0, Straight},
		{20, Straight},
		{-20, Straight},
		{30, SlightRight},
		{60, SlightRight},
		{90, Right},
		{135, BackRight},
		{150, BackRight},
		{170, Reverse},
		{180, Reverse},
		{-170, Reverse},
		{-150, BackLeft},
		{-120, BackLeft},
		{-90, Left},
		{-70, Left},
		{-45, SlightLeft},
	}
	for _, tt := range tests {
		// Heading pointing west so the difference wraps around +-180.
		heading := deg(180)
		if got := Relative(heading+deg(tt.diff), heading); got != tt.want {
			t.Errorf("Relative(diff=%v) = %s, want %s", tt.diff, got, tt.want)
		}
	}
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		from, to orb.Point
		want     Direction
	}{
		{orb.Point{0, 0}, orb.Point{10, 0}, East},
		{orb.Point{0, 0}, orb.Point{0, 10}, South},
		{orb.Point{0, 0}, orb.Point{0, -10}, North},
		{orb.Point{0, 0}, orb.Point{-10, 0}, West},
		{orb.Point{0, 0}, orb.Point{10, 10}, SouthEast},
		{orb.Point{0, 0}, orb.Point{-10, 10}, SouthWest},
		{orb.Point{0, 0}, orb.Point{-10, -10}, NorthWest},
		{orb.Point{0, 0}, orb.Point{10, -10}, NorthEast},
	}
	for _, tt := range tests {
		if got := Absolute(Bearing(tt.from, tt.to)); got != tt.want {
			t.Errorf("Absolute(%v->%v) = %s, want %s", tt.from, tt.to, got, tt.want)
		}
		if tt.want.IsRelative() {
			t.Errorf("%s reported as relative", tt.want)
		}
	}
}

func TestHeading(t *testing.T) {
	var h Heading
	for i := 0; i < 4; i++ {
		h.Add(orb.Point{float64(i * 10), 0})
	}
	if _, ok := h.Angle(); ok {
		t.Fatal("heading known with only four samples")
	}

	h.Add(orb.Point{40, 0})
	a, ok := h.Angle()
	if !ok || a != 0 {
		t.Fatalf("heading = %v, %v; want east", a, ok)
	}

	// Turn south; after five more samples the window only sees the new leg.
	for i := 1; i <= 5; i++ {
		h.Add(orb.Point{40, float64(i * 10)})
	}
	if a, _ := h.Angle(); math.Abs(a-math.Pi/2) > 1e-9 {
		t.Errorf("heading = %v, want pi/2", a)
	}

	// Standing still, then jitter within a unit, keeps the previous heading.
	for i := 0; i < 5; i++ {
		h.Add(orb.Point{40, 50})
	}
	for _, p := range []orb.Point{{40.5, 50.5}, {39.5, 50}, {40, 49.2}} {
		h.Add(p)
	}
	if a, _ := h.Angle(); math.Abs(a-math.Pi/2) > 1e-9 {
		t.Errorf("jitter changed heading to %v", a)
	}

	h.Reset()
	if _, ok := h.Angle(); ok {
		t.Error("Reset kept the heading")
	}
}

func TestGuideUsesHeadingOnceKnown(t *testing.T) {
	var h Heading
	target := orb.Point{100, 100}
	if got := Guide(orb.Point{100, 200}, target, &h); got != North {
		t.Errorf("without heading = %s, want N", got)
	}
	for i := 0; i < 5; i++ {
		h.Add(orb.Point{0, float64(200 - i*10)})
	}
	// Walking north, target due east.
	if got := Guide(orb.Point{0, 100}, target, &h); got != Right {
		t.Errorf("with heading = %s, want right", got)
	}
}

func ids(s ...string) []model.NodeID {
	out := make([]model.NodeID, len(s))
	for i, v := range s {
		out[i] = model.MustParseNodeID(v)
	}
	return out
}

func TestEvaluateCompliance(t *testing.T) {
	route := ids("0_1", "0_2", "0_3", "1_1", "1_2")

	tests := []struct {
		name       string
		visited    []model.NodeID
		compliant  bool
		autoMarked string
	}{
		{"exact", ids("0_1", "0_2", "0_3", "1_1", "1_2"), true, ""},
		{"interior miss", ids("0_1", "0_3", "1_1", "1_2"), false, ""},
		{"out of order", ids("0_1", "0_3", "0_2", "1_1", "1_2"), false, ""},
		{"transition miss", ids("0_1", "0_2", "1_1", "1_2"), true, "0_3"},
		{"two misses", ids("0_1", "1_1", "1_2"), false, ""},
		{"extra nodes", ids("0_1", "0_7", "0_2", "0_3", "1_1", "1_2"), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, amended := EvaluateCompliance(route, tt.visited)
			if c.Compliant != tt.compliant {
				t.Errorf("Compliant = %v, want %v (%+v)", c.Compliant, tt.compliant, c)
			}
			if tt.autoMarked == "" {
				if c.AutoMarked != nil {
					t.Errorf("AutoMarked = %v, want none", *c.AutoMarked)
				}
				return
			}
			if c.AutoMarked == nil || c.AutoMarked.String() != tt.autoMarked {
				t.Fatalf("AutoMarked = %v, want %s", c.AutoMarked, tt.autoMarked)
			}
			if amended[2].String() != tt.autoMarked {
				t.Errorf("credited node not inserted in order: %v", amended)
			}
		})
	}
}
