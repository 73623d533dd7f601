package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/navigation"
	"github.com/ritzau/wayfinder/pkg/route"
)

func init() {
	color.NoColor = true
}

func expectLines(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output lacks %q:\n%s", w, out)
		}
	}
}

func TestPrintItinerary(t *testing.T) {
	id := model.MustParseNodeID
	it := route.Itinerary{
		ShortestPath: route.Summary{
			StartNode:        id("0_1"),
			EndNode:          id("1_2"),
			Path:             []model.NodeID{id("0_1"), id("0_2"), id("1_1"), id("1_2")},
			TotalDistance:    245.5,
			NumberOfSteps:    3,
			FloorTransitions: []string{"0_2->1_1"},
		},
		PathSegments: []route.Segment{
			{From: id("0_1"), To: id("0_2"), Distance: 100.5},
			{From: id("0_2"), To: id("1_1"), Distance: 45, IsFloorTransition: true,
				ToFloor: "1", TransitionType: "elevator", TransitionName: "Lift A"},
			{From: id("1_1"), To: id("1_2"), Distance: 100},
		},
	}

	var buf bytes.Buffer
	PrintItinerary(&buf, it)
	expectLines(t, buf.String(),
		"Route 0_1 → 1_2",
		"Distance: 245.50",
		"1. 0_1 → 0_2  100.50",
		"take elevator (Lift A) to floor 1",
		"Floor changes: 0_2->1_1",
	)
}

func TestPrintSummary(t *testing.T) {
	ext := orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{300, 200}}
	s := navigation.Summary{
		Name:   "Annex",
		Floors: []navigation.FloorSummary{{ID: "0", Name: "Ground", Paths: 2, Points: 5, Connections: 4, Extent: &ext}},
		Nodes:  5,
		Edges:  4,
	}

	var buf bytes.Buffer
	PrintSummary(&buf, s)
	expectLines(t, buf.String(), "Building: Annex", "Floor 0 (Ground)", "Points: 5", "(100, 100) - (300, 200)", "All nodes are connected")

	s.Islands = [][]model.NodeID{{model.ID("2", 1), model.ID("2", 2)}}
	buf.Reset()
	PrintSummary(&buf, s)
	expectLines(t, buf.String(), "1 disconnected region(s)", "2_1 2_2")
}

func TestPrintFeedbackStats(t *testing.T) {
	var buf bytes.Buffer
	PrintFeedbackStats(&buf, feedback.Stats{})
	expectLines(t, buf.String(), "No feedback recorded")

	buf.Reset()
	PrintFeedbackStats(&buf, feedback.Stats{
		Total: 3, Deviated: 2, DeviatedPercent: 66,
		Reasons: []feedback.ReasonCount{{Reason: feedback.ReasonCrowded, Count: 2}, {Reason: feedback.ReasonOther, Count: 1}},
	})
	expectLines(t, buf.String(), "Records: 3", "Deviated: 2 (66%)", "crowded   2 ██", "other     1 █")
}

func TestPrintUpdate(t *testing.T) {
	target := model.ID("0", 2)
	reached := model.ID("0", 1)

	tests := []struct {
		name string
		u    navigation.Update
		want []string
	}{
		{
			name: "reached",
			u:    navigation.Update{State: navigation.Tracking, Reached: &reached, Target: &target, TargetDistance: 100, Guidance: navigation.Straight},
			want: []string{"tracking", "reached 0_1", "→ 0_2 100.0", "[straight]"},
		},
		{
			name: "prompt",
			u: navigation.Update{State: navigation.AwaitingConfirmation,
				Prompt: &navigation.TransitionPrompt{Kind: model.TransitionElevator, ToFloor: "1", AtNode: true}},
			want: []string{"awaiting_confirmation", "confirm elevator to floor 1"},
		},
		{
			name: "exploring",
			u:    navigation.Update{State: navigation.Tracking, Deviated: true, Exploring: true},
			want: []string{"exploring"},
		},
		{
			name: "non-compliant",
			u: navigation.Update{State: navigation.AwaitingReason,
				Compliance: &navigation.Compliance{Missing: []model.NodeID{target}}},
			want: []string{"route not followed (missing 1)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintUpdate(&buf, 1, tt.u)
			expectLines(t, buf.String(), tt.want...)
		})
	}
}
