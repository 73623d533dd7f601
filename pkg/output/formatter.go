// Package output renders routes, building summaries and feedback statistics
// for the console.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/navigation"
	"github.com/ritzau/wayfinder/pkg/route"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// PrintItinerary prints a found route step by step, highlighting floor
// changes.
func PrintItinerary(w io.Writer, it route.Itinerary) {
	sp := it.ShortestPath
	bold.Fprintf(w, "Route %s → %s\n", sp.StartNode, sp.EndNode)
	bold.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "Distance: %.2f\n", sp.TotalDistance)
	fmt.Fprintf(w, "Steps: %d\n", sp.NumberOfSteps)
	fmt.Fprintln(w)

	for i, seg := range it.PathSegments {
		if seg.IsFloorTransition {
			name := seg.TransitionType
			if seg.TransitionName != "" {
				name += " (" + seg.TransitionName + ")"
			}
			yellow.Fprintf(w, "  %2d. %s → %s  take %s to floor %s\n", i+1, seg.From, seg.To, name, seg.ToFloor)
			continue
		}
		fmt.Fprintf(w, "  %2d. %s → %s  %.2f\n", i+1, seg.From, seg.To, seg.Distance)
	}
	if len(sp.FloorTransitions) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintf(w, "Floor changes: %s\n", strings.Join(sp.FloorTransitions, ", "))
	}
}

// PrintSummary prints the building check report. Disconnected regions are
// listed in red.
func PrintSummary(w io.Writer, s navigation.Summary) {
	bold.Fprintf(w, "Building: %s\n", s.Name)
	bold.Fprintln(w, strings.Repeat("=", 40))
	for _, f := range s.Floors {
		cyan.Fprintf(w, "Floor %s", f.ID)
		if f.Name != f.ID {
			cyan.Fprintf(w, " (%s)", f.Name)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Paths: %d  Points: %d  Connections: %d  Labels: %d\n",
			f.Paths, f.Points, f.Connections, f.Labels)
		if f.Extent != nil {
			fmt.Fprintf(w, "  Extent: (%.0f, %.0f) - (%.0f, %.0f)\n",
				f.Extent.Min[0], f.Extent.Min[1], f.Extent.Max[0], f.Extent.Max[1])
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Transitions: %d\n", s.Transitions)
	fmt.Fprintf(w, "Graph: %d nodes, %d edges\n", s.Nodes, s.Edges)

	if len(s.Islands) == 0 {
		green.Fprintln(w, "✓ All nodes are connected")
		return
	}
	red.Fprintf(w, "%d disconnected region(s):\n", len(s.Islands))
	for _, island := range s.Islands {
		ids := make([]string, len(island))
		for i, id := range island {
			ids[i] = id.String()
		}
		yellow.Fprintf(w, "  %s\n", strings.Join(ids, " "))
	}
}

// PrintFeedbackStats prints the feedback log summary and its reason
// histogram.
func PrintFeedbackStats(w io.Writer, s feedback.Stats) {
	bold.Fprintln(w, "Route Feedback")
	bold.Fprintln(w, strings.Repeat("=", 40))
	if s.Total == 0 {
		fmt.Fprintln(w, "No feedback recorded")
		return
	}
	fmt.Fprintf(w, "Records: %d\n", s.Total)

	c := green
	switch {
	case s.DeviatedPercent >= 50:
		c = red
	case s.DeviatedPercent > 0:
		c = yellow
	}
	c.Fprintf(w, "Deviated: %d (%d%%)\n", s.Deviated, s.DeviatedPercent)

	fmt.Fprintln(w)
	width := 0
	for _, r := range s.Reasons {
		width = max(width, len(r.Reason))
	}
	for _, r := range s.Reasons {
		fmt.Fprintf(w, "  %-*s %3d %s\n", width, r.Reason, r.Count, strings.Repeat("█", r.Count))
	}
}

// PrintMergeReports prints what trace consolidation added to the map.
func PrintMergeReports(w io.Writer, reports []navigation.MergeReport) {
	for _, r := range reports {
		cyan.Fprintf(w, "Floor %s: ", r.Floor)
		fmt.Fprintf(w, "%d samples, %d added, %d reused, %d links\n",
			r.Samples, len(r.Added), len(r.Reused), r.Links)
		for _, u := range r.Unresolved {
			yellow.Fprintf(w, "  unresolved %s end at %s (searched %.0f)\n", u.Endpoint, u.Node, u.Radius)
		}
	}
}

// PrintUpdate prints one navigation step as a single line.
func PrintUpdate(w io.Writer, i int, u navigation.Update) {
	fmt.Fprintf(w, "%4d  %-22s", i, u.State)
	switch {
	case u.Prompt != nil && u.Prompt.AtNode:
		yellow.Fprintf(w, " confirm %s to floor %s", u.Prompt.Kind, u.Prompt.ToFloor)
	case u.Prompt != nil:
		yellow.Fprintf(w, " %s ahead in %.1f", u.Prompt.Kind, u.Prompt.Distance)
	case u.FloorChanged:
		cyan.Fprintf(w, " now on floor %s", u.Floor)
	case u.Reached != nil:
		green.Fprintf(w, " reached %s", u.Reached)
	}
	if u.Target != nil && u.State == navigation.Tracking {
		fmt.Fprintf(w, " → %s", u.Target)
		if u.TargetDistance > 0 {
			fmt.Fprintf(w, " %.1f", u.TargetDistance)
		}
	}
	if u.Guidance != "" {
		fmt.Fprintf(w, " [%s]", u.Guidance)
	}
	switch {
	case u.Exploring:
		red.Fprint(w, " exploring")
	case u.Deviated:
		yellow.Fprint(w, " off route")
	}
	fmt.Fprintln(w)

	if c := u.Compliance; c != nil {
		if c.Compliant {
			green.Fprintln(w, "      ✓ route followed")
		} else {
			red.Fprintf(w, "      ✗ route not followed (missing %d)\n", len(c.Missing))
		}
	}
}
