package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/navigation"
)

const building = `{
  "building_info": {"name": "Annex", "floors": ["0", "1"]},
  "floors": {
    "0": {
      "paths": [{"id": 1, "points": [{"id": 1, "x": 100, "y": 100}, {"id": 2, "x": 200, "y": 100}, {"id": 3, "x": 300, "y": 100}], "color": "#3498db"}],
      "connections": [{"from": 1, "to": 2, "distance": 100}, {"from": 2, "to": 3, "distance": 100}]
    },
    "1": {
      "paths": [{"id": 1, "points": [{"id": 1, "x": 300, "y": 100}, {"id": 2, "x": 300, "y": 200}], "color": "#e74c3c"}],
      "connections": [{"from": 1, "to": 2, "distance": 100}]
    }
  },
  "floor_transitions": [{"id": "s1", "type": "stairs", "name": "Stairs",
    "from_floor": "0", "to_floor": "1", "from_point": "3", "to_point": "1", "travel_time": 30}]
}`

func newTestNavigator(t *testing.T) (*navigation.Navigator, *feedback.Log) {
	t.Helper()
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "gps_paths.json")
	if err := os.WriteFile(mapPath, []byte(building), 0o644); err != nil {
		t.Fatal(err)
	}
	log := feedback.NewLog(filepath.Join(dir, "route_feedback.json"))
	nav := navigation.New(navigation.Config{
		MapPath: mapPath,
		Session: navigation.DefaultOptions(),
		Merge:   cluster.DefaultOptions(),
	}, log, nil)
	if err := nav.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return nav, log
}

func boolp(b bool) *bool { return &b }

func TestReplayAcrossFloors(t *testing.T) {
	nav, _ := newTestNavigator(t)
	if _, err := nav.Start(model.ID("0", 1), model.ID("1", 2)); err != nil {
		t.Fatal(err)
	}

	samples := []sample{
		{X: 100, Y: 105},
		{X: 200, Y: 100},
		{X: 300, Y: 100},
		{X: 300, Y: 102},
		{X: 300, Y: 198},
		{X: 300, Y: 300},
	}
	var buf bytes.Buffer
	if err := replay(&buf, nav, samples, "", ""); err != nil {
		t.Fatalf("replay: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"reached 0_1", "confirm stairs to floor 1", "now on floor 1", "reached 1_1", "route followed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	st, err := nav.Status()
	if err != nil || st.State != navigation.Arrived {
		t.Errorf("status = %+v, %v", st, err)
	}
	if st.TraceLength != 5 {
		t.Errorf("trace length = %d, want 5 (samples after arrival are ignored)", st.TraceLength)
	}
}

func TestReplayDeclinedFloorChange(t *testing.T) {
	nav, _ := newTestNavigator(t)
	if _, err := nav.Start(model.ID("0", 1), model.ID("1", 2)); err != nil {
		t.Fatal(err)
	}

	samples := []sample{
		{X: 100, Y: 100},
		{X: 200, Y: 100},
		{X: 300, Y: 100, Confirm: boolp(false)},
		{X: 310, Y: 100},
	}
	var buf bytes.Buffer
	if err := replay(&buf, nav, samples, "", ""); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if !strings.Contains(buf.String(), "Samples ran out before arrival") {
		t.Errorf("output:\n%s", buf.String())
	}
	st, _ := nav.Status()
	if st.Floor != "0" || st.State != navigation.Tracking {
		t.Errorf("status = %+v", st)
	}
}

func TestReplayRecordsReason(t *testing.T) {
	nav, log := newTestNavigator(t)
	if _, err := nav.Start(model.ID("0", 1), model.ID("0", 3)); err != nil {
		t.Fatal(err)
	}

	// 0_2 is never reached.
	samples := []sample{{X: 100, Y: 100}, {X: 300, Y: 95}}
	var buf bytes.Buffer
	if err := replay(&buf, nav, samples, "blocked", "door locked"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	records, err := log.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Reason != feedback.ReasonBlocked || records[0].Notes != "door locked" {
		t.Fatalf("records = %+v", records)
	}
	if st, _ := nav.Status(); st.State != navigation.Arrived {
		t.Errorf("state = %s", st.State)
	}
}

func TestReplayRejectsInvalidReason(t *testing.T) {
	nav, _ := newTestNavigator(t)
	if _, err := nav.Start(model.ID("0", 1), model.ID("0", 3)); err != nil {
		t.Fatal(err)
	}
	err := replay(&bytes.Buffer{}, nav, []sample{{X: 100, Y: 100}, {X: 300, Y: 100}}, "bored", "")
	if err == nil {
		t.Fatal("invalid reason accepted")
	}
}

func TestReplayExploration(t *testing.T) {
	nav, _ := newTestNavigator(t)
	if _, err := nav.Explore("1"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := replay(&buf, nav, []sample{{X: 50, Y: 400}, {X: 100, Y: 400}}, "", ""); err != nil {
		t.Fatalf("replay: %v", err)
	}
	st, _ := nav.Status()
	if st.Mode != navigation.ModeExplore || st.State != navigation.Arrived || st.TraceLength != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestLoadSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.json")
	doc := `[{"x": 1, "y": 2}, {"x": 3, "y": 4, "confirm": false}]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	samples, err := loadSamples(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 || samples[0].Confirm != nil || samples[1].Confirm == nil || *samples[1].Confirm {
		t.Errorf("samples = %+v", samples)
	}

	if err := os.WriteFile(path, []byte(`{"x": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSamples(path); err == nil {
		t.Error("non-array document accepted")
	}
}
