package feedback

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ritzau/wayfinder/pkg/model"
)

func TestParseReason(t *testing.T) {
	for _, r := range Reasons {
		if got, err := ParseReason(string(r)); err != nil || got != r {
			t.Errorf("ParseReason(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseReason("lost"); !errors.Is(err, ErrInvalidReason) {
		t.Errorf("ParseReason(lost) error = %v, want ErrInvalidReason", err)
	}
}

func TestAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route_feedback.json")
	log := NewLog(path)
	log.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

	records, err := log.Load()
	if err != nil || len(records) != 0 {
		t.Fatalf("Load() on missing file = %v, %v", records, err)
	}

	route := []model.NodeID{model.ID("0", 1), model.ID("0", 2), model.ID("0", 3)}
	first := Record{SuggestedRoute: route, VisitedNodes: route[:1], Deviated: true, Reason: ReasonBlocked, PathLength: 120}
	if err := log.Append(first); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(Record{SuggestedRoute: route, Reason: ReasonCrowded, Notes: "lunch rush"}); err != nil {
		t.Fatal(err)
	}

	records, err = log.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Timestamp != "2024-03-09 14:05:00" {
		t.Errorf("timestamp = %q", records[0].Timestamp)
	}
	if records[0].VisitedNodes[0] != model.ID("0", 1) || records[1].Notes != "lunch rush" {
		t.Errorf("records did not survive the round trip: %+v", records)
	}

	raw, _ := os.ReadFile(path)
	if len(raw) == 0 || raw[0] != '[' {
		t.Errorf("log is not a JSON array: %q", raw)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route_feedback.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLog(path).Load(); err == nil {
		t.Error("Load() accepted a corrupt log")
	}
	if err := NewLog(path).Append(Record{Reason: ReasonOther}); err == nil {
		t.Error("Append() overwrote a corrupt log")
	}
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]Record{
		{Deviated: true, Reason: ReasonCrowded},
		{Deviated: true, Reason: ReasonShorter},
		{Deviated: false, Reason: ReasonCrowded},
		{Deviated: true},
		{Deviated: false, Reason: ReasonBlocked},
		{Deviated: false, Reason: ReasonShorter},
	})

	if stats.Total != 6 || stats.Deviated != 3 || stats.DeviatedPercent != 50 {
		t.Errorf("stats = %+v", stats)
	}
	want := []ReasonCount{{ReasonCrowded, 2}, {ReasonShorter, 2}, {ReasonBlocked, 1}, {"unknown", 1}}
	if len(stats.Reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", stats.Reasons, want)
	}
	for i := range want {
		if stats.Reasons[i] != want[i] {
			t.Errorf("reasons[%d] = %v, want %v", i, stats.Reasons[i], want[i])
		}
	}

	if empty := Summarize(nil); empty.Total != 0 || empty.DeviatedPercent != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
