package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAnalyzeChanges(t *testing.T) {
	a := AnalyzeChanges(ChangeEvent{Type: ChangeTypeMap, Paths: []string{"map.json"}})
	if !a.ReloadMap || a.RouteChanged {
		t.Errorf("map change = %+v", a)
	}
	a = AnalyzeChanges(ChangeEvent{Type: ChangeTypeRoute, Paths: []string{"shortest_path.json"}})
	if a.ReloadMap || !a.RouteChanged {
		t.Errorf("route change = %+v", a)
	}
}

func TestDebouncerBatchesBursts(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, 30*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypeRoute, Paths: []string{"r"}}
	for i := 0; i < 5; i++ {
		in <- ChangeEvent{Type: ChangeTypeMap, Paths: []string{"m"}}
	}

	var got []ChangeEvent
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-d.Output():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %d batches, want 2", len(got))
		}
	}
	if got[0].Type != ChangeTypeMap || got[1].Type != ChangeTypeRoute {
		t.Errorf("batches out of order: %v, %v", got[0].Type, got[1].Type)
	}
	if len(got[0].Paths) != 1 {
		t.Errorf("map paths not deduplicated: %v", got[0].Paths)
	}

	select {
	case ev := <-d.Output():
		t.Errorf("unexpected extra batch %+v", ev)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, time.Second, 60*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Keep the quiet timer from ever expiring.
	stop := time.After(200 * time.Millisecond)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			in <- ChangeEvent{Type: ChangeTypeMap, Paths: []string{"m"}}
			continue
		case ev := <-d.Output():
			if ev.Type != ChangeTypeMap {
				t.Errorf("type = %v", ev.Type)
			}
			return
		case <-stop:
			t.Fatal("max wait never flushed")
		}
	}
}

func TestWatchReportsMapSaves(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "map.json")
	if err := os.WriteFile(mapPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *ChangeAnalysis, 10)
	err := Watch(ctx, mapPath, "", 20*time.Millisecond, time.Second, func(a *ChangeAnalysis) { changes <- a })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Saves go through a rename, like the map writer does.
	tmp := filepath.Join(dir, ".map-1.json")
	if err := os.WriteFile(tmp, []byte(`{"floors": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, mapPath); err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-changes:
		if !a.ReloadMap {
			t.Errorf("change = %+v, want map reload", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}
