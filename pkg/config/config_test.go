package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return f
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(flags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Files.Map != "gps_paths.json" || cfg.Files.Route != "shortest_path.json" || cfg.Files.Feedback != "route_feedback.json" {
		t.Errorf("files = %+v", cfg.Files)
	}
	if cfg.Nav.Proximity != 30 || cfg.Nav.Deviation != 50 {
		t.Errorf("nav = %+v", cfg.Nav)
	}
	m := cfg.MergeOptions()
	if m.Threshold != 40 || m.Stride != 50 || m.MinSpacing != 30 || m.Exact != 5 || m.MaxLinks != 3 {
		t.Errorf("merge = %+v", m)
	}
	if len(m.Radii) != 4 || m.Radii[3] != 200 {
		t.Errorf("radii = %v", m.Radii)
	}
	if !cfg.Merge.Auto || !cfg.Web.Watch || cfg.Web.Port != 8080 || cfg.Map.Grid != 20 {
		t.Errorf("config = %+v", cfg)
	}
	if lvl, err := cfg.LogLevel(); err != nil || lvl != slog.LevelInfo {
		t.Errorf("LogLevel = %v, %v", lvl, err)
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.toml")
	doc := `
[files]
map = "library.json"

[nav]
proximity = 20
deviation = 40

[merge]
radii = [50, 90]
auto = false

[web]
port = 7000
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WAYFINDER_NAV_DEVIATION", "70")
	t.Setenv("WAYFINDER_WEB_PORT", "7500")

	cfg, err := Load(flags(t, "--config", path, "--port", "9090", "-vv"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name      string
		got, want any
	}{
		{"file overrides default", cfg.Files.Map, "library.json"},
		{"file value kept", cfg.Nav.Proximity, 20.0},
		{"env overrides file", cfg.Nav.Deviation, 70.0},
		{"flag overrides env", cfg.Web.Port, 9090},
		{"file list", len(cfg.Merge.Radii), 2},
		{"file bool", cfg.Merge.Auto, false},
		{"untouched default", cfg.Files.Route, "shortest_path.json"},
		{"count flag", cfg.Log.Verbose, 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	nav := cfg.Navigator()
	if nav.MapPath != "library.json" || nav.AutoMerge || nav.Session.Deviation != 70 {
		t.Errorf("Navigator() = %+v", nav)
	}
	if lvl, _ := cfg.LogLevel(); lvl >= slog.LevelDebug {
		t.Errorf("-vv gave level %v, want trace", lvl)
	}
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.toml")))
	if err == nil {
		t.Fatal("missing explicit config file accepted")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"zero proximity", []string{"--proximity", "0"}, nil},
		{"negative deviation", []string{"--deviation=-5"}, nil},
		{"port out of range", []string{"--port", "70000"}, nil},
		{"zero stride", nil, map[string]string{"WAYFINDER_MERGE_STRIDE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(flags(t, tt.args...))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
