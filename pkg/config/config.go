// Package config layers defaults, an optional TOML file, environment
// variables and command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/navigation"
)

// DefaultFile is read from the working directory when --config is not given.
const DefaultFile = "wayfinder.toml"

const envPrefix = "WAYFINDER_"

// Config holds all configuration for the application
type Config struct {
	Files FilesConfig `koanf:"files"`
	Nav   NavConfig   `koanf:"nav"`
	Merge MergeConfig `koanf:"merge"`
	Map   MapConfig   `koanf:"map"`
	Web   WebConfig   `koanf:"web"`
	Log   LogConfig   `koanf:"log"`
}

type FilesConfig struct {
	Map      string `koanf:"map"`
	Route    string `koanf:"route"`
	Feedback string `koanf:"feedback"`
}

// NavConfig holds the session thresholds.
type NavConfig struct {
	Proximity float64 `koanf:"proximity"`
	Deviation float64 `koanf:"deviation"`
}

// MergeConfig tunes trace consolidation and corridor merging.
type MergeConfig struct {
	Threshold float64   `koanf:"threshold"`
	Stride    int       `koanf:"stride"`
	Spacing   float64   `koanf:"spacing"`
	Exact     float64   `koanf:"exact"`
	Radii     []float64 `koanf:"radii"`
	Links     int       `koanf:"links"`
	Auto      bool      `koanf:"auto"`
}

type MapConfig struct {
	Grid float64 `koanf:"grid"`
}

type WebConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

type LogConfig struct {
	Verbosity string `koanf:"verbosity"`
	Verbose   int    `koanf:"verbose"`
	JSON      bool   `koanf:"json"`
}

// Defaults returns the built-in configuration as a flat koanf map.
func Defaults() map[string]any {
	merge := cluster.DefaultOptions()
	nav := navigation.DefaultOptions()
	return map[string]any{
		"files.map":       "gps_paths.json",
		"files.route":     "shortest_path.json",
		"files.feedback":  "route_feedback.json",
		"nav.proximity":   nav.Proximity,
		"nav.deviation":   nav.Deviation,
		"merge.threshold": merge.Threshold,
		"merge.stride":    merge.Stride,
		"merge.spacing":   merge.MinSpacing,
		"merge.exact":     merge.Exact,
		"merge.radii":     slices.Clone(merge.Radii),
		"merge.links":     merge.MaxLinks,
		"merge.auto":      true,
		"map.grid":        20.0,
		"web.port":        8080,
		"web.watch":       true,
		"log.verbosity":   "",
		"log.verbose":     0,
		"log.json":        false,
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"map":        "files.map",
	"route":      "files.route",
	"feedback":   "files.feedback",
	"proximity":  "nav.proximity",
	"deviation":  "nav.deviation",
	"threshold":  "merge.threshold",
	"auto-merge": "merge.auto",
	"grid":       "map.grid",
	"port":       "web.port",
	"watch":      "web.watch",
	"verbosity":  "log.verbosity",
	"verbose":    "log.verbose",
	"log-json":   "log.json",
}

// RegisterFlags adds the shared flags to f. Their defaults only document
// the built-in values; unchanged flags never override the file or env.
func RegisterFlags(f *pflag.FlagSet) {
	d := Defaults()
	f.String("config", DefaultFile, "configuration file (TOML)")
	f.String("map", d["files.map"].(string), "building map file")
	f.String("route", d["files.route"].(string), "route export/import file")
	f.String("feedback", d["files.feedback"].(string), "route feedback log")
	f.Float64("proximity", d["nav.proximity"].(float64), "arrival radius P")
	f.Float64("deviation", d["nav.deviation"].(float64), "off-route distance D")
	f.Float64("threshold", d["merge.threshold"].(float64), "clustering threshold")
	f.Bool("auto-merge", true, "merge walked traces into the map on arrival")
	f.Float64("grid", d["map.grid"].(float64), "grid size for alignment")
	f.Int("port", d["web.port"].(int), "HTTP port")
	f.Bool("watch", true, "reload the map when its file changes")
	f.String("verbosity", "", "log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	f.Bool("log-json", false, "log as JSON")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. The default file is optional; an explicit one is not.
	path, explicit := DefaultFile, false
	if f != nil {
		if fl := f.Lookup("config"); fl != nil {
			path, explicit = fl.Value.String(), fl.Changed
		}
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		logging.Debug("no config file", "path", path)
	}

	// 3. Environment Variables
	// Prefix: WAYFINDER_ (e.g., WAYFINDER_NAV_PROXIMITY=25)
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, any) {
			key, ok := flagKeys[fl.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(f, fl)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	switch {
	case c.Nav.Proximity <= 0:
		return fmt.Errorf("%w: nav.proximity must be positive", ErrInvalid)
	case c.Nav.Deviation <= 0:
		return fmt.Errorf("%w: nav.deviation must be positive", ErrInvalid)
	case c.Merge.Threshold <= 0:
		return fmt.Errorf("%w: merge.threshold must be positive", ErrInvalid)
	case c.Merge.Stride < 1:
		return fmt.Errorf("%w: merge.stride must be at least 1", ErrInvalid)
	case c.Merge.Links < 1:
		return fmt.Errorf("%w: merge.links must be at least 1", ErrInvalid)
	case len(c.Merge.Radii) == 0 || !slices.IsSorted(c.Merge.Radii):
		return fmt.Errorf("%w: merge.radii must be a non-empty ascending list", ErrInvalid)
	case c.Web.Port < 0 || c.Web.Port > 65535:
		return fmt.Errorf("%w: web.port %d out of range", ErrInvalid, c.Web.Port)
	}
	return nil
}

// SessionOptions returns the navigation thresholds.
func (c *Config) SessionOptions() navigation.Options {
	return navigation.Options{Proximity: c.Nav.Proximity, Deviation: c.Nav.Deviation}
}

// MergeOptions returns the consolidation settings.
func (c *Config) MergeOptions() cluster.Options {
	return cluster.Options{
		Threshold:  c.Merge.Threshold,
		Stride:     c.Merge.Stride,
		MinSpacing: c.Merge.Spacing,
		Exact:      c.Merge.Exact,
		Radii:      slices.Clone(c.Merge.Radii),
		MaxLinks:   c.Merge.Links,
	}
}

// Navigator returns the wiring for a navigation.Navigator.
func (c *Config) Navigator() navigation.Config {
	return navigation.Config{
		MapPath:   c.Files.Map,
		RoutePath: c.Files.Route,
		Session:   c.SessionOptions(),
		Merge:     c.MergeOptions(),
		AutoMerge: c.Merge.Auto,
	}
}

// LogLevel resolves the configured verbosity.
func (c *Config) LogLevel() (slog.Level, error) {
	return logging.ParseLevel(c.Log.Verbosity, c.Log.Verbose)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

// Read unflattens the dotted keys so they merge with the other providers.
func (p *mapProvider) Read() (map[string]any, error) {
	k := koanf.New(".")
	for key, v := range p.m {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}
	return k.Raw(), nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
