package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/wayfinder/pkg/config"
	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/navigation"
	"github.com/ritzau/wayfinder/pkg/output"
	"github.com/ritzau/wayfinder/pkg/pubsub"
	"github.com/ritzau/wayfinder/pkg/watcher"
	"github.com/ritzau/wayfinder/pkg/web"
)

const usage = `Usage: wayfinder <command> [flags] [args]

Commands:
  route FROM TO   print the shortest route (--export writes the route file)
  serve           start the HTTP API
  replay FILE     feed recorded samples through a navigation session
  stats           summarise the route feedback log
  check           summarise the building and report disconnected regions
  merge           merge parallel corridors on one floor
  align           snap every point to the grid

Run 'wayfinder <command> --help' for the flags of a command.
`

type command struct {
	flags func(f *pflag.FlagSet)
	run   func(ctx context.Context, f *pflag.FlagSet, cfg *config.Config) error
}

var commands = map[string]command{
	"route":  {routeFlags, runRoute},
	"serve":  {nil, runServe},
	"replay": {replayFlags, runReplay},
	"stats":  {nil, runStats},
	"check":  {nil, runCheck},
	"merge":  {mergeFlags, runMerge},
	"align":  {nil, runAlign},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.RegisterFlags(f)
	if cmd.flags != nil {
		cmd.flags(f)
	}
	if err := f.Parse(os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(lvl, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, f, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newNavigator loads the configured map. pub may be nil.
func newNavigator(cfg *config.Config, pub navigation.Publisher) (*navigation.Navigator, error) {
	nav := navigation.New(cfg.Navigator(), feedback.NewLog(cfg.Files.Feedback), pub)
	if err := nav.Load(); err != nil {
		return nil, err
	}
	return nav, nil
}

func nodeArgs(f *pflag.FlagSet) (model.NodeID, model.NodeID, error) {
	if f.NArg() != 2 {
		return model.NodeID{}, model.NodeID{}, fmt.Errorf("expected FROM and TO, got %d argument(s)", f.NArg())
	}
	from, err := model.ParseNodeID(f.Arg(0))
	if err != nil {
		return model.NodeID{}, model.NodeID{}, err
	}
	to, err := model.ParseNodeID(f.Arg(1))
	if err != nil {
		return model.NodeID{}, model.NodeID{}, err
	}
	return from, to, nil
}

func routeFlags(f *pflag.FlagSet) {
	f.Bool("export", false, "write the route file")
	f.Bool("json", false, "print the route document as JSON")
}

func runRoute(_ context.Context, f *pflag.FlagSet, cfg *config.Config) error {
	from, to, err := nodeArgs(f)
	if err != nil {
		return err
	}
	nav, err := newNavigator(cfg, nil)
	if err != nil {
		return err
	}

	solve := nav.Route
	if export, _ := f.GetBool("export"); export {
		solve = nav.Export
	}
	it, err := solve(from, to)
	if err != nil {
		return err
	}

	if asJSON, _ := f.GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(it)
	}
	output.PrintItinerary(os.Stdout, it)
	return nil
}

func runServe(ctx context.Context, _ *pflag.FlagSet, cfg *config.Config) error {
	pub := web.NewPublisher()
	defer pub.Close()

	nav, err := newNavigator(cfg, pub)
	if err != nil {
		return err
	}

	if cfg.Web.Watch {
		if err := watchFiles(ctx, cfg, nav, pub); err != nil {
			logging.Warn("file watching disabled", "error", err)
		}
	}

	server := web.NewServer(nav, pub, cfg.Map.Grid)
	return server.Start(ctx, cfg.Web.Port)
}

// watchFiles reloads the map whenever its file changes on disk. A failed
// reload keeps the previous map.
func watchFiles(ctx context.Context, cfg *config.Config, nav *navigation.Navigator, pub *pubsub.SSEPublisher) error {
	return watcher.Watch(ctx, cfg.Files.Map, cfg.Files.Route, 300*time.Millisecond, 2*time.Second,
		func(change *watcher.ChangeAnalysis) {
			if change.ReloadMap {
				logging.Info("map file changed, reloading", "files", change.ChangedFiles)
				if err := nav.Load(); err != nil {
					logging.Warn("keeping previous map", "error", err)
				}
			}
			if change.RouteChanged {
				logging.Info("route file changed", "files", change.ChangedFiles)
				if err := pub.Publish(navigation.TopicMap, navigation.EventRouteChanged, change.ChangedFiles); err != nil {
					logging.Debug("route change not published", "error", err)
				}
			}
		})
}

func runStats(_ context.Context, _ *pflag.FlagSet, cfg *config.Config) error {
	records, err := feedback.NewLog(cfg.Files.Feedback).Load()
	if err != nil {
		return err
	}
	output.PrintFeedbackStats(os.Stdout, feedback.Summarize(records))
	return nil
}

func runCheck(_ context.Context, _ *pflag.FlagSet, cfg *config.Config) error {
	nav, err := newNavigator(cfg, nil)
	if err != nil {
		return err
	}
	sum, err := nav.Summary()
	if err != nil {
		return err
	}
	output.PrintSummary(os.Stdout, sum)
	return nil
}

func mergeFlags(f *pflag.FlagSet) {
	f.String("floor", model.DefaultFloor, "floor to merge")
}

func runMerge(_ context.Context, f *pflag.FlagSet, cfg *config.Config) error {
	nav, err := newNavigator(cfg, nil)
	if err != nil {
		return err
	}
	floor, _ := f.GetString("floor")
	m, err := nav.MergeCorridors(floor)
	if err != nil {
		return err
	}
	fmt.Printf("Floor %s: %d points merged into %d, %d connections\n", floor, len(m.Remap), len(m.Points), len(m.Links))
	return nil
}

func runAlign(_ context.Context, _ *pflag.FlagSet, cfg *config.Config) error {
	nav, err := newNavigator(cfg, nil)
	if err != nil {
		return err
	}
	moved, err := nav.Align(cfg.Map.Grid)
	if err != nil {
		return err
	}
	fmt.Printf("Aligned to grid %.0f: %d point(s) moved\n", cfg.Map.Grid, moved)
	return nil
}
