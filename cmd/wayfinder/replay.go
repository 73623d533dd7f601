package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/spf13/pflag"

	"github.com/ritzau/wayfinder/pkg/config"
	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/navigation"
	"github.com/ritzau/wayfinder/pkg/output"
)

// sample is one recorded position. Confirm answers a floor change prompt
// raised by this sample; it defaults to accepting.
type sample struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Confirm *bool   `json:"confirm,omitempty"`
}

func loadSamples(path string) ([]sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

func replayFlags(f *pflag.FlagSet) {
	f.String("from", "", "start node")
	f.String("to", "", "destination node")
	f.Bool("itinerary", false, "follow the route stored in the route file")
	f.String("explore", "", "explore this floor instead of following a route")
	f.String("reason", "", "deviation reason to give on a non-compliant arrival (empty skips)")
	f.String("notes", "", "notes to go with --reason")
}

func runReplay(_ context.Context, f *pflag.FlagSet, cfg *config.Config) error {
	if f.NArg() != 1 {
		return errors.New("replay needs exactly one sample file")
	}
	samples, err := loadSamples(f.Arg(0))
	if err != nil {
		return err
	}
	nav, err := newNavigator(cfg, nil)
	if err != nil {
		return err
	}

	if err := startReplay(nav, f); err != nil {
		return err
	}
	reason, _ := f.GetString("reason")
	notes, _ := f.GetString("notes")
	return replay(os.Stdout, nav, samples, reason, notes)
}

func startReplay(nav *navigation.Navigator, f *pflag.FlagSet) error {
	explore, _ := f.GetString("explore")
	itinerary, _ := f.GetBool("itinerary")
	switch {
	case explore != "":
		_, err := nav.Explore(explore)
		return err
	case itinerary:
		_, err := nav.StartFromFile()
		return err
	}

	fromArg, _ := f.GetString("from")
	toArg, _ := f.GetString("to")
	from, err := model.ParseNodeID(fromArg)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := model.ParseNodeID(toArg)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	_, err = nav.Start(from, to)
	return err
}

// replay drives the running session with samples, answering prompts as the
// samples say, and settles the session at the end.
func replay(w io.Writer, nav *navigation.Navigator, samples []sample, reason, notes string) error {
	for i, s := range samples {
		u, err := nav.Sample(orb.Point{s.X, s.Y})
		if err != nil {
			return fmt.Errorf("sample %d: %w", i+1, err)
		}
		output.PrintUpdate(w, i+1, u)

		if u.State == navigation.AwaitingConfirmation {
			accept := s.Confirm == nil || *s.Confirm
			cu, err := nav.Confirm(accept)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i+1, err)
			}
			output.PrintUpdate(w, i+1, cu)
		}
		if u.Arrived() {
			if rest := len(samples) - i - 1; rest > 0 {
				logging.Debug("ignoring samples after arrival", "count", rest)
			}
			output.PrintMergeReports(w, u.Merges)
			break
		}
	}

	st, err := nav.Status()
	if err != nil {
		return err
	}
	switch {
	case st.Mode == navigation.ModeExplore:
		_, reports, err := nav.Finish()
		if err != nil {
			return err
		}
		output.PrintMergeReports(w, reports)
	case st.State == navigation.AwaitingReason && reason == "":
		_, err = nav.SkipReason()
	case st.State == navigation.AwaitingReason:
		_, err = nav.SubmitReason(reason, notes)
	case st.State != navigation.Arrived:
		fmt.Fprintf(w, "Samples ran out before arrival (%s)\n", st.State)
	}
	return err
}
