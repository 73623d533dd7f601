package navigation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/route"
)

var (
	ErrNoSession               = errors.New("no navigation session")
	ErrAwaitingConfirmation    = errors.New("waiting for floor change confirmation")
	ErrNotAwaitingConfirmation = errors.New("no floor change to confirm")
	ErrNotAwaitingReason       = errors.New("no deviation reason requested")
	ErrSessionOver             = errors.New("navigation already finished")
	ErrNotExploring            = errors.New("session is not a free exploration")
	ErrMissingCoordinates      = errors.New("route node without coordinates")
)

// State is the navigation life cycle.
type State int

const (
	Idle State = iota
	AwaitingFirstFix
	Tracking
	AwaitingConfirmation
	AwaitingReason
	Arrived
)

var stateNames = [...]string{"idle", "awaiting_first_fix", "tracking", "awaiting_confirmation", "awaiting_reason", "arrived"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Mode tells route following from free exploration.
type Mode string

const (
	ModeRoute   Mode = "route"
	ModeExplore Mode = "explore"
)

// Options are the distance thresholds of a session.
type Options struct {
	Proximity float64 // P: arrival radius
	Deviation float64 // D: off-route distance; twice this is exploring
}

// DefaultOptions returns P=30, D=50.
func DefaultOptions() Options {
	return Options{Proximity: 30, Deviation: 50}
}

// Leg is the part of a trace walked on one floor.
type Leg struct {
	Floor string         `json:"floor"`
	Trace orb.LineString `json:"trace"`
}

// TransitionPrompt announces an upcoming floor change.
type TransitionPrompt struct {
	From      model.NodeID         `json:"from"`
	To        model.NodeID         `json:"to"`
	FromFloor string               `json:"from_floor"`
	ToFloor   string               `json:"to_floor"`
	Kind      model.TransitionKind `json:"kind"`
	Distance  float64              `json:"distance"`
	// AtNode is set on the sample that reached the transition node and
	// opened the confirmation.
	AtNode bool `json:"at_node"`
}

// Update is what one sample, or one confirmation, produced.
type Update struct {
	State          State             `json:"state"`
	Target         *model.NodeID     `json:"target,omitempty"`
	TargetDistance float64           `json:"target_distance,omitempty"`
	Guidance       Direction         `json:"guidance,omitempty"`
	Reached        *model.NodeID     `json:"reached,omitempty"`
	Deviated       bool              `json:"deviated"`
	Exploring      bool              `json:"exploring"`
	RouteDistance  float64           `json:"route_distance,omitempty"`
	Prompt         *TransitionPrompt `json:"prompt,omitempty"`
	FloorChanged   bool              `json:"floor_changed,omitempty"`
	Floor          string            `json:"floor"`
	Compliance     *Compliance       `json:"compliance,omitempty"`
	Merges         []MergeReport     `json:"merges,omitempty"`
}

// Arrived reports whether the update ended the walk.
func (u Update) Arrived() bool {
	return u.State == Arrived || u.State == AwaitingReason
}

// Session is one navigation attempt. It is driven one sample at a time and
// never blocks: floor changes and deviation reasons are requested by
// switching state and resolved through Confirm and ResolveReason.
type Session struct {
	id    string
	mode  Mode
	state State
	opts  Options

	route  model.Route
	coords map[model.NodeID]orb.Point
	plan   route.Itinerary

	index     int
	visited   []model.NodeID
	deviated  bool
	exploring bool
	prompted  bool

	heading Heading
	floor   string
	legs    []Leg

	compliance *Compliance
}

// NewSession starts following the itinerary. Every route node needs
// coordinates.
func NewSession(it route.Itinerary, opts Options) (*Session, error) {
	r := it.Route()
	if !r.Found() {
		return nil, route.ErrEmptyRoute
	}
	coords := make(map[model.NodeID]orb.Point, len(r.Path))
	for _, id := range r.Path {
		c, ok := it.NodesCoordinates[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCoordinates, id)
		}
		coords[id] = orb.Point{c.X, c.Y}
	}
	s := &Session{
		id:     uuid.NewString(),
		mode:   ModeRoute,
		state:  AwaitingFirstFix,
		opts:   opts,
		route:  r,
		coords: coords,
		plan:   it,
		floor:  r.Start().Floor,
	}
	s.legs = []Leg{{Floor: s.floor}}
	return s, nil
}

// NewExploration starts a free walk on floor: no route, no guidance, the
// trace only grows the map.
func NewExploration(floor string, opts Options) *Session {
	return &Session{
		id:    uuid.NewString(),
		mode:  ModeExplore,
		state: Tracking,
		opts:  opts,
		route: model.NoRoute(),
		floor: floor,
		legs:  []Leg{{Floor: floor}},
	}
}

// Step evaluates one position sample on the current floor. The first
// matching rule wins: final arrival, floor change ahead, waypoint reached,
// then deviation and guidance.
func (s *Session) Step(p orb.Point) (Update, error) {
	switch s.state {
	case AwaitingConfirmation:
		return s.update(), ErrAwaitingConfirmation
	case AwaitingReason, Arrived:
		return s.update(), ErrSessionOver
	case AwaitingFirstFix:
		s.state = Tracking
	}

	leg := &s.legs[len(s.legs)-1]
	leg.Trace = append(leg.Trace, p)
	s.heading.Add(p)

	if s.mode == ModeExplore {
		return s.update(), nil
	}

	last := len(s.route.Path) - 1
	final := s.route.End()
	if final.Floor == s.floor && s.distance(p, final) <= s.opts.Proximity {
		s.visit(final)
		s.index = len(s.route.Path)
		s.arrive()
		return s.update(), nil
	}

	if s.index < last && s.route.CrossesFloor(s.index) {
		node, next := s.route.Path[s.index], s.route.Path[s.index+1]
		d := s.distance(p, node)
		if d <= 1.5*s.opts.Proximity {
			prompt := &TransitionPrompt{
				From:      node,
				To:        next,
				FromFloor: node.Floor,
				ToFloor:   next.Floor,
				Kind:      s.plan.TransitionKind(node, next),
				Distance:  d,
			}
			if d <= s.opts.Proximity && !s.prompted {
				s.prompted = true
				s.visit(node)
				s.state = AwaitingConfirmation
				prompt.AtNode = true
			}
			u := s.update()
			u.Prompt = prompt
			u.TargetDistance = d
			return u, nil
		}
		s.prompted = false
	}

	if s.index > last {
		return s.update(), nil
	}

	target := s.route.Path[s.index]
	if target.Floor == s.floor {
		if d := s.distance(p, target); d <= s.opts.Proximity {
			s.visit(target)
			s.index++
			if s.index > last {
				s.arrive()
			}
			u := s.update()
			u.Reached = &target
			return u, nil
		}
	}

	dr := s.routeDistance(p)
	switch {
	case dr > 2*s.opts.Deviation:
		s.exploring = true
		s.deviated = true
	case dr > s.opts.Deviation:
		s.deviated = true
	}

	u := s.update()
	if !math.IsInf(dr, 1) {
		u.RouteDistance = dr
	}
	if target.Floor == s.floor {
		u.TargetDistance = s.distance(p, target)
		if dr <= 2*s.opts.Deviation {
			u.Guidance = Guide(p, s.coords[target], &s.heading)
		}
	}
	return u, nil
}

// Confirm resolves a floor change prompt. Accepting moves on to the first
// node on the new floor and starts a new trace leg. Declining resumes
// tracking on the current floor; the prompt is not repeated until the agent
// has left its radius.
func (s *Session) Confirm(accept bool) (Update, error) {
	if s.state != AwaitingConfirmation {
		return s.update(), ErrNotAwaitingConfirmation
	}
	s.state = Tracking
	if !accept {
		return s.update(), nil
	}

	s.index++
	s.floor = s.route.Path[s.index].Floor
	s.legs = append(s.legs, Leg{Floor: s.floor})
	s.heading.Reset()
	s.prompted = false

	u := s.update()
	u.FloorChanged = true
	return u, nil
}

// ResolveReason settles a non-compliant arrival. It returns the feedback
// record to log, or nil when the reason is skipped or is exploring.
func (s *Session) ResolveReason(reason feedback.Reason, notes string, skip bool) (*feedback.Record, error) {
	if s.state != AwaitingReason {
		return nil, ErrNotAwaitingReason
	}
	if !skip {
		if _, err := feedback.ParseReason(string(reason)); err != nil {
			return nil, err
		}
	}
	s.state = Arrived
	if skip || reason == feedback.ReasonExploring {
		return nil, nil
	}
	return &feedback.Record{
		SuggestedRoute: slices.Clone(s.route.Path),
		VisitedNodes:   s.Visited(),
		Deviated:       s.deviated,
		Reason:         reason,
		Notes:          notes,
		PathLength:     s.TraceLen(),
	}, nil
}

// Finish ends a free exploration.
func (s *Session) Finish() error {
	if s.mode != ModeExplore {
		return ErrNotExploring
	}
	if s.state == Arrived {
		return ErrSessionOver
	}
	s.state = Arrived
	return nil
}

func (s *Session) arrive() {
	c, visited := EvaluateCompliance(s.route.Path, s.visited)
	s.visited = visited
	s.compliance = &c
	if c.Compliant {
		s.state = Arrived
	} else {
		s.state = AwaitingReason
	}
}

func (s *Session) visit(id model.NodeID) {
	if !slices.Contains(s.visited, id) {
		s.visited = append(s.visited, id)
	}
}

func (s *Session) distance(p orb.Point, id model.NodeID) float64 {
	return planar.Distance(p, s.coords[id])
}

// routeDistance is the distance to the nearest route node on the current
// floor.
func (s *Session) routeDistance(p orb.Point) float64 {
	best := math.Inf(1)
	for _, id := range s.route.Path {
		if id.Floor != s.floor {
			continue
		}
		best = min(best, s.distance(p, id))
	}
	return best
}

func (s *Session) update() Update {
	u := Update{
		State:      s.state,
		Deviated:   s.deviated,
		Exploring:  s.exploring,
		Floor:      s.floor,
		Compliance: s.compliance,
	}
	if t, ok := s.Target(); ok {
		u.Target = &t
	}
	return u
}

// ID identifies the session in events.
func (s *Session) ID() string { return s.id }

// Mode returns how the session was started.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Floor is the floor samples are currently read on.
func (s *Session) Floor() string { return s.floor }

// Route returns the route being followed.
func (s *Session) Route() model.Route { return s.route }

// Index is the position of the current target in the route.
func (s *Session) Index() int { return s.index }

// Deviated reports whether the agent ever left the route corridor.
func (s *Session) Deviated() bool { return s.deviated }

// Exploring reports whether the agent ever went far off route.
func (s *Session) Exploring() bool { return s.exploring }

// Compliance is set once the walk has arrived.
func (s *Session) Compliance() *Compliance { return s.compliance }

// Target returns the node currently guided to.
func (s *Session) Target() (model.NodeID, bool) {
	if s.mode != ModeRoute || s.index >= len(s.route.Path) {
		return model.NodeID{}, false
	}
	return s.route.Path[s.index], true
}

// Visited returns the visit order so far.
func (s *Session) Visited() []model.NodeID {
	return slices.Clone(s.visited)
}

// Legs returns the trace split per floor.
func (s *Session) Legs() []Leg {
	legs := make([]Leg, len(s.legs))
	for i, l := range s.legs {
		legs[i] = Leg{Floor: l.Floor, Trace: slices.Clone(l.Trace)}
	}
	return legs
}

// TraceLen counts the samples taken over all legs.
func (s *Session) TraceLen() int {
	n := 0
	for _, l := range s.legs {
		n += len(l.Trace)
	}
	return n
}
