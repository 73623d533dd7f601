package navigation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/feedback"
	"github.com/ritzau/wayfinder/pkg/graph"
	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/mapfile"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/route"
)

var (
	ErrNoPath        = errors.New("no path between nodes")
	ErrNoMap         = errors.New("no map loaded")
	ErrUnknownNode   = mapfile.ErrUnknownNode
	ErrInvalidReason = feedback.ErrInvalidReason
)

// Event topics and types.
const (
	TopicNavigation = "navigation"
	TopicMap        = "map"

	EventTarget               = "target"
	EventTransitionPrompt     = "transition_prompt"
	EventAwaitingConfirmation = "awaiting_confirmation"
	EventFloorChanged         = "floor_changed"
	EventDeviated             = "deviated"
	EventExploring            = "exploring"
	EventArrived              = "arrived"
	EventReset                = "reset"

	EventMapLoaded = "loaded"
	EventMapMerged = "merged"
	EventMapEdited = "edited"
	// EventRouteChanged reports a route file written by another process.
	EventRouteChanged = "route_changed"
)

// minExplorationSamples is the trace length a free exploration needs before
// it is merged into the map.
const minExplorationSamples = 5

// Publisher receives navigation and map events.
type Publisher interface {
	Publish(topic string, eventType string, data any) error
}

// Config wires a Navigator.
type Config struct {
	MapPath   string // empty keeps the map in memory only
	RoutePath string
	Session   Options
	Merge     cluster.Options
	AutoMerge bool
}

// UnresolvedEnd is a new path end that found nothing to connect to.
type UnresolvedEnd struct {
	Endpoint cluster.Endpoint `json:"endpoint"`
	Node     model.NodeID     `json:"node"`
	Radius   float64          `json:"radius"`
}

// MergeReport summarises what one trace leg added to its floor.
type MergeReport struct {
	Floor      string          `json:"floor"`
	Added      []model.NodeID  `json:"added"`
	Reused     []model.NodeID  `json:"reused"`
	Links      int             `json:"links"`
	Unresolved []UnresolvedEnd `json:"unresolved,omitempty"`
	Samples    int             `json:"samples"`
}

// Status is a snapshot of the current session.
type Status struct {
	Session     string         `json:"session"`
	Mode        Mode           `json:"mode"`
	State       State          `json:"state"`
	Floor       string         `json:"floor"`
	Route       []model.NodeID `json:"route,omitempty"`
	Distance    float64        `json:"distance,omitempty"`
	Index       int            `json:"index"`
	Target      *model.NodeID  `json:"target,omitempty"`
	Visited     []model.NodeID `json:"visited"`
	Deviated    bool           `json:"deviated"`
	Exploring   bool           `json:"exploring"`
	TraceLength int            `json:"trace_length"`
	Compliance  *Compliance    `json:"compliance,omitempty"`
}

// Navigator owns the loaded building, its routing graph, the single live
// session and the feedback log. Every method holds one lock, so samples and
// map mutations never overlap.
type Navigator struct {
	mu sync.Mutex

	cfg         Config
	building    *mapfile.Building
	graph       *graph.Graph
	transitions []model.FloorTransition

	session  *Session
	prompted bool

	feedback *feedback.Log
	pub      Publisher
}

// New creates a Navigator. Either collaborator may be nil.
func New(cfg Config, log *feedback.Log, pub Publisher) *Navigator {
	return &Navigator{cfg: cfg, feedback: log, pub: pub}
}

// Load reads the map file and swaps it in. On failure the previously loaded
// map stays in place.
func (n *Navigator) Load() error {
	b, err := mapfile.Load(n.cfg.MapPath)
	if err != nil {
		logging.Error("map load failed", "path", n.cfg.MapPath, "error", err)
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.install(b)
	logging.Info("map loaded", "path", n.cfg.MapPath, "floors", len(b.Floors), "nodes", n.graph.Len())
	n.emit(TopicMap, EventMapLoaded, n.summary())
	return nil
}

// Install swaps in an already decoded building.
func (n *Navigator) Install(b *mapfile.Building) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.install(b)
}

func (n *Navigator) install(b *mapfile.Building) {
	n.building = b
	n.rebuild()
}

func (n *Navigator) rebuild() {
	n.graph = graph.FromBuilding(n.building)
	n.transitions = n.transitions[:0]
	for _, t := range n.building.Transitions {
		if ft, err := t.Resolve(); err == nil {
			n.transitions = append(n.transitions, ft)
		}
	}
}

// Summary describes the loaded building.
func (n *Navigator) Summary() (Summary, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.building == nil {
		return Summary{}, ErrNoMap
	}
	return n.summary(), nil
}

func (n *Navigator) summary() Summary {
	return Summarize(n.building, n.graph)
}

// Route solves from→to on the loaded map.
func (n *Navigator) Route(from, to model.NodeID) (route.Itinerary, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.solve(from, to)
}

func (n *Navigator) solve(from, to model.NodeID) (route.Itinerary, error) {
	if n.graph == nil {
		return route.Itinerary{}, ErrNoMap
	}
	for _, id := range []model.NodeID{from, to} {
		if !n.graph.HasNode(id) {
			return route.Itinerary{}, fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
	}
	r, ok := route.ShortestPath(n.graph, from, to)
	if !ok {
		return route.Itinerary{}, fmt.Errorf("%w: %s to %s", ErrNoPath, from, to)
	}
	return route.NewItinerary(n.graph, r, n.transitions), nil
}

// Export solves from→to and writes the route file.
func (n *Navigator) Export(from, to model.NodeID) (route.Itinerary, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	it, err := n.solve(from, to)
	if err != nil {
		return route.Itinerary{}, err
	}
	if err := it.Save(n.cfg.RoutePath); err != nil {
		return route.Itinerary{}, fmt.Errorf("export route: %w", err)
	}
	logging.Info("route exported", "path", n.cfg.RoutePath,
		"from", from.String(), "to", to.String(), "distance", it.ShortestPath.TotalDistance)
	return it, nil
}

// Start begins navigating from→to, replacing any running session.
func (n *Navigator) Start(from, to model.NodeID) (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	it, err := n.solve(from, to)
	if err != nil {
		return Status{}, err
	}
	return n.begin(it)
}

// StartFromFile begins navigating the route stored in the route file. The
// route must still fit the loaded map.
func (n *Navigator) StartFromFile() (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graph == nil {
		return Status{}, ErrNoMap
	}
	it, err := route.Load(n.cfg.RoutePath)
	if err != nil {
		return Status{}, err
	}
	if err := it.Check(n.graph); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnknownNode, err)
	}
	path := it.ShortestPath.Path
	total, _ := n.graph.PathWeight(path)
	return n.begin(route.NewItinerary(n.graph, model.Route{Path: path, Distance: total}, n.transitions))
}

func (n *Navigator) begin(it route.Itinerary) (Status, error) {
	s, err := NewSession(it, n.cfg.Session)
	if err != nil {
		return Status{}, err
	}
	n.replace(s)
	logging.Info("navigation started", "session", s.ID(),
		"from", it.ShortestPath.StartNode.String(), "to", it.ShortestPath.EndNode.String(),
		"steps", it.ShortestPath.NumberOfSteps)
	st := n.status()
	n.emit(TopicNavigation, EventTarget, st)
	return st, nil
}

// Explore starts a free exploration on floor.
func (n *Navigator) Explore(floor string) (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.building == nil {
		return Status{}, ErrNoMap
	}
	if _, ok := n.building.Floors[floor]; !ok {
		return Status{}, fmt.Errorf("floor %q: %w", floor, ErrUnknownNode)
	}
	s := NewExploration(floor, n.cfg.Session)
	n.replace(s)
	logging.Info("free exploration started", "session", s.ID(), "floor", floor)
	return n.status(), nil
}

func (n *Navigator) replace(s *Session) {
	if n.session != nil && n.session.State() != Arrived {
		logging.Info("discarding unfinished session", "session", n.session.ID())
	}
	n.session = s
	n.prompted = false
}

// Sample feeds one position on the session's current floor.
func (n *Navigator) Sample(p orb.Point) (Update, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := n.session
	if s == nil {
		return Update{}, ErrNoSession
	}
	wasDeviated, wasExploring := s.Deviated(), s.Exploring()

	u, err := s.Step(p)
	if err != nil {
		return u, err
	}
	logging.Trace("sample", "session", s.ID(), "x", p[0], "y", p[1], "state", u.State.String())

	switch {
	case u.Prompt != nil && u.Prompt.AtNode:
		n.emit(TopicNavigation, EventAwaitingConfirmation, u.Prompt)
	case u.Prompt != nil && !n.prompted:
		n.emit(TopicNavigation, EventTransitionPrompt, u.Prompt)
	}
	n.prompted = u.Prompt != nil

	if u.Deviated && !wasDeviated {
		logging.Info("agent left the route", "session", s.ID(), "distance", u.RouteDistance)
		n.emit(TopicNavigation, EventDeviated, u)
	}
	if u.Exploring && !wasExploring {
		logging.Info("agent is exploring", "session", s.ID(), "distance", u.RouteDistance)
		n.emit(TopicNavigation, EventExploring, u)
	}

	if u.Arrived() {
		n.arrived(&u)
		return u, nil
	}
	if u.Reached != nil {
		logging.Debug("waypoint reached", "session", s.ID(), "node", u.Reached.String())
		n.emit(TopicNavigation, EventTarget, u)
	}
	return u, nil
}

func (n *Navigator) arrived(u *Update) {
	s := n.session
	logging.Info("arrived", "session", s.ID(), "compliant", u.Compliance != nil && u.Compliance.Compliant,
		"visited", len(s.Visited()), "samples", s.TraceLen())
	if n.cfg.AutoMerge {
		u.Merges = n.merge(s.Legs())
	}
	n.emit(TopicNavigation, EventArrived, u)
}

// Confirm resolves a pending floor change.
func (n *Navigator) Confirm(accept bool) (Update, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session == nil {
		return Update{}, ErrNoSession
	}
	u, err := n.session.Confirm(accept)
	if err != nil {
		return u, err
	}
	n.prompted = false
	if u.FloorChanged {
		logging.Info("floor changed", "session", n.session.ID(), "floor", u.Floor)
		n.emit(TopicNavigation, EventFloorChanged, u)
	}
	return u, nil
}

// SubmitReason records why a walk left its route. Exploring is accepted but
// not logged.
func (n *Navigator) SubmitReason(reason, notes string) (Status, error) {
	r, err := feedback.ParseReason(reason)
	if err != nil {
		return Status{}, err
	}
	return n.resolve(r, notes, false)
}

// SkipReason closes the reason request without recording anything.
func (n *Navigator) SkipReason() (Status, error) {
	return n.resolve("", "", true)
}

func (n *Navigator) resolve(reason feedback.Reason, notes string, skip bool) (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session == nil {
		return Status{}, ErrNoSession
	}
	rec, err := n.session.ResolveReason(reason, notes, skip)
	if err != nil {
		return Status{}, err
	}
	if rec != nil && n.feedback != nil {
		if err := n.feedback.Append(*rec); err != nil {
			logging.Error("feedback not saved", "path", n.feedback.Path(), "error", err)
			return n.status(), err
		}
		logging.Info("feedback saved", "reason", string(rec.Reason))
	}
	return n.status(), nil
}

// Finish ends a free exploration and merges its trace when it is long
// enough.
func (n *Navigator) Finish() (Status, []MergeReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := n.session
	if s == nil {
		return Status{}, nil, ErrNoSession
	}
	if err := s.Finish(); err != nil {
		return Status{}, nil, err
	}
	var reports []MergeReport
	if s.TraceLen() > minExplorationSamples {
		reports = n.merge(s.Legs())
	}
	logging.Info("free exploration finished", "session", s.ID(), "samples", s.TraceLen())
	return n.status(), reports, nil
}

// Reset drops the session and its trace. The map is not touched.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session == nil {
		return
	}
	logging.Info("navigation reset", "session", n.session.ID())
	n.emit(TopicNavigation, EventReset, map[string]string{"session": n.session.ID()})
	n.session = nil
	n.prompted = false
}

// Status snapshots the current session.
func (n *Navigator) Status() (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session == nil {
		return Status{}, ErrNoSession
	}
	return n.status(), nil
}

func (n *Navigator) status() Status {
	s := n.session
	st := Status{
		Session:     s.ID(),
		Mode:        s.Mode(),
		State:       s.State(),
		Floor:       s.Floor(),
		Index:       s.Index(),
		Visited:     s.Visited(),
		Deviated:    s.Deviated(),
		Exploring:   s.Exploring(),
		TraceLength: s.TraceLen(),
		Compliance:  s.Compliance(),
	}
	if r := s.Route(); r.Found() {
		st.Route = r.Path
		st.Distance = r.Distance
	}
	if t, ok := s.Target(); ok {
		st.Target = &t
	}
	return st
}

// merge consolidates every non-empty leg into its floor and persists the
// map once.
func (n *Navigator) merge(legs []Leg) []MergeReport {
	if n.building == nil {
		return nil
	}
	var reports []MergeReport
	changed := false

	for _, leg := range legs {
		if len(leg.Trace) == 0 {
			continue
		}
		c := n.building.Floor(leg.Floor).Consolidate(leg.Trace, n.cfg.Merge)
		rep := MergeReport{Floor: leg.Floor, Links: len(c.Links), Samples: len(leg.Trace)}
		for _, p := range c.Points {
			rep.Added = append(rep.Added, model.ID(leg.Floor, p.ID))
		}
		for _, id := range c.Reused {
			rep.Reused = append(rep.Reused, model.ID(leg.Floor, id))
		}
		for _, u := range c.Unresolved {
			node := model.ID(leg.Floor, u.Point.ID)
			logging.Warn("unresolved connection", "node", node.String(),
				"endpoint", string(u.Endpoint), "radius", u.Radius)
			rep.Unresolved = append(rep.Unresolved, UnresolvedEnd{Endpoint: u.Endpoint, Node: node, Radius: u.Radius})
		}
		if !c.Empty() {
			changed = true
		}
		logging.Info("trace merged", "floor", leg.Floor, "samples", c.Raw,
			"added", len(c.Points), "reused", len(c.Reused), "links", len(c.Links))
		reports = append(reports, rep)
	}

	if changed {
		n.rebuild()
		if err := n.persist(); err != nil {
			logging.Error("merged map not saved", "path", n.cfg.MapPath, "error", err)
		}
		n.emit(TopicMap, EventMapMerged, reports)
	}
	return reports
}

func (n *Navigator) persist() error {
	if n.cfg.MapPath == "" {
		return nil
	}
	return n.building.Save(n.cfg.MapPath)
}

// edit applies a map mutation, rebuilds the graph and saves.
func (n *Navigator) edit(what string, fn func(b *mapfile.Building) error) error {
	if n.building == nil {
		return ErrNoMap
	}
	if err := fn(n.building); err != nil {
		return err
	}
	n.rebuild()
	if err := n.persist(); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	n.emit(TopicMap, EventMapEdited, map[string]string{"edit": what})
	return nil
}

// RemoveNode deletes a node with its connections, transitions and label.
func (n *Navigator) RemoveNode(id model.NodeID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.edit("remove_node", func(b *mapfile.Building) error {
		if err := b.RemoveNode(id); err != nil {
			return fmt.Errorf("%w: %s", err, id)
		}
		logging.Info("node removed", "node", id.String())
		return nil
	})
}

// SetLabel names a node; an empty label clears it.
func (n *Navigator) SetLabel(id model.NodeID, label string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.edit("label", func(b *mapfile.Building) error {
		if err := b.SetLabel(id, label); err != nil {
			return fmt.Errorf("%w: %s", err, id)
		}
		return nil
	})
}

// Align snaps the map to a grid and returns how many points moved.
func (n *Navigator) Align(grid float64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	moved := 0
	err := n.edit("align", func(b *mapfile.Building) error {
		moved = b.AlignToGrid(grid)
		logging.Info("map aligned", "grid", grid, "moved", moved)
		return nil
	})
	return moved, err
}

// MergeCorridors collapses parallel paths on one floor with the configured
// merge threshold.
func (n *Navigator) MergeCorridors(floor string) (cluster.Merge, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var m cluster.Merge
	err := n.edit("merge", func(b *mapfile.Building) error {
		var err error
		m, err = b.MergeCorridors(floor, n.cfg.Merge.Threshold)
		if err != nil {
			return err
		}
		logging.Info("corridors merged", "floor", floor, "before", len(m.Remap), "after", len(m.Points))
		return nil
	})
	return m, err
}

// FeedbackStats summarises the feedback log.
func (n *Navigator) FeedbackStats() (feedback.Stats, error) {
	if n.feedback == nil {
		return feedback.Stats{}, nil
	}
	records, err := n.feedback.Load()
	if err != nil {
		return feedback.Stats{}, err
	}
	return feedback.Summarize(records), nil
}

func (n *Navigator) emit(topic, eventType string, data any) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(topic, eventType, data); err != nil {
		logging.Warn("event not published", "topic", topic, "type", eventType, "error", err)
	}
}
