// Package mapfile reads and writes the persisted building map: floors of
// traced paths, their connections and labels, plus the stairs and elevators
// linking floors. Files written by the older single-floor editor load as a
// building with one floor "0".
package mapfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/model"
)

var (
	// ErrMalformed marks a map document with a structural problem.
	ErrMalformed = errors.New("malformed map")
	// ErrUnknownNode is returned by edits naming a node the map does not hold.
	ErrUnknownNode = errors.New("unknown node")
)

// LoadError reports a failed map load. The previous in-memory map, if any,
// is left untouched by callers.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load map %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Point is a traced point on one floor.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Pos returns the point as planar coordinates.
func (p Point) Pos() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Path is one traced polyline. Paths appended from walked traces are blue.
type Path struct {
	ID     int     `json:"id"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
}

// Connection is an undirected link between two points of the same floor.
type Connection struct {
	From     int     `json:"from"`
	To       int     `json:"to"`
	Distance float64 `json:"distance"`
}

// Floor holds everything traced on one floor. PointLabels is keyed by the
// decimal point id.
type Floor struct {
	Paths       []Path            `json:"paths"`
	Connections []Connection      `json:"connections"`
	PointLabels map[string]string `json:"point_labels"`
}

// Info describes the building.
type Info struct {
	Name       string            `json:"name"`
	Floors     []string          `json:"floors"`
	FloorNames map[string]string `json:"floor_names"`
}

// Transition is a persisted stairs or elevator link. Points are local ids
// on their floors.
type Transition struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	FromFloor  string  `json:"from_floor"`
	ToFloor    string  `json:"to_floor"`
	FromPoint  string  `json:"from_point"`
	ToPoint    string  `json:"to_point"`
	TravelTime float64 `json:"travel_time"`
}

// Resolve converts the persisted transition into node ids.
func (t Transition) Resolve() (model.FloorTransition, error) {
	from, err := strconv.Atoi(t.FromPoint)
	if err != nil {
		return model.FloorTransition{}, fmt.Errorf("transition %s: from_point %q: %w", t.ID, t.FromPoint, ErrMalformed)
	}
	to, err := strconv.Atoi(t.ToPoint)
	if err != nil {
		return model.FloorTransition{}, fmt.Errorf("transition %s: to_point %q: %w", t.ID, t.ToPoint, ErrMalformed)
	}
	kind := model.TransitionKind(t.Type)
	if kind == "" {
		kind = model.TransitionStairs
	}
	return model.FloorTransition{
		ID:     t.ID,
		Name:   t.Name,
		Kind:   kind,
		From:   model.ID(t.FromFloor, from),
		To:     model.ID(t.ToFloor, to),
		Weight: t.TravelTime,
	}, nil
}

// Building is the whole persisted map.
type Building struct {
	Info        Info              `json:"building_info"`
	Floors      map[string]*Floor `json:"floors"`
	Transitions []Transition      `json:"floor_transitions"`
}

type legacyDocument struct {
	Paths       []Path            `json:"paths"`
	Connections []Connection      `json:"connections"`
	PointLabels map[string]string `json:"point_labels"`
}

// Decode parses a map document in either the multi-floor or the legacy
// single-floor layout.
func Decode(r io.Reader) (*Building, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	_, hasFloors := probe["floors"]
	_, hasInfo := probe["building_info"]

	var b Building
	switch {
	case hasFloors && hasInfo:
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case probe["paths"] != nil:
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		b = Building{
			Info: Info{
				Name:       "Building",
				Floors:     []string{model.DefaultFloor},
				FloorNames: map[string]string{model.DefaultFloor: "Ground floor"},
			},
			Floors: map[string]*Floor{model.DefaultFloor: {
				Paths:       legacy.Paths,
				Connections: legacy.Connections,
				PointLabels: legacy.PointLabels,
			}},
		}
	default:
		return nil, fmt.Errorf("%w: neither floors nor paths present", ErrMalformed)
	}

	if err := b.normalize(); err != nil {
		return nil, err
	}
	return &b, nil
}

// normalize fills in empty collections and checks references that would
// otherwise surface much later as confusing routing results.
func (b *Building) normalize() error {
	if b.Floors == nil {
		b.Floors = map[string]*Floor{}
	}
	for id, f := range b.Floors {
		if f == nil {
			f = &Floor{}
			b.Floors[id] = f
		}
		if f.PointLabels == nil {
			f.PointLabels = map[string]string{}
		}
		seen := make(map[int]bool)
		for _, p := range f.Paths {
			for _, pt := range p.Points {
				if seen[pt.ID] {
					return fmt.Errorf("%w: floor %s: duplicate point id %d", ErrMalformed, id, pt.ID)
				}
				seen[pt.ID] = true
			}
		}
		for _, c := range f.Connections {
			if c.Distance < 0 {
				return fmt.Errorf("%w: floor %s: negative distance %d-%d", ErrMalformed, id, c.From, c.To)
			}
		}
	}
	for _, t := range b.Transitions {
		if t.TravelTime < 0 {
			return fmt.Errorf("%w: transition %s: negative travel time", ErrMalformed, t.ID)
		}
	}
	if b.Info.FloorNames == nil {
		b.Info.FloorNames = map[string]string{}
	}
	for _, id := range b.FloorIDs() {
		if !slices.Contains(b.Info.Floors, id) {
			b.Info.Floors = append(b.Info.Floors, id)
		}
	}
	return nil
}

// Load reads the map at path.
func Load(path string) (*Building, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return b, nil
}

// Encode writes the building in the multi-floor layout.
func (b *Building) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(b)
}

// Save writes the building to path through a temporary file in the same
// directory, so readers never see a partial map.
func (b *Building) Save(path string) error {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return fmt.Errorf("encode map: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".map-*.json")
	if err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	return nil
}

// FloorIDs lists floors in declared order followed by any undeclared ones,
// sorted.
func (b *Building) FloorIDs() []string {
	ids := make([]string, 0, len(b.Floors))
	for _, id := range b.Info.Floors {
		if _, ok := b.Floors[id]; ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	var extra []string
	for id := range b.Floors {
		if !slices.Contains(ids, id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

// FloorName returns the display name of a floor.
func (b *Building) FloorName(id string) string {
	if name := b.Info.FloorNames[id]; name != "" {
		return name
	}
	return "Floor " + id
}

// Floor returns the floor with the given id, creating it when missing.
func (b *Building) Floor(id string) *Floor {
	f, ok := b.Floors[id]
	if !ok {
		f = &Floor{PointLabels: map[string]string{}}
		b.Floors[id] = f
		if !slices.Contains(b.Info.Floors, id) {
			b.Info.Floors = append(b.Info.Floors, id)
		}
	}
	return f
}

// Waypoint looks up a node by id. Placeholder points are not waypoints.
func (b *Building) Waypoint(id model.NodeID) (model.Waypoint, bool) {
	f, ok := b.Floors[id.Floor]
	if !ok {
		return model.Waypoint{}, false
	}
	p, ok := f.Point(id.Local)
	if !ok || cluster.IsPlaceholder(p.Pos()) {
		return model.Waypoint{}, false
	}
	return model.Waypoint{ID: id, Pos: p.Pos(), Label: f.PointLabels[strconv.Itoa(p.ID)]}, true
}

// Waypoints lists every real point of a floor in file order.
func (b *Building) Waypoints(floor string) []model.Waypoint {
	f, ok := b.Floors[floor]
	if !ok {
		return nil
	}
	var out []model.Waypoint
	for _, p := range f.Points() {
		if cluster.IsPlaceholder(p.Pos()) {
			continue
		}
		out = append(out, model.Waypoint{
			ID:    model.ID(floor, p.ID),
			Pos:   p.Pos(),
			Label: f.PointLabels[strconv.Itoa(p.ID)],
		})
	}
	return out
}

// Points lists every point of the floor across its paths, placeholders
// included.
func (f *Floor) Points() []Point {
	var pts []Point
	for _, p := range f.Paths {
		pts = append(pts, p.Points...)
	}
	return pts
}

// Point finds a point by local id.
func (f *Floor) Point(id int) (Point, bool) {
	for _, p := range f.Paths {
		for _, pt := range p.Points {
			if pt.ID == id {
				return pt, true
			}
		}
	}
	return Point{}, false
}

// Existing returns the floor's points as clustering input, grouped by path.
func (f *Floor) Existing() []cluster.Point {
	var pts []cluster.Point
	for _, p := range f.Paths {
		for _, pt := range p.Points {
			pts = append(pts, cluster.Point{ID: pt.ID, Pos: pt.Pos(), Group: p.ID})
		}
	}
	return pts
}

// MaxPointID is the largest point id on the floor, 0 when empty.
func (f *Floor) MaxPointID() int {
	maxID := 0
	for _, p := range f.Points() {
		maxID = max(maxID, p.ID)
	}
	return maxID
}

func (f *Floor) maxPathID() int {
	maxID := 0
	for _, p := range f.Paths {
		maxID = max(maxID, p.ID)
	}
	return maxID
}
