// Package feedback keeps the append-only log of route feedback given after
// non-compliant arrivals.
package feedback

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ritzau/wayfinder/pkg/model"
)

// TimeLayout is the timestamp format of the log.
const TimeLayout = "2006-01-02 15:04:05"

// Reason classifies why an agent left the suggested route.
type Reason string

const (
	ReasonCrowded     Reason = "crowded"
	ReasonShorter     Reason = "shorter"
	ReasonBlocked     Reason = "blocked"
	ReasonNonexistent Reason = "nonexistent"
	ReasonOther       Reason = "other"
	// ReasonExploring counts as compliant and is never logged.
	ReasonExploring Reason = "exploring"
)

// Reasons lists every accepted reason.
var Reasons = []Reason{ReasonCrowded, ReasonShorter, ReasonBlocked, ReasonNonexistent, ReasonOther, ReasonExploring}

// ErrInvalidReason is returned for a reason outside Reasons.
var ErrInvalidReason = errors.New("invalid reason")

// ParseReason validates a reason name.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !slices.Contains(Reasons, r) {
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
	}
	return r, nil
}

// Record is one feedback entry.
type Record struct {
	Timestamp      string         `json:"timestamp"`
	SuggestedRoute []model.NodeID `json:"suggested_route"`
	VisitedNodes   []model.NodeID `json:"visited_nodes"`
	Deviated       bool           `json:"deviated"`
	Reason         Reason         `json:"reason"`
	Notes          string         `json:"notes"`
	PathLength     int            `json:"path_length"`
}

// Log is a JSON array file that only ever grows.
type Log struct {
	path string
	mu   sync.Mutex

	// Now stamps new records; tests replace it.
	Now func() time.Time
}

// NewLog opens the log at path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{path: path, Now: time.Now}
}

// Path returns the file backing the log.
func (l *Log) Path() string {
	return l.path
}

// Append stamps rec when it has no timestamp and adds it to the log.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	if rec.Timestamp == "" {
		rec.Timestamp = l.Now().Format(TimeLayout)
	}
	records = append(records, rec)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".feedback-*.json")
	if err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write feedback: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	return os.Rename(tmp.Name(), l.path)
}

// Load returns every record. A missing file is an empty log.
func (l *Log) Load() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *Log) load() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("read feedback %s: %w", l.path, err)
	}
	return records, nil
}

// ReasonCount is one bar of the reason histogram.
type ReasonCount struct {
	Reason Reason `json:"reason"`
	Count  int    `json:"count"`
}

// Stats summarises a log.
type Stats struct {
	Total           int           `json:"total"`
	Deviated        int           `json:"deviated"`
	DeviatedPercent int           `json:"deviated_percent"`
	Reasons         []ReasonCount `json:"reasons"`
}

// Summarize computes statistics over records. Records without a reason
// count as "unknown"; the histogram is ordered by count, then name.
func Summarize(records []Record) Stats {
	s := Stats{Total: len(records)}
	counts := make(map[Reason]int)
	for _, r := range records {
		if r.Deviated {
			s.Deviated++
		}
		reason := r.Reason
		if reason == "" {
			reason = "unknown"
		}
		counts[reason]++
	}
	if s.Total > 0 {
		s.DeviatedPercent = s.Deviated * 100 / s.Total
	}
	for reason, n := range counts {
		s.Reasons = append(s.Reasons, ReasonCount{Reason: reason, Count: n})
	}
	slices.SortFunc(s.Reasons, func(a, b ReasonCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return s
}
