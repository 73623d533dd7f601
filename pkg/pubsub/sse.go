package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/wayfinder/pkg/logging"
)

// ErrClosed is returned once the publisher has shut down.
var ErrClosed = errors.New("publisher is closed")

// subscriberQueue bounds how far a slow client may fall behind. A walking
// user produces a few events per second.
const subscriberQueue = 64

// TopicConfig sets how much history a topic keeps for late subscribers.
type TopicConfig struct {
	BufferSize int  // events kept; 0 keeps none
	ReplayAll  bool // replay the whole history instead of only the newest event
}

type topicState struct {
	cfg     TopicConfig
	version int
	history []Event
	subs    map[*sseSubscription]struct{}
}

func (t *topicState) remember(ev Event) {
	if t.cfg.BufferSize <= 0 {
		return
	}
	t.history = append(t.history, ev)
	if over := len(t.history) - t.cfg.BufferSize; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
}

func (t *topicState) replay() []Event {
	if len(t.history) == 0 {
		return nil
	}
	if t.cfg.ReplayAll {
		return t.history
	}
	return t.history[len(t.history)-1:]
}

// SSEPublisher fans events out to server-sent event streams.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state for name, creating it on first use. Callers hold mu.
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the replay policy of a topic. Existing history is
// trimmed to the new size.
func (p *SSEPublisher) ConfigureTopic(name string, cfg TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.topic(name)
	t.cfg = cfg
	if cfg.BufferSize <= 0 {
		t.history = nil
	} else if over := len(t.history) - cfg.BufferSize; over > 0 {
		t.history = t.history[over:]
	}
}

// Subscribers counts the live subscriptions on a topic.
func (p *SSEPublisher) Subscribers(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// Subscribe opens a stream on a topic. The replayed history is queued before
// the subscription becomes visible to Publish, so ordering by version holds.
// Cancelling ctx closes the subscription.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	t := p.topic(name)
	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberQueue),
		publisher: p,
	}
	backlog := t.replay()
	if over := len(backlog) - subscriberQueue; over > 0 {
		backlog = backlog[over:]
	}
	for _, ev := range backlog {
		sub.events <- ev
	}
	t.subs[sub] = struct{}{}
	p.mu.Unlock()

	if len(backlog) > 0 {
		logging.Trace("replayed history", "topic", name, "count", len(backlog))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Publish stamps data with the topic's next version and delivers it. A
// subscriber whose queue is full misses the event rather than stalling the
// navigator.
func (p *SSEPublisher) Publish(name, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s event: %w", name, eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	ev := Event{Topic: name, Type: eventType, Data: payload, Version: t.version}
	t.remember(ev)

	for sub := range t.subs {
		select {
		case sub.events <- ev:
		default:
			logging.Warn("dropping event for slow subscriber", "topic", name, "type", eventType, "version", ev.Version)
		}
	}
	return nil
}

// Close ends every open stream. Further calls are no-ops.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string { return s.topic }

func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.unsubscribe(s) })
	return nil
}

// WriteSSE writes ev as a single "data:" frame.
func WriteSSE(w io.Writer, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", frame)
	return err
}
