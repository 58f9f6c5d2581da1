// Package host runs the backend process and publishes its output as
// line-oriented events on three streams: stdout, stderr and terminated.
package host

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Stream names one of the three event streams a host publishes.
type Stream string

const (
	StreamStdout     Stream = "stdout"
	StreamStderr     Stream = "stderr"
	StreamTerminated Stream = "terminated"
)

// Streams returns the three streams in subscription order.
func Streams() []Stream {
	return []Stream{StreamStdout, StreamStderr, StreamTerminated}
}

// Event is one inbound event from the backend process.
type Event struct {
	Stream   Stream
	Line     string // Output line for stdout and stderr.
	ExitCode int    // Exit code for terminated; -1 when unknown.
}

// Handler receives events for a single stream. Events of one stream are
// delivered sequentially in the order the process produced them.
type Handler func(Event)

// Source publishes backend events to subscribers.
type Source interface {
	Subscribe(stream Stream, h Handler) (unsubscribe func())
}

// Starter invokes the backend with an argument vector whose first element
// is the command tag. Start returns once the process is running; completion
// is observed only through events.
type Starter interface {
	Start(ctx context.Context, argv []string) error
}

// StartError indicates the backend process could not be started at all.
// No terminated event follows a StartError.
type StartError struct {
	Argv []string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("host: starting %q: %s", strings.Join(e.Argv, " "), e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// subscribers is a per-stream handler registry shared by host implementations.
type subscribers struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Stream]map[int]Handler
}

func (s *subscribers) subscribe(stream Stream, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[Stream]map[int]Handler)
	}
	if s.handlers[stream] == nil {
		s.handlers[stream] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[stream][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers[stream], id)
		})
	}
}

// publish delivers ev to every handler of its stream in subscription order.
// Handlers run outside the lock so they may unsubscribe.
func (s *subscribers) publish(ev Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.handlers[ev.Stream]))
	for id := range s.handlers[ev.Stream] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[ev.Stream][id])
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func (s *subscribers) count(stream Stream) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[stream])
}
