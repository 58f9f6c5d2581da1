package host

import (
	"context"
	"slices"
	"sync"
)

// Verify FakeHost satisfies Starter and Source at compile time.
var (
	_ Starter = (*FakeHost)(nil)
	_ Source  = (*FakeHost)(nil)
)

// FakeHost is a test double that records Start calls and lets the caller
// emit events by hand. Events are delivered synchronously to subscribers.
type FakeHost struct {
	// StartFunc, if set, decides the result of each Start call.
	StartFunc func(argv []string) error

	mu    sync.Mutex
	calls [][]string
	subs  subscribers
}

// Start records argv and returns StartFunc's result, or nil.
func (f *FakeHost) Start(_ context.Context, argv []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(argv))
	fn := f.StartFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(argv)
	}
	return nil
}

// Calls returns a copy of every argv passed to Start, in order.
func (f *FakeHost) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = slices.Clone(c)
	}
	return out
}

// Subscribe registers h for events on stream.
func (f *FakeHost) Subscribe(stream Stream, h Handler) func() {
	return f.subs.subscribe(stream, h)
}

// Subscribers returns the number of live subscriptions on stream.
func (f *FakeHost) Subscribers(stream Stream) int {
	return f.subs.count(stream)
}

// Stdout emits a stdout line.
func (f *FakeHost) Stdout(line string) {
	f.subs.publish(Event{Stream: StreamStdout, Line: line})
}

// Stderr emits a stderr line.
func (f *FakeHost) Stderr(line string) {
	f.subs.publish(Event{Stream: StreamStderr, Line: line})
}

// Terminate emits a terminated event with the given exit code.
func (f *FakeHost) Terminate(code int) {
	f.subs.publish(Event{Stream: StreamTerminated, ExitCode: code})
}
