// Package channel owns the subscriptions to a host's event streams and
// funnels them into a single ordered channel for the event loop.
package channel

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/condatools/internal/host"
)

// defaultBuffer is the event channel capacity used when none is given.
const defaultBuffer = 256

// Sentinel errors for lifecycle misuse.
var (
	ErrAlreadyAttached = errors.New("channel: adapter already attached")
	ErrClosed          = errors.New("channel: adapter closed")
)

// Adapter subscribes once to the stdout, stderr and terminated streams of a
// host.Source and forwards every event, in arrival order, to Events.
//
// Lifecycle: Attach once at startup, Close once at shutdown. After Close no
// further events are delivered.
type Adapter struct {
	events chan host.Event
	done   chan struct{}

	mu       sync.Mutex
	attached bool
	unsubs   []func()
	close    sync.Once
}

// NewAdapter creates an Adapter with the given event buffer size.
// A non-positive buffer uses the default.
func NewAdapter(buffer int) *Adapter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Adapter{
		events: make(chan host.Event, buffer),
		done:   make(chan struct{}),
	}
}

// Attach subscribes to all three streams of src and stores the handles.
func (a *Adapter) Attach(src host.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	if a.attached {
		return ErrAlreadyAttached
	}
	for _, s := range host.Streams() {
		a.unsubs = append(a.unsubs, src.Subscribe(s, a.forward))
	}
	a.attached = true
	return nil
}

// forward enqueues ev, blocking while the buffer is full. It gives up once
// the adapter is closed so a stalled consumer cannot wedge the host.
func (a *Adapter) forward(ev host.Event) {
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// Events returns the ordered stream of inbound events.
// The channel is never closed; select on Done to observe shutdown.
func (a *Adapter) Events() <-chan host.Event {
	return a.events
}

// Done is closed when the adapter is closed.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Close releases every subscription exactly once. Safe to call repeatedly.
func (a *Adapter) Close() {
	a.close.Do(func() {
		close(a.done)
		a.mu.Lock()
		unsubs := a.unsubs
		a.unsubs = nil
		a.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
	})
}

// EventMsg carries one host event into a Bubble Tea update loop.
type EventMsg struct {
	Event host.Event
}

// ClosedMsg signals that the adapter has been closed.
type ClosedMsg struct{}

// WaitEvent returns a tea.Cmd that blocks for the next event. The model
// must issue WaitEvent again after handling each EventMsg.
func (a *Adapter) WaitEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-a.events:
			return EventMsg{Event: ev}
		case <-a.done:
			return ClosedMsg{}
		}
	}
}
