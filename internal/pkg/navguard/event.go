// Package navguard models page navigation (link clicks, history movement,
// programmatic routing and unload) and guards it while edits are unsaved.
package navguard

import (
	"context"
	"sync"
)

type EventType string

const (
	EventClick        EventType = "click"
	EventPopState     EventType = "popstate"
	EventBeforeUnload EventType = "beforeunload"
)

// Phase selects when a listener runs. Capture listeners run before bubble
// listeners.
type Phase int

const (
	PhaseCapture Phase = iota
	PhaseBubble
)

// Event is dispatched to listeners of an EventTarget.
type Event struct {
	Type EventType
	// Href is the link target of a click. Empty when the click did not land
	// on a link.
	Href string
	// Path is the history path reached by a popstate.
	Path string

	ctx              context.Context
	defaultPrevented bool
	stopped          bool
}

func NewEvent(ctx context.Context, typ EventType) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Event{Type: typ, ctx: ctx}
}

// Context returns the context of the action that raised the event.
func (e *Event) Context() context.Context {
	return e.ctx
}

// PreventDefault cancels the default action of the event.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopImmediatePropagation keeps every remaining listener from seeing the
// event.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
}

type Listener func(*Event)

type registration struct {
	phase Phase
	fn    Listener
}

// EventTarget holds listeners by event type.
type EventTarget struct {
	mu        sync.Mutex
	listeners map[EventType][]*registration
}

func NewEventTarget() *EventTarget {
	return &EventTarget{listeners: make(map[EventType][]*registration)}
}

// AddListener registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (t *EventTarget) AddListener(typ EventType, phase Phase, fn Listener) (remove func()) {
	reg := &registration{phase: phase, fn: fn}

	t.mu.Lock()
	t.listeners[typ] = append(t.listeners[typ], reg)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			regs := t.listeners[typ]
			for i, r := range regs {
				if r == reg {
					t.listeners[typ] = append(regs[:i:i], regs[i+1:]...)
					break
				}
			}
			if len(t.listeners[typ]) == 0 {
				delete(t.listeners, typ)
			}
		})
	}
}

// Dispatch runs capture listeners, then bubble listeners, each group in
// registration order, until one stops propagation. It reports whether the
// default action should run.
func (t *EventTarget) Dispatch(ev *Event) bool {
	t.mu.Lock()
	regs := append([]*registration(nil), t.listeners[ev.Type]...)
	t.mu.Unlock()

	for _, phase := range []Phase{PhaseCapture, PhaseBubble} {
		for _, r := range regs {
			if r.phase != phase {
				continue
			}
			r.fn(ev)
			if ev.stopped {
				return !ev.defaultPrevented
			}
		}
	}
	return !ev.defaultPrevented
}

// ListenerCount returns how many listeners are registered for typ.
func (t *EventTarget) ListenerCount(typ EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}
