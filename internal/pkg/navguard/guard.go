package navguard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrAlreadyArmed = errors.New("navigation guard is already armed")
	ErrGuardClosed  = errors.New("navigation guard is closed")
)

type State int

const (
	StateIdle State = iota
	StateArmed
)

func (s State) String() string {
	if s == StateArmed {
		return "armed"
	}
	return "idle"
}

var leaveMessages = map[string]string{
	"es": "¿Salir sin guardar los cambios?",
	"en": "Leave without saving changes?",
}

// LeaveMessage returns the localized confirmation text. Unknown locales get
// Spanish.
func LeaveMessage(locale string) string {
	if msg, ok := leaveMessages[locale]; ok {
		return msg
	}
	return leaveMessages["es"]
}

type Option func(*Guard)

func WithLocale(locale string) Option {
	return func(g *Guard) { g.message = LeaveMessage(locale) }
}

func WithLogger(log *slog.Logger) Option {
	return func(g *Guard) { g.log = log }
}

// Guard asks for confirmation before any navigation while armed. At most one
// Intercept is active at a time.
type Guard struct {
	browser  *Browser
	prompter Prompter
	message  string
	log      *slog.Logger

	mu        sync.Mutex
	intercept *Intercept
	closed    bool
}

func New(browser *Browser, prompter Prompter, opts ...Option) *Guard {
	g := &Guard{
		browser:  browser,
		prompter: prompter,
		message:  LeaveMessage("es"),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Sync arms the guard when unsaved is true and releases it otherwise.
func (g *Guard) Sync(unsaved bool) error {
	g.mu.Lock()
	active := g.intercept
	g.mu.Unlock()

	switch {
	case unsaved && active == nil:
		_, err := g.Arm()
		if errors.Is(err, ErrAlreadyArmed) {
			return nil
		}
		return err
	case !unsaved && active != nil:
		active.Release()
	}
	return nil
}

// Arm attaches every intercept and returns the handle that detaches them.
func (g *Guard) Arm() (*Intercept, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGuardClosed
	}
	if g.intercept != nil {
		return nil, ErrAlreadyArmed
	}

	b := g.browser
	in := &Intercept{guard: g}
	in.detach = []func(){
		b.Window.AddListener(EventBeforeUnload, PhaseBubble, func(ev *Event) {
			ev.PreventDefault()
		}),
		b.Document.AddListener(EventClick, PhaseCapture, func(ev *Event) {
			if ev.Href == "" {
				return
			}
			if !g.confirm(ev.Context()) {
				ev.PreventDefault()
				ev.StopImmediatePropagation()
			}
		}),
		b.Window.AddListener(EventPopState, PhaseBubble, func(ev *Event) {
			if !g.confirm(ev.Context()) {
				b.History.PushState(b.Router.Path())
				ev.PreventDefault()
			}
		}),
		b.Router.Wrap(func(next NavigateFunc) NavigateFunc {
			return func(ctx context.Context, path string) error {
				if !g.confirm(ctx) {
					return nil
				}
				return next(ctx, path)
			}
		}),
	}

	g.intercept = in
	g.log.Debug("Navigation guard armed")
	return in, nil
}

// State reports whether an intercept is active.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intercept != nil {
		return StateArmed
	}
	return StateIdle
}

// Close releases any active intercept and refuses further arming.
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	active := g.intercept
	g.mu.Unlock()

	if active != nil {
		active.Release()
	}
}

// confirm treats a failed prompt as a decline.
func (g *Guard) confirm(ctx context.Context) bool {
	ok, err := g.prompter.Confirm(ctx, g.message)
	if err != nil {
		g.log.Warn("Navigation prompt failed", slog.Any("error", err))
		return false
	}
	return ok
}

// Intercept is an armed guard's set of listeners and router wrappers.
type Intercept struct {
	guard  *Guard
	detach []func()
	once   sync.Once
}

// Release detaches every listener and restores the router. Safe to call
// more than once.
func (in *Intercept) Release() {
	in.once.Do(func() {
		for i := len(in.detach) - 1; i >= 0; i-- {
			in.detach[i]()
		}

		g := in.guard
		g.mu.Lock()
		if g.intercept == in {
			g.intercept = nil
		}
		g.mu.Unlock()
		g.log.Debug("Navigation guard released")
	})
}
