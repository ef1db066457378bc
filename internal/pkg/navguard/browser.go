package navguard

import (
	"context"
	"sync"
)

// GenericUnloadMessage is the fixed text of the platform unload prompt.
const GenericUnloadMessage = "Changes you made may not be saved."

// History is a stack of visited paths with a cursor.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
	window  *EventTarget
}

func NewHistory(initial string, window *EventTarget) *History {
	return &History{entries: []string{initial}, window: window}
}

// PushState drops forward entries and appends path. It raises no event.
func (h *History) PushState(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
}

// ReplaceState overwrites the current entry.
func (h *History) ReplaceState(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = path
}

// Back moves the cursor one entry back and dispatches popstate. It reports
// false when there is nothing to go back to.
func (h *History) Back(ctx context.Context) (*Event, bool) {
	return h.step(ctx, -1)
}

// Forward moves the cursor one entry forward and dispatches popstate.
func (h *History) Forward(ctx context.Context) (*Event, bool) {
	return h.step(ctx, 1)
}

func (h *History) step(ctx context.Context, delta int) (*Event, bool) {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return nil, false
	}
	h.index = next
	path := h.entries[next]
	h.mu.Unlock()

	ev := NewEvent(ctx, EventPopState)
	ev.Path = path
	h.window.Dispatch(ev)
	return ev, true
}

// Path returns the path under the cursor.
func (h *History) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// NavigateFunc moves the router to path.
type NavigateFunc func(ctx context.Context, path string) error

// Middleware decorates a NavigateFunc.
type Middleware func(next NavigateFunc) NavigateFunc

// Router is the in-app navigation API. Push and Replace can be wrapped and
// later restored.
type Router struct {
	history *History

	mu      sync.Mutex
	path    string
	push    NavigateFunc
	replace NavigateFunc
}

func NewRouter(history *History) *Router {
	r := &Router{history: history, path: history.Path()}
	r.push = func(_ context.Context, path string) error {
		history.PushState(path)
		r.setPath(path)
		return nil
	}
	r.replace = func(_ context.Context, path string) error {
		history.ReplaceState(path)
		r.setPath(path)
		return nil
	}
	return r
}

// Push navigates to path, adding a history entry.
func (r *Router) Push(ctx context.Context, path string) error {
	r.mu.Lock()
	fn := r.push
	r.mu.Unlock()
	return fn(ctx, path)
}

// Replace navigates to path, overwriting the current history entry.
func (r *Router) Replace(ctx context.Context, path string) error {
	r.mu.Lock()
	fn := r.replace
	r.mu.Unlock()
	return fn(ctx, path)
}

// Path returns the path of the view being shown.
func (r *Router) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Router) setPath(path string) {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
}

// Wrap decorates Push and Replace with mw. restore puts back the functions
// that were installed when Wrap was called.
func (r *Router) Wrap(mw Middleware) (restore func()) {
	r.mu.Lock()
	origPush, origReplace := r.push, r.replace
	r.push = mw(origPush)
	r.replace = mw(origReplace)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.push, r.replace = origPush, origReplace
			r.mu.Unlock()
		})
	}
}

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// PrompterFunc adapts a func to Prompter.
type PrompterFunc func(ctx context.Context, message string) (bool, error)

func (f PrompterFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// Browser ties the window, document, history and router together and
// performs the default action of each navigation trigger.
type Browser struct {
	Window   *EventTarget
	Document *EventTarget
	History  *History
	Router   *Router

	// Platform answers the generic unload prompt.
	Platform Prompter
}

func NewBrowser(initialPath string, platform Prompter) *Browser {
	window := NewEventTarget()
	history := NewHistory(initialPath, window)
	return &Browser{
		Window:   window,
		Document: NewEventTarget(),
		History:  history,
		Router:   NewRouter(history),
		Platform: platform,
	}
}

// Click activates a link to href. It reports whether navigation happened.
func (b *Browser) Click(ctx context.Context, href string) (bool, error) {
	ev := NewEvent(ctx, EventClick)
	ev.Href = href
	if !b.Document.Dispatch(ev) || href == "" {
		return false, nil
	}
	b.History.PushState(href)
	b.Router.setPath(href)
	return true, nil
}

// Back moves back in history. The view follows unless a listener prevented
// the default action.
func (b *Browser) Back(ctx context.Context) bool {
	ev, ok := b.History.Back(ctx)
	if !ok || ev.DefaultPrevented() {
		return false
	}
	b.Router.setPath(ev.Path)
	return true
}

// Unload closes or reloads the page. When a listener prevented the default
// action the platform prompt is shown with its generic text.
func (b *Browser) Unload(ctx context.Context) (bool, error) {
	ev := NewEvent(ctx, EventBeforeUnload)
	if b.Window.Dispatch(ev) {
		return true, nil
	}
	if b.Platform == nil {
		return false, nil
	}
	return b.Platform.Confirm(ctx, GenericUnloadMessage)
}
