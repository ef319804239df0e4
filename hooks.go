package flagkit

import "sync"

// Hooks lets a host subscribe to lifecycle events raised by the
// Configuration Service and the evaluator. Every subscriber list is
// invoked in registration order; a panicking subscriber is recovered and
// reported through OnError instead of taking down the caller.
type Hooks struct {
	mu              sync.Mutex
	onClientReady   []func()
	onConfigChanged []func(map[string]interface{})
	onError         []func(error)
	onFlagEvaluated []func(EvaluationDetails)
}

// NewHooks returns an empty Hooks ready to have subscribers added.
func NewHooks() *Hooks {
	return &Hooks{}
}

// OnClientReady registers f to run once, the first time the client
// becomes ready (first successful fetch, first confirmed-fresh cache
// read, auto-poll init-wait expiry, or construction of a client that is
// offline or not in AutoPoll mode).
func (h *Hooks) OnClientReady(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClientReady = append(h.onClientReady, f)
}

// OnConfigChanged registers f to run whenever a newly fetched or
// newly-read-from-cache config entry differs from the previously known
// one.
func (h *Hooks) OnConfigChanged(f func(flags map[string]interface{})) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConfigChanged = append(h.onConfigChanged, f)
}

// OnError registers f to run whenever the client logs an error-level
// event, including fetch and cache failures.
func (h *Hooks) OnError(f func(err error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, f)
}

// OnFlagEvaluated registers f to run after every successful call to one
// of the client's GetXValue/GetXValueDetails methods.
func (h *Hooks) OnFlagEvaluated(f func(details EvaluationDetails)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFlagEvaluated = append(h.onFlagEvaluated, f)
}

func (h *Hooks) fireReady() {
	h.mu.Lock()
	subs := append([]func(){}, h.onClientReady...)
	h.mu.Unlock()
	for _, f := range subs {
		invokeSafely(func() { f() }, h)
	}
}

func (h *Hooks) fireConfigChanged(flags map[string]interface{}) {
	h.mu.Lock()
	subs := append([]func(map[string]interface{}){}, h.onConfigChanged...)
	h.mu.Unlock()
	for _, f := range subs {
		f := f
		invokeSafely(func() { f(flags) }, h)
	}
}

func (h *Hooks) fireError(err error) {
	h.mu.Lock()
	subs := append([]func(error){}, h.onError...)
	h.mu.Unlock()
	for _, f := range subs {
		f := f
		invokeSafely(func() { f(err) }, h)
	}
}

func (h *Hooks) fireFlagEvaluated(details EvaluationDetails) {
	h.mu.Lock()
	subs := append([]func(EvaluationDetails){}, h.onFlagEvaluated...)
	h.mu.Unlock()
	for _, f := range subs {
		f := f
		invokeSafely(func() { f(details) }, h)
	}
}

// invokeSafely runs f, recovering a panic and reporting it through
// OnError rather than letting it propagate into the caller's goroutine.
func invokeSafely(f func(), h *Hooks) {
	defer func() {
		if r := recover(); r != nil {
			h.mu.Lock()
			subs := append([]func(error){}, h.onError...)
			h.mu.Unlock()
			for _, onErr := range subs {
				func() {
					defer func() { recover() }()
					onErr(&hookPanicError{value: r})
				}()
			}
		}
	}()
	f()
}

type hookPanicError struct {
	value interface{}
}

func (e *hookPanicError) Error() string {
	return "flagkit: hook callback panicked"
}
