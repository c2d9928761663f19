// Package speech adapts an external speech-to-text capability to the chat client.
//
// The recognizer is a small state machine (unavailable, idle, listening). Transcripts and
// failures are delivered through callbacks registered with OnResult and OnError.
package speech

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnsupported means no speech engine is available on this machine.
	ErrUnsupported = errors.New("speech recognition is not supported")
	// ErrPermissionDenied means the engine could not open the microphone.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrBusy is returned by Start while a capture is already running.
	ErrBusy = errors.New("already listening")
)

type State int

const (
	StateUnavailable State = iota
	StateIdle
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	default:
		return "unavailable"
	}
}

// Engine captures one utterance and returns its transcript.
type Engine interface {
	Available() bool
	Listen(ctx context.Context) (string, error)
}

// Recognizer serializes captures on an Engine.
type Recognizer struct {
	mu       sync.Mutex
	engine   Engine
	state    State
	gen      uint64
	cancel   context.CancelFunc
	onResult func(string)
	onError  func(error)
}

// NewRecognizer wraps engine. A nil or unavailable engine yields a permanently unavailable recognizer.
func NewRecognizer(engine Engine) *Recognizer {
	r := &Recognizer{engine: engine, state: StateUnavailable}
	if engine != nil && engine.Available() {
		r.state = StateIdle
	}
	return r
}

func (r *Recognizer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recognizer) OnResult(fn func(string)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

func (r *Recognizer) OnError(fn func(error)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

// Start begins a capture in the background. The result or error callback fires once it ends,
// unless Stop cancelled it first.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateUnavailable:
		r.mu.Unlock()
		return ErrUnsupported
	case StateListening:
		r.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	r.gen++
	gen := r.gen
	r.state = StateListening
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		text, err := r.engine.Listen(ctx)

		r.mu.Lock()
		// a Stop or a newer Start owns the state now
		stopped := r.gen != gen
		if !stopped {
			r.state = StateIdle
			r.cancel = nil
		}
		onResult, onError := r.onResult, r.onError
		r.mu.Unlock()

		switch {
		case stopped:
		case err != nil:
			if onError != nil {
				onError(err)
			}
		default:
			if onResult != nil {
				onResult(text)
			}
		}
	}()
	return nil
}

// Stop abandons the running capture, if any.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateListening {
		return
	}
	r.gen++
	r.state = StateIdle
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
