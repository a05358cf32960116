package recognition

import (
	"strings"
	"sync"
	"time"
)

// FakeProvider hands out scripted engine handles. With an empty script the
// engine is driven manually through the Emit methods; with a script, each
// start replays the utterances as progressive interim hypotheses followed by
// a final, then ends the session.
type FakeProvider struct {
	Unavailable bool
	Script      []string
	Delay       time.Duration

	mu      sync.Mutex
	engines []*FakeEngine
}

func (p *FakeProvider) Available() bool { return !p.Unavailable }

func (p *FakeProvider) NewEngine(cfg Config, h Handlers) Engine {
	e := &FakeEngine{cfg: cfg, handlers: h, script: p.Script, delay: p.Delay}
	p.mu.Lock()
	p.engines = append(p.engines, e)
	p.mu.Unlock()
	return e
}

// Engines returns every handle this provider has built so far.
func (p *FakeProvider) Engines() []*FakeEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*FakeEngine(nil), p.engines...)
}

// FakeEngine is a scripted recognition handle.
type FakeEngine struct {
	handlers Handlers
	script   []string
	delay    time.Duration

	// StartErr, when set, is returned by the next Start call.
	StartErr error

	mu       sync.Mutex
	cfg      Config
	active   bool
	starts   int
	stops    int
	aborts   int
	stopCh   chan struct{}
	cancelCh chan struct{}
}

func (e *FakeEngine) SetLanguage(lang string) {
	e.mu.Lock()
	e.cfg.Language = lang
	e.mu.Unlock()
}

func (e *FakeEngine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Language
}

func (e *FakeEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *FakeEngine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *FakeEngine) Aborts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborts
}

func (e *FakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	if e.active {
		return ErrAlreadyStarted
	}
	e.active = true
	e.starts++
	e.stopCh = make(chan struct{})
	e.cancelCh = make(chan struct{})
	if len(e.script) > 0 {
		go e.replay(e.stopCh, e.cancelCh)
	}
	return nil
}

func (e *FakeEngine) Stop() {
	e.mu.Lock()
	e.stops++
	stop := e.stopCh
	e.mu.Unlock()
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
}

func (e *FakeEngine) Abort() {
	e.mu.Lock()
	e.aborts++
	e.active = false
	cancel := e.cancelCh
	e.cancelCh = nil
	e.mu.Unlock()
	if cancel != nil {
		close(cancel)
	}
}

// EmitResult delivers a result event as if the engine produced it.
func (e *FakeEngine) EmitResult(res Result) {
	if e.handlers.OnResult != nil {
		e.handlers.OnResult(res)
	}
}

// EmitEnd delivers the session-terminating end event.
func (e *FakeEngine) EmitEnd() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
	if e.handlers.OnEnd != nil {
		e.handlers.OnEnd()
	}
}

// EmitError delivers an error event, which also terminates the session.
func (e *FakeEngine) EmitError(code ErrorCode) {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
	if e.handlers.OnError != nil {
		e.handlers.OnError(code)
	}
}

func (e *FakeEngine) replay(stop, cancel chan struct{}) {
	var history resultHistory
replay:
	for _, utterance := range e.script {
		words := strings.Fields(utterance)
		for i := 1; i < len(words); i++ {
			if done := e.pause(stop, cancel); done == pauseAborted {
				return
			} else if done == pauseStopped {
				break replay
			}
			if res, ok := history.apply(strings.Join(words[:i], " "), 0.9, false); ok {
				e.EmitResult(res)
			}
		}
		if done := e.pause(stop, cancel); done == pauseAborted {
			return
		} else if done == pauseStopped {
			break replay
		}
		if res, ok := history.apply(utterance, 0.98, true); ok {
			e.EmitResult(res)
		}
	}
	e.EmitEnd()
}

type pauseOutcome int

const (
	pauseElapsed pauseOutcome = iota
	pauseStopped
	pauseAborted
)

func (e *FakeEngine) pause(stop, cancel chan struct{}) pauseOutcome {
	select {
	case <-cancel:
		return pauseAborted
	case <-stop:
		return pauseStopped
	case <-time.After(e.delay):
		return pauseElapsed
	}
}
