package recognition

import (
	"sync"

	"vask/log"
)

// State is the published session snapshot. Err is "" while no error is set.
type State struct {
	Supported  bool
	Listening  bool
	Transcript string
	Interim    string
	Err        string
}

// Controller owns a single engine handle and keeps the observable state
// surface in sync with the engine's event feed. The handle is built lazily on
// the first Start, reused across start/stop cycles, and destroyed only by
// Close. All operations return without blocking; transitions show up later
// through State and Updates.
type Controller struct {
	provider  Provider
	supported bool

	mu        sync.Mutex
	engine    Engine
	language  string
	listening bool
	buffer    string // finalized text accumulated since the last Reset
	interim   string
	errMsg    string
	closed    bool

	updates chan State
}

// NewController probes the provider once and wires an empty state surface.
// A nil or unavailable provider yields a controller with Supported=false;
// Start on it declines with an explanatory error instead of panicking.
func NewController(p Provider, language string) *Controller {
	c := &Controller{
		provider: p,
		language: language,
		updates:  make(chan State, 16),
	}
	c.supported = p != nil && p.Available()
	return c
}

// SetLanguage changes the language used by the next Start. A live session
// keeps the language it was started with.
func (c *Controller) SetLanguage(lang string) {
	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Updates streams snapshots as they change. The channel conflates: when the
// consumer lags, stale snapshots are dropped so the latest one always lands.
// It is closed by Close.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// Start requests a new recognition session. If no engine handle exists one is
// built with the current language; an existing handle is reconfigured and
// reused, never duplicated. Transcript, interim text, and any previous error
// are cleared before the start request is issued. A synchronous start failure
// is caught here and surfaced through the error slot, never raised.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.supported || c.closed {
		c.errMsg = unsupportedMessage
		c.publishLocked()
		return
	}

	if c.engine == nil {
		c.engine = c.provider.NewEngine(Config{
			Language:       c.language,
			InterimResults: true,
			Continuous:     false,
		}, Handlers{
			OnResult: c.onResult,
			OnEnd:    c.onEnd,
			OnError:  c.onError,
		})
	} else {
		c.engine.SetLanguage(c.language)
	}

	c.buffer = ""
	c.interim = ""
	c.errMsg = ""

	if err := c.engine.Start(); err != nil {
		log.Warnf("engine start: %v", err)
		c.errMsg = startFailedMessage
		c.listening = false
	} else {
		c.listening = true
	}
	c.publishLocked()
}

// Stop requests graceful termination. Listening stays true until the engine's
// end or error event arrives, so results still in flight are not discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine != nil {
		engine.Stop()
	}
}

// Reset clears the transcript, interim text, and error. The engine handle and
// the listening flag are untouched.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.buffer = ""
	c.interim = ""
	c.errMsg = ""
	c.publishLocked()
	c.mu.Unlock()
}

// Close aborts any live session, drops the engine handle, and closes the
// updates channel. Safe to call with no handle present, or repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	engine := c.engine
	c.engine = nil
	c.listening = false
	close(c.updates)
	c.mu.Unlock()

	if engine != nil {
		engine.Abort()
	}
}

// onResult applies one result event. Only the entries from the event's change
// index onward arrive here; earlier entries are already reflected in the
// buffer, so finalized text is never double-counted. The interim snapshot
// wholesale-replaces the previous one, even when empty.
func (c *Controller) onResult(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var finalDelta, interimSnapshot string
	for _, entry := range res.Entries {
		if entry.IsFinal {
			finalDelta += entry.Text()
		} else {
			interimSnapshot += entry.Text()
		}
	}
	if finalDelta != "" {
		c.buffer += finalDelta
	}
	c.interim = interimSnapshot
	c.publishLocked()
}

func (c *Controller) onEnd() {
	c.mu.Lock()
	c.listening = false
	c.interim = ""
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller) onError(code ErrorCode) {
	c.mu.Lock()
	c.errMsg = Translate(code)
	c.listening = false
	c.interim = ""
	c.publishLocked()
	c.mu.Unlock()
	log.Warnf("engine error: %s", code)
}

func (c *Controller) snapshotLocked() State {
	return State{
		Supported:  c.supported,
		Listening:  c.listening,
		Transcript: c.buffer,
		Interim:    c.interim,
		Err:        c.errMsg,
	}
}

// publishLocked sends the current snapshot without blocking. When the channel
// is full the oldest pending snapshot is discarded to make room.
func (c *Controller) publishLocked() {
	if c.closed {
		return
	}
	snap := c.snapshotLocked()
	for {
		select {
		case c.updates <- snap:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}
