// Package recognition drives a continuous speech-to-text engine and exposes
// its asynchronous, streaming output as a small observable state surface.
package recognition

import "errors"

// ErrAlreadyStarted is the synchronous failure an engine returns when a
// start request arrives while a session is still live.
var ErrAlreadyStarted = errors.New("recognition already started")

// ErrorCode is the fixed vocabulary carried by engine error events.
type ErrorCode string

const (
	CodeNotAllowed        ErrorCode = "not-allowed"
	CodeServiceNotAllowed ErrorCode = "service-not-allowed"
	CodeNoSpeech          ErrorCode = "no-speech"
	CodeAudioCapture      ErrorCode = "audio-capture"
	CodeNetwork           ErrorCode = "network"
)

// Alternative is one ranked hypothesis for a recognized entry.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Entry is a single recognized segment, either finalized or still revisable.
type Entry struct {
	Alternatives []Alternative
	IsFinal      bool
}

// Text returns the top-ranked alternative's transcript, or "" if none exists.
func (e Entry) Text() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0].Transcript
}

// Result is one result event. Index marks the first entry that changed since
// the previous event; Entries runs from that index to the end of the engine's
// result history. Earlier entries are never re-sent.
type Result struct {
	Index   int
	Entries []Entry
}

// Handlers receive a session's event feed. They are registered once, when the
// engine handle is constructed, and stay wired for the handle's whole
// lifetime. Engines deliver events one at a time, in order.
type Handlers struct {
	OnResult func(Result)
	OnEnd    func()
	OnError  func(ErrorCode)
}

// Config is captured when a handle is built or its language is updated.
// Changing it later affects the next start request, not a live session.
type Config struct {
	Language       string
	InterimResults bool
	Continuous     bool
}

// Engine is a single recognition handle. Start may fail synchronously on
// misuse (see ErrAlreadyStarted); everything else is reported through the
// handlers. Stop is graceful, letting in-flight results settle before the
// end event fires. Abort tears the session down immediately.
type Engine interface {
	SetLanguage(lang string)
	Start() error
	Stop()
	Abort()
}

// Provider answers the one-shot availability probe and builds engine handles.
// Available must report false, not panic, when the execution environment has
// no recognition capability.
type Provider interface {
	Available() bool
	NewEngine(cfg Config, h Handlers) Engine
}
