package recognition

import (
	"testing"
	"time"
)

func interimEntry(text string) Entry {
	return Entry{Alternatives: []Alternative{{Transcript: text, Confidence: 0.9}}}
}

func finalEntry(text string) Entry {
	return Entry{Alternatives: []Alternative{{Transcript: text, Confidence: 0.98}}, IsFinal: true}
}

func startController(t *testing.T) (*Controller, *FakeEngine, *FakeProvider) {
	t.Helper()
	p := &FakeProvider{}
	c := NewController(p, "en")
	c.Start()
	engines := p.Engines()
	if len(engines) != 1 {
		t.Fatalf("expected 1 engine after Start, got %d", len(engines))
	}
	if !c.State().Listening {
		t.Fatal("expected Listening after Start")
	}
	return c, engines[0], p
}

func TestStartPublishesListening(t *testing.T) {
	c, _, _ := startController(t)
	defer c.Close()

	s := c.State()
	if !s.Supported {
		t.Error("Supported should be true")
	}
	if s.Err != "" {
		t.Errorf("Err should be empty, got %q", s.Err)
	}
	if s.Transcript != "" || s.Interim != "" {
		t.Errorf("fresh session should have empty text, got %q / %q", s.Transcript, s.Interim)
	}
}

func TestMonotonicTranscript(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("hello ")}})
	e.EmitResult(Result{Index: 1, Entries: []Entry{finalEntry("world")}})

	if got := c.State().Transcript; got != "hello world" {
		t.Errorf("Transcript = %q, want %q", got, "hello world")
	}
}

func TestFinalizedTextNeverDuplicated(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	// An entry finalizes, then a later event carries a new entry at the
	// next index alongside nothing earlier: the settled prefix must not be
	// counted twice.
	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("one "), interimEntry("tw")}})
	e.EmitResult(Result{Index: 1, Entries: []Entry{finalEntry("two")}})

	s := c.State()
	if s.Transcript != "one two" {
		t.Errorf("Transcript = %q, want %q", s.Transcript, "one two")
	}
	if s.Interim != "" {
		t.Errorf("Interim = %q, want empty after finalization", s.Interim)
	}
}

func TestInterimReplaceLaw(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{interimEntry("Tik")}})
	if got := c.State().Interim; got != "Tik" {
		t.Fatalf("Interim = %q, want %q", got, "Tik")
	}

	e.EmitResult(Result{Index: 0, Entries: []Entry{interimEntry("TikTok")}})
	s := c.State()
	if s.Interim != "TikTok" {
		t.Errorf("Interim = %q, want %q (replaced, not merged)", s.Interim, "TikTok")
	}
	if s.Transcript != "" {
		t.Errorf("Transcript = %q, want empty while everything is interim", s.Transcript)
	}
}

func TestEndPreservesTranscriptClearsInterim(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("hello ")}})
	e.EmitResult(Result{Index: 1, Entries: []Entry{interimEntry("wor")}})
	e.EmitEnd()

	s := c.State()
	if s.Listening {
		t.Error("Listening should be false after end event")
	}
	if s.Interim != "" {
		t.Errorf("Interim = %q, want empty after end", s.Interim)
	}
	if s.Transcript != "hello " {
		t.Errorf("Transcript = %q, want %q unchanged", s.Transcript, "hello ")
	}
}

func TestErrorEventSetsTranslatedMessage(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("kept")}})
	e.EmitError(CodeNetwork)

	s := c.State()
	if s.Listening {
		t.Error("Listening should be false after error event")
	}
	if s.Err != networkMessage {
		t.Errorf("Err = %q, want %q", s.Err, networkMessage)
	}
	if s.Interim != "" {
		t.Errorf("Interim = %q, want empty after error", s.Interim)
	}
	if s.Transcript != "kept" {
		t.Errorf("Transcript = %q, want preserved", s.Transcript)
	}
}

func TestSingleHandleIdempotence(t *testing.T) {
	c, e, p := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("old question")}})
	e.EmitError(CodeNoSpeech)

	c.SetLanguage("fr")
	c.Start()

	if n := len(p.Engines()); n != 1 {
		t.Fatalf("second Start built a new engine: %d handles", n)
	}
	if got := e.Starts(); got != 2 {
		t.Errorf("engine starts = %d, want 2", got)
	}
	if got := e.Language(); got != "fr" {
		t.Errorf("engine language = %q, want %q", got, "fr")
	}

	s := c.State()
	if s.Transcript != "" || s.Err != "" {
		t.Errorf("second Start should reset transcript and error, got %q / %q", s.Transcript, s.Err)
	}
	if !s.Listening {
		t.Error("Listening should be true after restart")
	}
}

func TestStartWhileListeningIsCaught(t *testing.T) {
	c, e, p := startController(t)
	defer c.Close()

	c.Start() // engine is still live: synchronous ErrAlreadyStarted

	if n := len(p.Engines()); n != 1 {
		t.Fatalf("start during session built a new engine: %d handles", n)
	}
	if got := e.Starts(); got != 1 {
		t.Errorf("engine starts = %d, want 1", got)
	}
	s := c.State()
	if s.Err != startFailedMessage {
		t.Errorf("Err = %q, want %q", s.Err, startFailedMessage)
	}
	if s.Listening {
		t.Error("Listening should be false after a caught start failure")
	}
}

func TestSyncStartFailure(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitEnd()
	e.StartErr = ErrAlreadyStarted
	c.Start()

	s := c.State()
	if s.Err != startFailedMessage {
		t.Errorf("Err = %q, want %q", s.Err, startFailedMessage)
	}
	if s.Listening {
		t.Error("Listening should stay false when the start request fails")
	}
}

func TestStartUnsupported(t *testing.T) {
	for name, provider := range map[string]Provider{
		"nil provider":         nil,
		"unavailable provider": &FakeProvider{Unavailable: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewController(provider, "en")
			defer c.Close()

			if c.State().Supported {
				t.Fatal("Supported should be false")
			}

			c.Start()
			s := c.State()
			if s.Listening {
				t.Error("Listening should stay false when unsupported")
			}
			if s.Err != unsupportedMessage {
				t.Errorf("Err = %q, want %q", s.Err, unsupportedMessage)
			}
		})
	}
}

func TestResetClearsTextAndError(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("so far "), interimEntry("more")}})
	c.Reset()

	s := c.State()
	if s.Transcript != "" || s.Interim != "" || s.Err != "" {
		t.Errorf("Reset left state behind: %+v", s)
	}
	if !s.Listening {
		t.Error("Reset must not touch the listening flag")
	}

	// Finalized text accumulated after a reset starts from scratch.
	e.EmitResult(Result{Index: 1, Entries: []Entry{finalEntry("fresh")}})
	if got := c.State().Transcript; got != "fresh" {
		t.Errorf("Transcript = %q, want %q", got, "fresh")
	}
}

func TestStopLeavesListeningUntilEnd(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	c.Stop()
	if !c.State().Listening {
		t.Fatal("Stop must not flip Listening; that happens on the end event")
	}
	if got := e.Stops(); got != 1 {
		t.Errorf("engine stops = %d, want 1", got)
	}

	// Results still in flight after the stop request are not discarded.
	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("late final")}})
	e.EmitEnd()

	s := c.State()
	if s.Listening {
		t.Error("Listening should be false once the end event arrives")
	}
	if s.Transcript != "late final" {
		t.Errorf("Transcript = %q, want %q", s.Transcript, "late final")
	}
}

func TestStopWithoutEngine(t *testing.T) {
	c := NewController(&FakeProvider{}, "en")
	defer c.Close()
	c.Stop() // no handle yet; must not panic
}

func TestCloseAbortSafety(t *testing.T) {
	t.Run("no handle", func(t *testing.T) {
		c := NewController(&FakeProvider{}, "en")
		c.Close()
		c.Close()
	})

	t.Run("live handle", func(t *testing.T) {
		c, e, _ := startController(t)
		c.Close()
		c.Close()
		if got := e.Aborts(); got != 1 {
			t.Errorf("engine aborts = %d, want 1", got)
		}
	})
}

func TestStartAfterCloseDeclines(t *testing.T) {
	c, _, p := startController(t)
	c.Close()

	c.Start()
	if n := len(p.Engines()); n != 1 {
		t.Errorf("Start after Close built a new engine: %d handles", n)
	}
	if got := c.State().Err; got != unsupportedMessage {
		t.Errorf("Err = %q, want %q", got, unsupportedMessage)
	}
}

func TestEndToEndScenario(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	e.EmitResult(Result{Index: 0, Entries: []Entry{interimEntry("TikTok")}})
	s := c.State()
	if s.Interim != "TikTok" || s.Transcript != "" {
		t.Fatalf("after interim: Interim=%q Transcript=%q", s.Interim, s.Transcript)
	}

	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("TikTok policy")}})
	s = c.State()
	if s.Transcript != "TikTok policy" {
		t.Errorf("Transcript = %q, want %q", s.Transcript, "TikTok policy")
	}
	if s.Interim != "" {
		t.Errorf("Interim = %q, want empty once the entry finalized", s.Interim)
	}

	e.EmitEnd()
	s = c.State()
	if s.Listening {
		t.Error("Listening should be false after end")
	}
	if s.Transcript != "TikTok policy" {
		t.Errorf("Transcript = %q, want unchanged", s.Transcript)
	}
}

func TestUpdatesDeliverLatestSnapshot(t *testing.T) {
	c, e, _ := startController(t)
	defer c.Close()

	// Overflow the channel; conflation must keep the most recent snapshot.
	for i := 0; i < 50; i++ {
		e.EmitResult(Result{Index: 0, Entries: []Entry{interimEntry("hypothesis")}})
	}
	e.EmitResult(Result{Index: 0, Entries: []Entry{finalEntry("settled")}})

	var last State
	for {
		select {
		case s := <-c.Updates():
			last = s
			continue
		default:
		}
		break
	}
	if last.Transcript != "settled" {
		t.Errorf("latest update Transcript = %q, want %q", last.Transcript, "settled")
	}
}

func TestScriptedReplay(t *testing.T) {
	p := &FakeProvider{Script: []string{"what is the weather"}, Delay: time.Millisecond}
	c := NewController(p, "en")
	defer c.Close()

	c.Start()

	deadline := time.After(2 * time.Second)
	for c.State().Listening {
		select {
		case <-deadline:
			t.Fatal("scripted session never ended")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s := c.State()
	if s.Transcript != "what is the weather" {
		t.Errorf("Transcript = %q, want %q", s.Transcript, "what is the weather")
	}
	if s.Interim != "" {
		t.Errorf("Interim = %q, want empty after replay end", s.Interim)
	}
}
