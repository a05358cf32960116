package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"vask/audio"
	"vask/log"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"

	captureSampleRate = 16000
	captureChannels   = 1

	chunkMs    = 200
	chunkBytes = captureSampleRate * captureChannels * 2 * chunkMs / 1000

	dialTimeout = 10 * time.Second
)

// DeepgramProvider builds engines backed by the Deepgram live transcription
// API. The engine owns microphone capture end to end: PCM16 goes up the
// WebSocket, interim and final transcripts come back down and are reshaped
// into indexed result events.
type DeepgramProvider struct {
	apiKey   string
	model    string
	endpoint string
	audioCtx audio.Context
	device   *audio.DeviceInfo
}

func NewDeepgramProvider(apiKey string, audioCtx audio.Context, device *audio.DeviceInfo) *DeepgramProvider {
	return &DeepgramProvider{
		apiKey:   apiKey,
		model:    defaultModel,
		endpoint: deepgramEndpoint,
		audioCtx: audioCtx,
		device:   device,
	}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

// Available reports whether both the API key and an audio capture backend are
// present. It never panics in headless environments: a missing audio context
// simply means unavailable.
func (p *DeepgramProvider) Available() bool {
	return p.apiKey != "" && p.audioCtx != nil
}

func (p *DeepgramProvider) NewEngine(cfg Config, h Handlers) Engine {
	return &deepgramEngine{provider: p, cfg: cfg, handlers: h}
}

type deepgramEngine struct {
	provider *DeepgramProvider
	handlers Handlers

	mu      sync.Mutex
	cfg     Config
	session *deepgramSession
}

func (e *deepgramEngine) SetLanguage(lang string) {
	e.mu.Lock()
	e.cfg.Language = lang
	e.mu.Unlock()
}

func (e *deepgramEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return ErrAlreadyStarted
	}
	s := newDeepgramSession(e.provider, e.cfg, e.handlers, e.detach)
	e.session = s
	go s.run()
	return nil
}

func (e *deepgramEngine) Stop() {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s != nil {
		s.stop()
	}
}

func (e *deepgramEngine) Abort() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()
	if s != nil {
		s.abort()
	}
}

func (e *deepgramEngine) detach(s *deepgramSession) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()
}

type deepgramSession struct {
	provider *DeepgramProvider
	cfg      Config
	handlers Handlers
	detach   func(*deepgramSession)

	ctx    context.Context
	cancel context.CancelFunc

	audioCh chan []byte
	stopCh  chan struct{}

	stopOnce sync.Once

	mu       sync.Mutex
	conn     *websocket.Conn
	capture  audio.CaptureDevice
	feedBuf  []byte
	history  resultHistory
	stopping bool
	aborted  bool
	failCode ErrorCode
	failErr  error
}

func newDeepgramSession(p *DeepgramProvider, cfg Config, h Handlers, detach func(*deepgramSession)) *deepgramSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &deepgramSession{
		provider: p,
		cfg:      cfg,
		handlers: h,
		detach:   detach,
		ctx:      ctx,
		cancel:   cancel,
		audioCh:  make(chan []byte, 64),
		stopCh:   make(chan struct{}),
	}
}

func (s *deepgramSession) run() {
	defer s.finish()

	dialCtx, cancelDial := context.WithTimeout(s.ctx, dialTimeout)
	defer cancelDial()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.provider.apiKey)
	conn, resp, err := websocket.Dial(dialCtx, s.endpoint(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		s.fail(dialErrorCode(resp), err)
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	capture, err := s.provider.audioCtx.NewCapture(s.provider.device, audio.CaptureConfig{
		SampleRate: captureSampleRate,
		Channels:   captureChannels,
	}, s.feed)
	if err != nil {
		s.fail(CodeAudioCapture, err)
		return
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		s.fail(CodeAudioCapture, err)
		return
	}
	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()

	go s.sendLoop(conn)
	s.recvLoop(conn)
}

func (s *deepgramSession) endpoint() string {
	u, _ := url.Parse(s.provider.endpoint)
	q := u.Query()
	q.Set("model", s.provider.model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", captureSampleRate))
	q.Set("channels", fmt.Sprintf("%d", captureChannels))
	if s.cfg.Language != "" {
		q.Set("language", s.cfg.Language)
	}
	if s.cfg.InterimResults {
		q.Set("interim_results", "true")
	}
	if !s.cfg.Continuous {
		// Single-question mode: let the service detect the endpoint so the
		// session can finish itself after one utterance.
		q.Set("endpointing", "300")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// feed runs on the audio capture thread. It slices incoming PCM into
// fixed-size chunks and hands them to the sender without ever blocking.
func (s *deepgramSession) feed(data []byte, _ uint32) {
	s.mu.Lock()
	if s.stopping || s.aborted {
		s.mu.Unlock()
		return
	}
	s.feedBuf = append(s.feedBuf, data...)
	var chunks [][]byte
	for len(s.feedBuf) >= chunkBytes {
		chunk := make([]byte, chunkBytes)
		copy(chunk, s.feedBuf[:chunkBytes])
		s.feedBuf = s.feedBuf[chunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.mu.Unlock()

	for _, chunk := range chunks {
		select {
		case s.audioCh <- chunk:
		default:
			// Live capture must not stall; a dropped chunk costs less than
			// backpressure into the audio thread.
		}
	}
}

func (s *deepgramSession) sendLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case chunk := <-s.audioCh:
			if err := conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				s.fail(CodeNetwork, err)
				s.cancel()
				return
			}
		case <-s.stopCh:
			s.mu.Lock()
			tail := s.feedBuf
			s.feedBuf = nil
			s.mu.Unlock()
			if len(tail) > 0 {
				if err := conn.Write(s.ctx, websocket.MessageBinary, tail); err != nil {
					s.fail(CodeNetwork, err)
					s.cancel()
					return
				}
			}
			if err := conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
				s.fail(CodeNetwork, err)
				s.cancel()
			}
			return
		}
	}
}

func (s *deepgramSession) recvLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			s.mu.Lock()
			quiet := s.stopping || s.aborted
			s.mu.Unlock()
			if !quiet {
				s.fail(CodeNetwork, err)
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("deepgram: undecodable message: %v", err)
			continue
		}

		switch msg.Type {
		case "Results":
			text, confidence := msg.best()
			isFinal := msg.IsFinal || msg.FromFinalize
			s.mu.Lock()
			res, ok := s.history.apply(strings.TrimSpace(text), confidence, isFinal)
			aborted := s.aborted
			s.mu.Unlock()
			if ok && !aborted && s.handlers.OnResult != nil {
				s.handlers.OnResult(res)
			}
			if msg.SpeechFinal && !s.cfg.Continuous {
				// One utterance per session unless continuous was asked for.
				s.stop()
			}
		case "Metadata":
			// The service sends a closing summary after CloseStream.
			return
		}
	}
}

// stop requests graceful termination: capture ends, buffered audio is
// flushed, and the service is asked to finalize. Remaining results still
// arrive before the end event fires.
func (s *deepgramSession) stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		capture := s.capture
		s.capture = nil
		s.mu.Unlock()
		if capture != nil {
			capture.Stop()
			capture.Close()
		}
		close(s.stopCh)
	})
}

// abort tears the session down immediately, discarding in-flight recognition
// state. No further events are delivered.
func (s *deepgramSession) abort() {
	s.mu.Lock()
	s.aborted = true
	capture := s.capture
	s.capture = nil
	s.mu.Unlock()
	s.cancel()
	if capture != nil {
		capture.Stop()
		capture.Close()
	}
}

func (s *deepgramSession) fail(code ErrorCode, err error) {
	s.mu.Lock()
	if s.failErr == nil {
		s.failCode = code
		s.failErr = err
	}
	s.mu.Unlock()
}

func (s *deepgramSession) finish() {
	s.detach(s)

	s.mu.Lock()
	capture := s.capture
	s.capture = nil
	conn := s.conn
	s.conn = nil
	aborted := s.aborted
	code, err := s.failCode, s.failErr
	sawFinal := s.history.sawFinal
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
		capture.Close()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	s.cancel()

	if aborted {
		return
	}
	if err != nil {
		log.Errorf("deepgram session: %v", err)
		if s.handlers.OnError != nil {
			s.handlers.OnError(code)
		}
	} else if !sawFinal {
		if s.handlers.OnError != nil {
			s.handlers.OnError(CodeNoSpeech)
		}
	}
	if s.handlers.OnEnd != nil {
		s.handlers.OnEnd()
	}
}

// dialErrorCode classifies a failed WebSocket dial. Rejected credentials are
// a permission problem; everything else is a transport problem.
func dialErrorCode(resp *http.Response) ErrorCode {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return CodeNotAllowed
	}
	return CodeNetwork
}

type deepgramMessage struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// best returns the top-ranked alternative's transcript and confidence.
func (m *deepgramMessage) best() (string, float64) {
	if len(m.Channel.Alternatives) == 0 {
		return "", 0
	}
	alt := m.Channel.Alternatives[0]
	return alt.Transcript, alt.Confidence
}
