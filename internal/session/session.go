package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"liveclient/internal/capture"
	"liveclient/internal/logger"
	"liveclient/internal/protocol"
)

// Error kinds surfaced to the caller. None of them are retried here, the
// caller decides whether to open a new session.
var (
	ErrInvalidConfig  = errors.New("invalid session config")
	ErrConnection     = errors.New("connection error")
	ErrAuthentication = errors.New("authentication error")
	ErrCapture        = errors.New("capture error")
	ErrRemote         = errors.New("remote error")
)

// State is the session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAuthPending
	StateStreaming
	StateCompleted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth_pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 20 * time.Second
	maxMsgSize   = 1024 * 1024
	pendingLimit = 1000
	latencyCap   = 50
)

// Config describes one streaming session.
type Config struct {
	Endpoint       string
	Token          string
	FrameRate      int // frames per second, 1-60
	RequiredFrames int // display hint only, the server decides when it is done

	// AuthTimeout bounds the wait for the server's auth verdict. Defaults
	// to 10 seconds.
	AuthTimeout time.Duration

	// CompletionLinger keeps the socket open briefly after a final result
	// so the caller can render it before teardown.
	CompletionLinger time.Duration

	// SuccessWhen decides whether a final result counts as a live/real
	// capture. The remote contract is not stable across deployments, so
	// this is a predicate rather than a hardcoded comparison. Defaults to
	// DefaultSuccess.
	SuccessWhen func(*protocol.Result) bool

	// OnAck, if set, is called for every acknowledged frame with the frame
	// number and the server's reported buffer depth.
	OnAck func(frameNumber, totalFrames int)
}

// DefaultSuccess accepts the success spellings observed in the wild:
// prediction "Real" or "live" (any case), or an explicit live flag.
func DefaultSuccess(r *protocol.Result) bool {
	if r == nil {
		return false
	}
	if strings.EqualFold(r.Prediction, "Real") || strings.EqualFold(r.Prediction, "live") {
		return true
	}
	return r.Live != nil && *r.Live
}

// Summary is the final report for a finished session.
type Summary struct {
	State             State
	Duration          time.Duration
	FramesSent        int
	SkippedCaptures   int
	AcksReceived      int
	AverageFPS        float64
	AverageAckLatency time.Duration
	Result            *protocol.Result
	FramesProcessed   int
	Live              bool
}

// Session owns one connect-authenticate-stream-complete interaction with the
// detection service. The camera source and the socket belong to the session
// and are released together on teardown.
type Session struct {
	cfg    Config
	source capture.FrameSource
	log    *logger.Logger
	conn   *websocket.Conn

	mu              sync.Mutex
	state           State
	frameCounter    int
	skipped         int
	acks            int
	pending         *pendingAcks
	latencies       *latencyRing
	serverBuffer    int
	result          *protocol.Result
	framesProcessed int
	err             error
	authSent        bool
	startedAt       time.Time

	// captureMu serializes capture ticks against teardown so the camera is
	// never released mid-read.
	captureMu sync.Mutex
	writeMu   sync.Mutex
	stopped   atomic.Bool

	authed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open validates the config and establishes the transport connection. No
// goroutines run until Run is called.
func Open(cfg Config, source capture.FrameSource, log *logger.Logger) (*Session, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: credential is required", ErrInvalidConfig)
	}
	if cfg.FrameRate < 1 || cfg.FrameRate > 60 {
		return nil, fmt.Errorf("%w: frame rate %d out of range [1,60]", ErrInvalidConfig, cfg.FrameRate)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: frame source is required", ErrInvalidConfig)
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.RequiredFrames <= 0 {
		cfg.RequiredFrames = 500
	}
	if cfg.SuccessWhen == nil {
		cfg.SuccessWhen = DefaultSuccess
	}

	s := &Session{
		cfg:       cfg,
		source:    source,
		log:       log,
		state:     StateIdle,
		pending:   newPendingAcks(pendingLimit),
		latencies: newLatencyRing(latencyCap),
		authed:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.setState(StateConnecting)
	log.Info("Connecting to %s...", cfg.Endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(cfg.Endpoint, nil)
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, cfg.Endpoint, err)
	}
	s.conn = conn
	log.Info("Connected")

	return s, nil
}

// Run drives the session until it reaches a terminal state. It returns nil
// when the session completed or was closed gracefully, and the terminal
// error otherwise. Cancelling ctx closes the session.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.readLoop()
	go s.pingLoop()

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.done:
			}
		}()
	}

	select {
	case <-s.authed:
	case <-time.After(s.cfg.AuthTimeout):
		s.finish(StateFailed, fmt.Errorf("%w: no auth verdict within %s", ErrAuthentication, s.cfg.AuthTimeout))
	case <-s.done:
	}

	<-s.done
	return s.Err()
}

// Close tears the session down: capture timer first, then the camera, then
// the socket. Safe to call from any state, any number of times.
func (s *Session) Close() {
	s.finish(StateClosed, nil)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, or nil for a completed or cleanly closed
// session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FramesSent returns how many frames have been captured and sent so far.
func (s *Session) FramesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCounter
}

// Result returns the final prediction payload, or nil if none arrived.
func (s *Session) Result() *protocol.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Summary reports the session's final stats.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := time.Since(s.startedAt)
	if s.startedAt.IsZero() {
		duration = 0
	}
	avgFPS := 0.0
	if duration > 0 {
		avgFPS = float64(s.frameCounter) / duration.Seconds()
	}
	return Summary{
		State:             s.state,
		Duration:          duration,
		FramesSent:        s.frameCounter,
		SkippedCaptures:   s.skipped,
		AcksReceived:      s.acks,
		AverageFPS:        avgFPS,
		AverageAckLatency: s.latencies.average(),
		Result:            s.result,
		FramesProcessed:   s.framesProcessed,
		Live:              s.cfg.SuccessWhen(s.result),
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.Info("Session %s", st)
	}
}

// readLoop pulls messages off the socket until the connection dies or the
// session reaches a terminal state.
func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("Server closed the connection")
				s.finish(StateClosed, nil)
			} else {
				s.finish(StateFailed, fmt.Errorf("%w: read: %v", ErrConnection, err))
			}
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage dispatches one inbound message by its type tag. A message
// that cannot be parsed is logged and dropped without touching session state.
func (s *Session) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.log.Warning("Ignoring malformed message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAuthRequired:
		s.sendAuth()

	case protocol.TypeAuthSuccess:
		s.startStreaming()

	case protocol.TypeFrameReceived:
		s.handleAck(msg.FrameNumber, msg.TotalFrames)

	case protocol.TypeProcessingStarted:
		s.log.Info("Processing: %s", msg.Message)

	case protocol.TypeProcessingComplete:
		s.mu.Lock()
		s.result = msg.Result
		s.framesProcessed = msg.FramesProcessed
		s.mu.Unlock()
		s.log.Info("Processing complete: %d frames processed", msg.FramesProcessed)
		s.finish(StateCompleted, nil)

	case protocol.TypeError:
		s.handleServerError(msg.Message)

	case protocol.TypeDisconnect:
		s.log.Warning("Server disconnecting: %s", msg.Reason)
		s.finish(StateClosed, nil)

	default:
		s.log.Warning("Ignoring unknown message type %q", msg.Type)
	}
}

// sendAuth answers the server's auth challenge. Exactly one attempt is made
// per connection.
func (s *Session) sendAuth() {
	s.mu.Lock()
	if s.authSent {
		s.mu.Unlock()
		return
	}
	s.authSent = true
	s.mu.Unlock()

	s.setState(StateAuthPending)
	s.log.Info("Authenticating...")
	if err := s.write(protocol.AuthMessage{Type: protocol.TypeAuth, Token: s.cfg.Token}); err != nil {
		s.finish(StateFailed, err)
	}
}

// startStreaming moves auth_pending to streaming. A verdict arriving in any
// other state, including after the auth timeout already failed the session,
// is dropped.
func (s *Session) startStreaming() {
	s.mu.Lock()
	if s.state != StateAuthPending {
		s.mu.Unlock()
		return
	}
	s.state = StateStreaming
	s.mu.Unlock()

	s.log.Info("Authentication successful, streaming at %d fps", s.cfg.FrameRate)
	close(s.authed)
	go s.captureLoop()
}

func (s *Session) handleAck(frameNumber, totalFrames int) {
	now := time.Now()

	s.mu.Lock()
	if sentAt, ok := s.pending.take(frameNumber); ok {
		s.latencies.add(now.Sub(sentAt))
		s.acks++
	}
	s.serverBuffer = totalFrames
	avgAck := s.latencies.average()
	s.mu.Unlock()

	if s.cfg.OnAck != nil {
		s.cfg.OnAck(frameNumber, totalFrames)
	}
	if frameNumber > 0 && frameNumber%50 == 0 {
		s.log.Info("Frame %d acked | server buffer: %d | avg ack: %dms",
			frameNumber, totalFrames, avgAck.Milliseconds())
	}
}

// handleServerError surfaces an explicit server error. Before streaming has
// begun the only thing the server can be rejecting is the credential.
func (s *Session) handleServerError(message string) {
	s.mu.Lock()
	preAuth := s.state == StateConnecting || s.state == StateAuthPending
	s.mu.Unlock()

	s.log.Error("Server error: %s", message)
	kind := ErrRemote
	if preAuth {
		kind = ErrAuthentication
	}
	s.finish(StateFailed, fmt.Errorf("%w: %s", kind, message))
}

// captureLoop fires at the configured frame rate while the session streams.
func (s *Session) captureLoop() {
	interval := time.Second / time.Duration(s.cfg.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			if err := s.captureTick(); err != nil {
				s.finish(StateFailed, err)
				return
			}
		}
	}
}

// captureTick grabs one frame and sends it. A momentarily unavailable frame
// is skipped without incrementing the counter.
func (s *Session) captureTick() error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.stopped.Load() {
		return nil
	}

	data, err := s.source.Read()
	if errors.Is(err, capture.ErrNoFrame) {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}

	// Teardown may have started while the frame was being read.
	if s.stopped.Load() {
		return nil
	}

	now := time.Now()
	s.mu.Lock()
	s.frameCounter++
	number := s.frameCounter
	s.pending.record(number, now)
	s.mu.Unlock()

	return s.write(protocol.FrameMessage{
		Type:        protocol.TypeFrame,
		FrameNumber: number,
		FrameData:   base64.StdEncoding.EncodeToString(data),
		Timestamp:   float64(now.UnixNano()) / float64(time.Second),
	})
}

func (s *Session) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrConnection, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// Nothing goes out once teardown has begun.
	if s.stopped.Load() {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	return nil
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// finish performs the one and only teardown: stop the capture timer, wait
// out any in-flight tick, release the camera, then close the socket.
func (s *Session) finish(st State, err error) {
	s.closeOnce.Do(func() {
		s.stopped.Store(true)

		// Blocks until a tick in progress has finished with the camera.
		s.captureMu.Lock()
		if closeErr := s.source.Close(); closeErr != nil {
			s.log.Warning("Failed to release frame source: %v", closeErr)
		}
		s.captureMu.Unlock()

		s.mu.Lock()
		s.state = st
		s.err = err
		s.mu.Unlock()

		if err != nil {
			s.log.Error("Session failed: %v", err)
		} else {
			s.log.Info("Session %s", st)
		}

		if st == StateCompleted && s.cfg.CompletionLinger > 0 {
			time.Sleep(s.cfg.CompletionLinger)
		}

		if s.conn != nil {
			deadline := time.Now().Add(writeWait)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.conn.Close()
		}

		close(s.done)
	})
}
