// Package simulator runs a local stand-in for the remote detection service.
// It speaks the same JSON-over-websocket protocol and is used for offline
// development and integration tests.
package simulator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"liveclient/internal/logger"
	"liveclient/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config controls the simulated service's behavior.
type Config struct {
	// Token is the credential the simulator accepts. Empty accepts any.
	Token string

	// RequiredFrames is how many frames must arrive before the simulator
	// emits a result.
	RequiredFrames int

	// AckDelay is an artificial delay before each frame acknowledgment.
	AckDelay time.Duration

	// FailAuth rejects every credential.
	FailAuth bool

	// ErrorAfter, when positive, sends an error message once that many
	// frames have arrived.
	ErrorAfter int

	// Result is the payload returned on completion. Zero value yields a
	// "Real" prediction.
	Result protocol.Result
}

// Server simulates one detection service endpoint.
type Server struct {
	cfg Config
	log *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Server {
	if cfg.RequiredFrames <= 0 {
		cfg.RequiredFrames = 500
	}
	if cfg.Result.Prediction == "" {
		confidence := 0.97
		aiProbability := 0.02
		cfg.Result = protocol.Result{
			Prediction:            "Real",
			Confidence:            confidence,
			AIProbability:         &aiProbability,
			ProcessingTimeSeconds: 1.5,
		}
	}
	return &Server{cfg: cfg, log: log}
}

// Handler upgrades the request and drives one simulated session.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		s.log.Info("Client connected from %s", r.RemoteAddr)
		s.serve(conn)
		s.log.Info("Client session ended")
	}
}

// ListenAndServe runs the simulator on addr under the live endpoint path.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws/live/v1/", s.Handler())
	s.log.Info("Simulator listening on %s (path /ws/live/v1/)", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) serve(conn *websocket.Conn) {
	if err := s.send(conn, protocol.ServerMessage{Type: protocol.TypeAuthRequired}); err != nil {
		return
	}

	authed := false
	frames := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Type        string `json:"type"`
			Token       string `json:"token"`
			FrameNumber int    `json:"frame_number"`
			FrameData   string `json:"frame_data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warning("Dropping malformed client message: %v", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeAuth:
			if s.cfg.FailAuth || (s.cfg.Token != "" && msg.Token != s.cfg.Token) {
				_ = s.send(conn, protocol.ServerMessage{Type: protocol.TypeError, Message: "invalid token"})
				return
			}
			authed = true
			if err := s.send(conn, protocol.ServerMessage{Type: protocol.TypeAuthSuccess}); err != nil {
				return
			}

		case protocol.TypeFrame:
			if !authed {
				_ = s.send(conn, protocol.ServerMessage{Type: protocol.TypeError, Message: "not authenticated"})
				return
			}
			frames++

			if s.cfg.ErrorAfter > 0 && frames >= s.cfg.ErrorAfter {
				_ = s.send(conn, protocol.ServerMessage{Type: protocol.TypeError, Message: "processing aborted"})
				return
			}

			if s.cfg.AckDelay > 0 {
				time.Sleep(s.cfg.AckDelay)
			}
			ack := protocol.ServerMessage{
				Type:        protocol.TypeFrameReceived,
				FrameNumber: msg.FrameNumber,
				TotalFrames: frames,
			}
			if err := s.send(conn, ack); err != nil {
				return
			}

			if frames == s.cfg.RequiredFrames {
				_ = s.send(conn, protocol.ServerMessage{
					Type:    protocol.TypeProcessingStarted,
					Message: "analyzing frames",
				})
				result := s.cfg.Result
				_ = s.send(conn, protocol.ServerMessage{
					Type:            protocol.TypeProcessingComplete,
					Result:          &result,
					FramesProcessed: frames,
				})
				return
			}

		default:
			s.log.Warning("Ignoring unknown client message type %q", msg.Type)
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
