package simulator

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"liveclient/internal/protocol"
)

func dialTestServer(t *testing.T, cfg Config) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(New(cfg, nil).Handler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) *protocol.ServerMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestSimulator_FullSession(t *testing.T) {
	conn, cleanup := dialTestServer(t, Config{Token: "sk-test", RequiredFrames: 3})
	defer cleanup()

	if msg := readMessage(t, conn); msg.Type != protocol.TypeAuthRequired {
		t.Fatalf("expected auth_required first, got %q", msg.Type)
	}

	writeJSON(t, conn, protocol.AuthMessage{Type: protocol.TypeAuth, Token: "sk-test"})
	if msg := readMessage(t, conn); msg.Type != protocol.TypeAuthSuccess {
		t.Fatalf("expected auth_success, got %q", msg.Type)
	}

	for n := 1; n <= 3; n++ {
		writeJSON(t, conn, protocol.FrameMessage{
			Type:        protocol.TypeFrame,
			FrameNumber: n,
			FrameData:   "ZmFrZQ==",
			Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
		})
		ack := readMessage(t, conn)
		if ack.Type != protocol.TypeFrameReceived {
			t.Fatalf("frame %d: expected frame_received, got %q", n, ack.Type)
		}
		if ack.FrameNumber != n {
			t.Errorf("frame %d: ack carries frame_number %d", n, ack.FrameNumber)
		}
		if ack.TotalFrames != n {
			t.Errorf("frame %d: expected total_frames %d, got %d", n, n, ack.TotalFrames)
		}
	}

	if msg := readMessage(t, conn); msg.Type != protocol.TypeProcessingStarted {
		t.Fatalf("expected processing_started, got %q", msg.Type)
	}

	complete := readMessage(t, conn)
	if complete.Type != protocol.TypeProcessingComplete {
		t.Fatalf("expected processing_complete, got %q", complete.Type)
	}
	if complete.Result == nil || complete.Result.Prediction != "Real" {
		t.Errorf("expected default Real prediction, got %+v", complete.Result)
	}
	if complete.FramesProcessed != 3 {
		t.Errorf("expected 3 frames processed, got %d", complete.FramesProcessed)
	}
}

func TestSimulator_RejectsBadToken(t *testing.T) {
	conn, cleanup := dialTestServer(t, Config{Token: "sk-good"})
	defer cleanup()

	readMessage(t, conn) // auth_required
	writeJSON(t, conn, protocol.AuthMessage{Type: protocol.TypeAuth, Token: "sk-bad"})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeError {
		t.Fatalf("expected error, got %q", msg.Type)
	}
	if msg.Message != "invalid token" {
		t.Errorf("expected 'invalid token', got %q", msg.Message)
	}
}

func TestSimulator_RejectsFramesBeforeAuth(t *testing.T) {
	conn, cleanup := dialTestServer(t, Config{})
	defer cleanup()

	readMessage(t, conn) // auth_required
	writeJSON(t, conn, protocol.FrameMessage{Type: protocol.TypeFrame, FrameNumber: 1})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeError {
		t.Fatalf("expected error for unauthenticated frame, got %q", msg.Type)
	}
}

func TestSimulator_ErrorAfter(t *testing.T) {
	conn, cleanup := dialTestServer(t, Config{RequiredFrames: 10, ErrorAfter: 2})
	defer cleanup()

	readMessage(t, conn) // auth_required
	writeJSON(t, conn, protocol.AuthMessage{Type: protocol.TypeAuth, Token: "anything"})
	readMessage(t, conn) // auth_success

	writeJSON(t, conn, protocol.FrameMessage{Type: protocol.TypeFrame, FrameNumber: 1})
	readMessage(t, conn) // ack for frame 1

	writeJSON(t, conn, protocol.FrameMessage{Type: protocol.TypeFrame, FrameNumber: 2})
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeError {
		t.Fatalf("expected error after second frame, got %q", msg.Type)
	}
}
