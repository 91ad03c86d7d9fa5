package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_FrameReceived(t *testing.T) {
	raw := []byte(`{"type":"frame_received","frame_number":42,"total_frames":42}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Type != TypeFrameReceived {
		t.Errorf("expected type %q, got %q", TypeFrameReceived, msg.Type)
	}
	if msg.FrameNumber != 42 {
		t.Errorf("expected frame_number 42, got %d", msg.FrameNumber)
	}
	if msg.TotalFrames != 42 {
		t.Errorf("expected total_frames 42, got %d", msg.TotalFrames)
	}
}

func TestDecode_ProcessingComplete(t *testing.T) {
	raw := []byte(`{
		"type": "processing_complete",
		"frames_processed": 500,
		"result": {
			"prediction": "Real",
			"confidence": 0.9731,
			"ai_probability": 0.02,
			"processing_time_seconds": 4.2
		}
	}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.FramesProcessed != 500 {
		t.Errorf("expected frames_processed 500, got %d", msg.FramesProcessed)
	}
	if msg.Result == nil {
		t.Fatal("expected result payload")
	}
	if msg.Result.Prediction != "Real" {
		t.Errorf("expected prediction Real, got %q", msg.Result.Prediction)
	}
	if msg.Result.Score() != 0.02 {
		t.Errorf("expected score 0.02, got %f", msg.Result.Score())
	}
}

func TestDecode_ErrorAndDisconnect(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"error","message":"bad token"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Message != "bad token" {
		t.Errorf("expected message 'bad token', got %q", msg.Message)
	}

	msg, err = Decode([]byte(`{"type":"disconnect","reason":"session limit"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Reason != "session limit" {
		t.Errorf("expected reason 'session limit', got %q", msg.Reason)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`not json at all`)); err == nil {
		t.Error("expected error for non-JSON payload")
	}
	if _, err := Decode([]byte(`{"message":"no type tag"}`)); err == nil {
		t.Error("expected error for missing type tag")
	}
}

func TestResult_ScoreVariants(t *testing.T) {
	likelihood := 0.88
	level := 0.12

	cases := []struct {
		name string
		res  Result
		want float64
	}{
		{"empty", Result{}, 0},
		{"human_likelihood_level", Result{HumanLikelihoodLevel: &likelihood}, 0.88},
		{"ai_detection_level", Result{AIDetectionLevel: &level}, 0.12},
	}
	for _, tc := range cases {
		if got := tc.res.Score(); got != tc.want {
			t.Errorf("%s: expected score %f, got %f", tc.name, tc.want, got)
		}
	}
}

func TestFrameMessage_WireFormat(t *testing.T) {
	msg := FrameMessage{
		Type:        TypeFrame,
		FrameNumber: 7,
		FrameData:   "aGVsbG8=",
		Timestamp:   1700000000.25,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["type"] != "frame" {
		t.Errorf("expected type frame, got %v", decoded["type"])
	}
	if decoded["frame_number"].(float64) != 7 {
		t.Errorf("expected frame_number 7, got %v", decoded["frame_number"])
	}
	if decoded["timestamp"].(float64) != 1700000000.25 {
		t.Errorf("expected fractional timestamp, got %v", decoded["timestamp"])
	}
}
