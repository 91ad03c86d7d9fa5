package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types sent by the client.
const (
	TypeAuth  = "auth"
	TypeFrame = "frame"
)

// Message types sent by the server.
const (
	TypeAuthRequired       = "auth_required"
	TypeAuthSuccess        = "auth_success"
	TypeFrameReceived      = "frame_received"
	TypeProcessingStarted  = "processing_started"
	TypeProcessingComplete = "processing_complete"
	TypeError              = "error"
	TypeDisconnect         = "disconnect"
)

// AuthMessage carries the API secret key to the server.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// FrameMessage carries one base64-encoded JPEG frame.
// Timestamp is fractional seconds since the epoch.
type FrameMessage struct {
	Type        string  `json:"type"`
	FrameNumber int     `json:"frame_number"`
	FrameData   string  `json:"frame_data"`
	Timestamp   float64 `json:"timestamp"`
}

// ServerMessage is the envelope for everything the server sends.
// Only the fields matching the message type are populated.
type ServerMessage struct {
	Type            string  `json:"type"`
	Message         string  `json:"message,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	FrameNumber     int     `json:"frame_number,omitempty"`
	TotalFrames     int     `json:"total_frames,omitempty"`
	FramesProcessed int     `json:"frames_processed,omitempty"`
	Result          *Result `json:"result,omitempty"`
}

// Result is the final classification payload. Deployments disagree on the
// numeric field name (ai_probability, human_likelihood_level or
// ai_detection_level) and some report a bare live flag instead of a
// prediction string, so all variants are decoded.
type Result struct {
	Prediction            string   `json:"prediction,omitempty"`
	Confidence            float64  `json:"confidence,omitempty"`
	AIProbability         *float64 `json:"ai_probability,omitempty"`
	HumanLikelihoodLevel  *float64 `json:"human_likelihood_level,omitempty"`
	AIDetectionLevel      *float64 `json:"ai_detection_level,omitempty"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds,omitempty"`
	Live                  *bool    `json:"live,omitempty"`
}

// Score returns whichever of the numeric detection fields the server filled
// in, or 0 if none were present.
func (r *Result) Score() float64 {
	switch {
	case r.AIProbability != nil:
		return *r.AIProbability
	case r.HumanLikelihoodLevel != nil:
		return *r.HumanLikelihoodLevel
	case r.AIDetectionLevel != nil:
		return *r.AIDetectionLevel
	}
	return 0
}

// Decode parses one server message.
func Decode(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode server message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("server message missing type tag")
	}
	return &msg, nil
}
