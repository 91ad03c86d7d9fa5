package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything a streaming session and the CLI need. Values come
// from the environment (a .env file is loaded if present); command-line flags
// may override them afterwards.
type Config struct {
	Endpoint       string
	SecretKey      string
	FrameRate      int
	Quality        int
	RequiredFrames int
	CameraDevice   int
	FrameWidth     int
	FrameHeight    int
	HistoryPath    string
	LogDirectory   string
}

func Load() *Config {
	// Missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	return &Config{
		Endpoint:       getEnv("MOVERIS_WS_URL", "wss://developers.moveris.com/ws/live/v1/"),
		SecretKey:      getEnv("MOVERIS_SECRET_KEY", ""),
		FrameRate:      getEnvAsInt("FRAME_RATE", 10),
		Quality:        getEnvAsInt("JPEG_QUALITY", 70),
		RequiredFrames: getEnvAsInt("REQUIRED_FRAMES", 500),
		CameraDevice:   getEnvAsInt("CAMERA_DEVICE", 0),
		FrameWidth:     getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight:    getEnvAsInt("FRAME_HEIGHT", 480),
		HistoryPath:    getEnv("HISTORY_DB", filepath.Join(".", "data", "sessions.db")),
		LogDirectory:   getEnv("LOG_DIR", ""),
	}
}

// Validate checks the ranges the remote service accepts.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.FrameRate < 1 || c.FrameRate > 60 {
		return fmt.Errorf("frame rate must be between 1 and 60, got %d", c.FrameRate)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.FrameWidth, c.FrameHeight)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
