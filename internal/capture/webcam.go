package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// WebcamConfig controls how the capture device is opened. Width and height
// are hints, the driver may pick the closest supported mode.
type WebcamConfig struct {
	Device  int
	Width   int
	Height  int
	FPS     int
	Quality int
}

// Webcam captures frames from a local camera and encodes them as JPEG.
type Webcam struct {
	mu      sync.Mutex
	device  *gocv.VideoCapture
	frame   gocv.Mat
	quality int
	closed  bool
}

// OpenWebcam opens the camera device and applies the resolution and frame
// rate hints.
func OpenWebcam(cfg WebcamConfig) (*Webcam, error) {
	device, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.Device, err)
	}
	if !device.IsOpened() {
		_ = device.Close()
		return nil, fmt.Errorf("camera %d is not available", cfg.Device)
	}

	device.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	device.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	device.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	return &Webcam{
		device:  device,
		frame:   gocv.NewMat(),
		quality: cfg.Quality,
	}, nil
}

// Read grabs one frame and JPEG-encodes it at the configured quality.
func (w *Webcam) Read() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("camera is closed")
	}
	if ok := w.device.Read(&w.frame); !ok {
		return nil, ErrNoFrame
	}
	if w.frame.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.frame, []int{gocv.IMWriteJpegQuality, w.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the camera handle. Safe to call multiple times.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.frame.Close()
	return w.device.Close()
}
