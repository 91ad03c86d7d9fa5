package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"liveclient/internal/capture"
	"liveclient/internal/config"
	"liveclient/internal/history"
	"liveclient/internal/logger"
	"liveclient/internal/protocol"
	"liveclient/internal/session"
)

type streamOptions struct {
	Endpoint  string
	FrameRate int
	Quality   int
	Device    int
	Width     int
	Height    int
	Frames    int
	Expect    string
	Linger    time.Duration
	NoSave    bool
}

var streamOpts streamOptions

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Capture webcam frames and stream them for liveness detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd)
	},
}

func init() {
	streamCmd.Flags().StringVarP(&streamOpts.Endpoint, "endpoint", "e", "", "WebSocket endpoint of the detection service")
	streamCmd.Flags().IntVarP(&streamOpts.FrameRate, "frame-rate", "r", 10, "Frames per second to capture (1-60)")
	streamCmd.Flags().IntVarP(&streamOpts.Quality, "quality", "q", 70, "JPEG quality 1-100")
	streamCmd.Flags().IntVarP(&streamOpts.Device, "device", "d", 0, "Camera device index")
	streamCmd.Flags().IntVar(&streamOpts.Width, "width", 640, "Ideal capture width")
	streamCmd.Flags().IntVar(&streamOpts.Height, "height", 480, "Ideal capture height")
	streamCmd.Flags().IntVar(&streamOpts.Frames, "frames", 500, "Frames the service expects before it emits a result (display only)")
	streamCmd.Flags().StringVar(&streamOpts.Expect, "expect", "", "Prediction string that counts as the success path (default: Real/live)")
	streamCmd.Flags().DurationVar(&streamOpts.Linger, "linger", 2*time.Second, "How long to keep the socket open after a final result")
	streamCmd.Flags().BoolVar(&streamOpts.NoSave, "no-save", false, "Do not record this session in the history database")

	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command) error {
	cfg := config.Load()
	applyStreamFlags(cmd, cfg)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	stdin := bufio.NewReader(os.Stdin)

	if cfg.SecretKey == "" {
		if !interactive {
			return fmt.Errorf("secret key is required (set MOVERIS_SECRET_KEY)")
		}
		cfg.SecretKey = promptString(stdin, "Enter secret key: ")
		if cfg.SecretKey == "" {
			return fmt.Errorf("secret key is required")
		}
	}
	if interactive && !cmd.Flags().Changed("frame-rate") {
		cfg.FrameRate = promptInt(stdin, "Enter frame rate", cfg.FrameRate)
	}
	if interactive && !cmd.Flags().Changed("quality") {
		cfg.Quality = promptInt(stdin, "Enter JPEG quality 1-100", cfg.Quality)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("Opening camera %d (%dx%d)...", cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight)
	source, err := capture.OpenWebcam(capture.WebcamConfig{
		Device:  cfg.CameraDevice,
		Width:   cfg.FrameWidth,
		Height:  cfg.FrameHeight,
		FPS:     cfg.FrameRate,
		Quality: cfg.Quality,
	})
	if err != nil {
		return err
	}
	log.Info("Camera opened")

	bar := progressbar.NewOptions(cfg.RequiredFrames,
		progressbar.OptionSetDescription("📡 Streaming"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	sessCfg := session.Config{
		Endpoint:         cfg.Endpoint,
		Token:            cfg.SecretKey,
		FrameRate:        cfg.FrameRate,
		RequiredFrames:   cfg.RequiredFrames,
		CompletionLinger: streamOpts.Linger,
		OnAck: func(frame, total int) {
			_ = bar.Set(total)
		},
	}
	if streamOpts.Expect != "" {
		expect := streamOpts.Expect
		sessCfg.SuccessWhen = func(r *protocol.Result) bool {
			return r != nil && strings.EqualFold(r.Prediction, expect)
		}
	}

	startedAt := time.Now()
	sess, err := session.Open(sessCfg, source, log)
	if err != nil {
		_ = source.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := sess.Run(ctx)
	_ = bar.Clear()

	summary := sess.Summary()
	printSummary(log, summary)

	if summary.Result != nil && !streamOpts.NoSave {
		if err := saveSession(cfg, startedAt, summary); err != nil {
			log.Warning("Failed to record session history: %v", err)
		}
	}

	return runErr
}

// applyStreamFlags lets explicitly set flags win over the environment.
func applyStreamFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = streamOpts.Endpoint
	}
	if cmd.Flags().Changed("frame-rate") {
		cfg.FrameRate = streamOpts.FrameRate
	}
	if cmd.Flags().Changed("quality") {
		cfg.Quality = streamOpts.Quality
	}
	if cmd.Flags().Changed("device") {
		cfg.CameraDevice = streamOpts.Device
	}
	if cmd.Flags().Changed("width") {
		cfg.FrameWidth = streamOpts.Width
	}
	if cmd.Flags().Changed("height") {
		cfg.FrameHeight = streamOpts.Height
	}
	if cmd.Flags().Changed("frames") {
		cfg.RequiredFrames = streamOpts.Frames
	}
	if logDir != "" {
		cfg.LogDirectory = logDir
	}
	if dbPath != "" {
		cfg.HistoryPath = dbPath
	}
}

func printSummary(log *logger.Logger, summary session.Summary) {
	log.Info("Session stats: duration %.1fs | frames sent: %d | avg fps: %.1f | avg ack: %dms",
		summary.Duration.Seconds(), summary.FramesSent, summary.AverageFPS,
		summary.AverageAckLatency.Milliseconds())

	if summary.Result == nil {
		return
	}

	res := summary.Result
	banner := color.New(color.FgRed, color.Bold).Sprintf("✗ %s", res.Prediction)
	if summary.Live {
		banner = color.New(color.FgGreen, color.Bold).Sprintf("✓ %s", res.Prediction)
	}
	fmt.Println()
	fmt.Printf("  Prediction:      %s\n", banner)
	fmt.Printf("  Confidence:      %.4f\n", res.Confidence)
	fmt.Printf("  AI probability:  %.2f%%\n", res.Score()*100)
	fmt.Printf("  Processing time: %.2fs\n", res.ProcessingTimeSeconds)
	fmt.Printf("  Frames:          %d\n", summary.FramesProcessed)
	fmt.Println()
}

func saveSession(cfg *config.Config, startedAt time.Time, summary session.Summary) error {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	res := summary.Result
	_, err = store.Insert(&history.Record{
		StartedAt:         startedAt,
		Endpoint:          cfg.Endpoint,
		DurationSeconds:   summary.Duration.Seconds(),
		FramesSent:        summary.FramesSent,
		Prediction:        res.Prediction,
		Confidence:        res.Confidence,
		AIProbability:     res.Score(),
		ProcessingSeconds: res.ProcessingTimeSeconds,
		Live:              summary.Live,
	})
	return err
}

func promptString(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptInt(r *bufio.Reader, label string, defaultValue int) int {
	fmt.Printf("%s (default %d): ", label, defaultValue)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue
	}
	if v, err := strconv.Atoi(line); err == nil {
		return v
	}
	fmt.Printf("Not a number, using %d\n", defaultValue)
	return defaultValue
}
