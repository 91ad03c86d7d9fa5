package main

import (
	"time"

	"github.com/spf13/cobra"

	"liveclient/internal/logger"
	"liveclient/internal/simulator"
)

type simulateOptions struct {
	Addr       string
	Token      string
	Frames     int
	AckDelay   time.Duration
	FailAuth   bool
	ErrorAfter int
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a local stand-in for the detection service",
	Long: `simulate serves the detection protocol on a local port so the
stream command can be exercised without network access or credentials:

    liveclient simulate --frames 50 &
    MOVERIS_WS_URL=ws://localhost:8765/ws/live/v1/ liveclient stream`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate()
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simOpts.Addr, "addr", ":8765", "Listen address")
	simulateCmd.Flags().StringVar(&simOpts.Token, "token", "", "Credential to require (empty accepts any)")
	simulateCmd.Flags().IntVar(&simOpts.Frames, "frames", 500, "Frames required before a result is emitted")
	simulateCmd.Flags().DurationVar(&simOpts.AckDelay, "ack-delay", 0, "Artificial delay before each frame ack")
	simulateCmd.Flags().BoolVar(&simOpts.FailAuth, "fail-auth", false, "Reject every credential")
	simulateCmd.Flags().IntVar(&simOpts.ErrorAfter, "error-after", 0, "Send an error once this many frames arrived (0 disables)")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate() error {
	log, err := logger.New(logDir)
	if err != nil {
		return err
	}
	defer log.Close()

	srv := simulator.New(simulator.Config{
		Token:          simOpts.Token,
		RequiredFrames: simOpts.Frames,
		AckDelay:       simOpts.AckDelay,
		FailAuth:       simOpts.FailAuth,
		ErrorAfter:     simOpts.ErrorAfter,
	}, log)

	return srv.ListenAndServe(simOpts.Addr)
}
