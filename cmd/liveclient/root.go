package main

import (
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// logDir receives plain copies of all status lines when set.
	logDir string
	// dbPath is where session history is stored.
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "liveclient",
	Short: "Webcam liveness streaming client for the Moveris detection service",
	Long: `liveclient streams webcam frames over a websocket to a remote
liveness/AI-detection service and renders the returned predictions.

Configuration comes from the environment (a .env file is honored), with
command-line flags taking precedence. The secret key is read from
MOVERIS_SECRET_KEY or prompted for at startup.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for plain-text session logs (console only when empty)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the session history database")
}
