package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"liveclient/internal/config"
	"liveclient/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent session results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of sessions to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory() error {
	cfg := config.Load()
	if dbPath != "" {
		cfg.HistoryPath = dbPath
	}

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No sessions recorded yet.")
		return nil
	}

	live := color.New(color.FgGreen).Sprint("live")
	notLive := color.New(color.FgRed).Sprint("fail")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tVERDICT\tPREDICTION\tCONFIDENCE\tFRAMES\tDURATION")
	for _, rec := range records {
		verdict := notLive
		if rec.Live {
			verdict = live
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%d\t%.1fs\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			verdict, rec.Prediction, rec.Confidence, rec.FramesSent, rec.DurationSeconds)
	}
	return w.Flush()
}
