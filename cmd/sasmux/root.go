package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dewi-tim/sasmux/internal/config"
	"github.com/dewi-tim/sasmux/internal/logging"
)

var (
	// Global flags
	cfg      = config.Default()
	headless bool
	quiet    bool
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "sasmux",
	Short: "Stream, mix and inspect game audio",
	Long: `sasmux drives a software mixing engine: streaming decoders for RIFF
PCM, MP3 and ADTS AAC files, voice instances with sub-mixes, and a
segmented heap backing every buffer.

Every command shares the engine settings below. --headless renders into
a null device instead of the sound card.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if headless {
			cfg.Backend = config.BackendNull
		}
		l, err := logging.New(cfg.LogLevel, cfg.LogDev)
		if err != nil {
			return err
		}
		logging.Set(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.L().Sync()
	},
}

func init() {
	cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Render into a null device")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
