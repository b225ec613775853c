package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/library"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/player"
	"github.com/dewi-tim/sasmux/internal/ui"
)

var browseLogFile string

func init() {
	rootCmd.AddCommand(newBrowseCmd())
}

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [dir]",
		Short: "Browse a library and play it in the terminal monitor",
		Long: `The browse command scans a directory for RIFF, MP3 and ADTS files and
opens the terminal monitor: the library tree, a play queue, transport
controls and a live view of the mixer instances and heap.

Logs would corrupt the screen, so they are discarded unless --log-file is
given.

Example:
  sasmux browse ~/music/ost
  sasmux browse --log-file sasmux.log --log-level debug .`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(args)
		},
	}
	cmd.Flags().StringVar(&browseLogFile, "log-file", "", "Write logs to this file")
	return cmd
}

// browseLogger builds a file logger, or a no-op one without a path.
func browseLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{path}
	zcfg.ErrorOutputPaths = []string{path}
	return zcfg.Build()
}

func runBrowse(args []string) (err error) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	l, err := browseLogger(browseLogFile)
	if err != nil {
		return err
	}
	logging.Set(l)

	actx, err := audio.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio context: %w", err)
	}
	defer func() { err = multierr.Append(err, actx.Close()) }()

	p := player.New(actx)
	defer func() { err = multierr.Append(err, p.Close()) }()

	lib := library.New(dir)
	model := ui.New(p, lib, ui.WithMixer(ui.NewContextMixer(actx)))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
