package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/player"
)

var playVolume float64

func init() {
	rootCmd.AddCommand(newPlayCmd())
}

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file>...",
		Short: "Stream audio files to the output device",
		Long: `The play command opens a streaming decoder on each file in turn and
plays it to the end. Interrupt stops playback.

Example:
  sasmux play bgm/title.wav
  sasmux play --volume 0.5 bgm/*.wav`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPlay(ctx, args)
		},
	}
	cmd.Flags().Float64Var(&playVolume, "volume", player.DefaultVolume, "Playback volume (0.0-1.0)")
	return cmd
}

func runPlay(ctx context.Context, args []string) (err error) {
	actx, err := audio.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio context: %w", err)
	}
	defer func() { err = multierr.Append(err, actx.Close()) }()

	p := player.New(actx)
	defer func() { err = multierr.Append(err, p.Close()) }()
	p.SetVolume(playVolume)

	updates := p.Subscribe()
	defer p.Unsubscribe(updates)

	for _, path := range args {
		if err := p.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		t := p.Track()
		printInfo("%s  [%s, %d Hz, %s]\n", t.Title, t.Format, t.SampleRate, formatClock(t.Duration))
		if err := p.Play(); err != nil {
			return err
		}
		if err := waitEnded(ctx, p, updates); err != nil {
			p.Stop()
			return err
		}
	}
	return nil
}

// waitEnded blocks until the loaded track ends or ctx is done.
func waitEnded(ctx context.Context, p player.Player, updates <-chan player.PlaybackInfo) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case info, ok := <-updates:
			if !ok {
				return nil
			}
			// A stale update from the previous track may still be queued.
			if info.State == player.StateEnded && p.State() == player.StateEnded {
				return nil
			}
		}
	}
}

// formatClock formats a duration as MM:SS.
func formatClock(d time.Duration) string {
	total := int(max(d, 0).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
