// Package player provides stream playback on top of the audio context.
package player

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dewi-tim/sasmux/internal/storage"
	"github.com/dewi-tim/sasmux/internal/stream"
)

// Track represents metadata about an audio file.
type Track struct {
	// File path
	Path string

	Title string // File name without extension
	Album string // Parent directory name

	// Format information
	Format     string // e.g., "RIFF/PCM", "ADTS/AAC"
	Channels   int
	SampleRate int

	// Timing information
	Duration  time.Duration
	LoopPoint time.Duration // Position where the smpl loop begins (0 if no loop)
	HasLoop   bool
}

// NewTrack describes path from its parsed stream header.
func NewTrack(path string, info stream.Info) Track {
	base := filepath.Base(path)
	t := Track{
		Path:       path,
		Title:      strings.TrimSuffix(base, filepath.Ext(base)),
		Album:      filepath.Base(filepath.Dir(path)),
		Format:     fmt.Sprintf("%s/%s", strings.ToUpper(info.Container.String()), info.Codec.Kind),
		Channels:   info.Codec.Channels,
		SampleRate: info.Codec.SampleRate,
		Duration:   info.Duration(),
	}
	if info.Loop != nil && info.Codec.SampleRate > 0 {
		t.HasLoop = true
		t.LoopPoint = time.Duration(info.Loop.Start) * time.Second / time.Duration(info.Codec.SampleRate)
	}
	return t
}

// ReadTrackMetadata probes path without opening a decoder.
func ReadTrackMetadata(s storage.Storage, path string) (Track, error) {
	info, err := stream.Probe(s, path)
	if err != nil {
		return Track{}, err
	}
	return NewTrack(path, info), nil
}

// PlayState represents the current playback state.
type PlayState int

const (
	// StateStopped indicates playback is stopped.
	StateStopped PlayState = iota
	// StatePlaying indicates playback is active.
	StatePlaying
	// StatePaused indicates playback is paused.
	StatePaused
	// StateEnded indicates the stream played to its end.
	StateEnded
)

// String returns a human-readable name for the play state.
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// PlaybackInfo contains information about the current playback.
type PlaybackInfo struct {
	State PlayState

	Position time.Duration
	Duration time.Duration

	// Decoder progress
	Units        int
	UnitsDecoded uint64
	BufferIndex  int

	Volume float64 // 0.0 - 1.0
}

// Progress returns the playback progress as a value between 0.0 and 1.0.
func (p *PlaybackInfo) Progress() float64 {
	if p.Duration == 0 {
		return 0.0
	}
	progress := float64(p.Position) / float64(p.Duration)
	if progress > 1.0 {
		return 1.0
	}
	if progress < 0.0 {
		return 0.0
	}
	return progress
}

// Remaining returns the remaining playback time.
func (p *PlaybackInfo) Remaining() time.Duration {
	remaining := p.Duration - p.Position
	if remaining < 0 {
		return 0
	}
	return remaining
}
