package player

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/stream"
)

const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultVolume       = 1.0
)

// Player is the high-level interface for file playback.
type Player interface {
	// Load opens a decoder on a file path.
	Load(path string) error
	// Unload closes the current decoder.
	Unload()

	// Play starts or resumes playback.
	Play() error
	// Pause pauses playback.
	Pause()
	// Stop stops playback.
	Stop()
	// Toggle toggles between play and pause.
	Toggle()

	// Seek seeks to a position in the track.
	Seek(pos time.Duration)
	// SeekRelative seeks relative to current position.
	SeekRelative(delta time.Duration)

	// SetVolume sets the volume (0.0 - 1.0).
	SetVolume(vol float64)

	// Track returns metadata about the current track.
	Track() *Track
	// Info returns current playback information.
	Info() PlaybackInfo
	// IsLoaded returns true if a track is loaded.
	IsLoaded() bool
	// State returns the current playback state.
	State() PlayState

	// Subscribe returns a channel that receives playback info updates.
	Subscribe() <-chan PlaybackInfo
	// Unsubscribe removes a subscription channel.
	Unsubscribe(ch <-chan PlaybackInfo)

	// Close releases all resources.
	Close() error
}

// DecoderSource opens and closes streaming decoders; *audio.Context is one.
type DecoderSource interface {
	OpenDecoder(path string) (*stream.Decoder, error)
	CloseDecoder(d *stream.Decoder) error
}

// Option customizes a StreamPlayer.
type Option func(*StreamPlayer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *StreamPlayer) { p.log = l }
}

// WithTickInterval sets how often subscribers receive updates.
func WithTickInterval(d time.Duration) Option {
	return func(p *StreamPlayer) { p.tick = d }
}

// StreamPlayer implements Player with one streaming decoder at a time.
type StreamPlayer struct {
	src  DecoderSource
	log  *zap.Logger
	tick time.Duration

	// mu guards the decoder and track across loads.
	mu     sync.Mutex
	dec    *stream.Decoder
	track  *Track
	volume float64
	closed bool
	// pendingSeek is the unit a seek chose while no decode loop ran, or -1.
	pendingSeek int

	ctx    context.Context
	cancel context.CancelFunc

	subscribers map[chan PlaybackInfo]struct{}
	subMu       sync.RWMutex

	// WaitGroup to track tickLoop goroutine
	tickWg  sync.WaitGroup
	ticking bool
}

// New creates a player drawing decoders from src.
func New(src DecoderSource, opts ...Option) *StreamPlayer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &StreamPlayer{
		src:         src,
		tick:        DefaultTickInterval,
		volume:      DefaultVolume,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[chan PlaybackInfo]struct{}),
		pendingSeek: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logging.Named("player")
	}
	return p
}

// Load opens path, replacing the current track.
func (p *StreamPlayer) Load(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errClosed("player.Load")
	}
	if err := p.unloadLocked(); err != nil {
		p.log.Warn("unload previous track", zap.Error(err))
	}

	d, err := p.src.OpenDecoder(path)
	if err != nil {
		return err
	}
	track := NewTrack(path, d.Info())
	p.dec = d
	p.track = &track
	p.pendingSeek = -1

	p.log.Debug("track loaded", zap.String("path", path), zap.String("format", track.Format), zap.Duration("duration", track.Duration))
	return nil
}

// Unload stops playback and closes the decoder.
func (p *StreamPlayer) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.unloadLocked(); err != nil {
		p.log.Warn("unload track", zap.Error(err))
	}
}

func (p *StreamPlayer) unloadLocked() error {
	if p.dec == nil {
		return nil
	}
	err := p.src.CloseDecoder(p.dec)
	p.dec = nil
	p.track = nil
	return err
}

// Play starts or resumes playback.
func (p *StreamPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playLocked()
}

// playLocked starts or resumes playback (must be called with mu held).
func (p *StreamPlayer) playLocked() error {
	if p.dec == nil {
		return errs.New(errs.KindState, "player.Play", errs.CodeNotInitialized, "no track loaded")
	}

	switch p.dec.State() {
	case stream.StatusPaused:
		p.dec.Resume()
		return nil
	case stream.StatusPlaying:
		return nil
	}

	if err := p.dec.StartPlayback(); err != nil {
		return err
	}
	// StartPlayback rewinds and resets the port to full volume.
	p.applyVolumeLocked()
	if p.pendingSeek >= 0 {
		if err := p.dec.Seek(p.pendingSeek); err != nil {
			p.log.Warn("seek", zap.Int("unit", p.pendingSeek), zap.Error(err))
		}
		p.pendingSeek = -1
	}

	if !p.ticking {
		p.ticking = true
		p.tickWg.Add(1)
		go p.tickLoop()
	}
	return nil
}

// Pause pauses playback.
func (p *StreamPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dec != nil {
		p.dec.Pause()
	}
}

// Stop stops playback.
func (p *StreamPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
}

func (p *StreamPlayer) stopLocked() {
	if p.dec == nil {
		return
	}
	if err := p.dec.StopPlayback(); err != nil {
		p.log.Warn("decode loop ended with error", zap.String("path", p.dec.Path()), zap.Error(err))
	}
}

// Toggle toggles between play and pause.
func (p *StreamPlayer) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dec == nil {
		return
	}
	if p.dec.State() == stream.StatusPlaying {
		p.dec.Pause()
		return
	}
	if err := p.playLocked(); err != nil {
		p.log.Warn("toggle play", zap.Error(err))
	}
}

// Seek seeks to a position in the track. The position snaps to the unit
// that contains it.
func (p *StreamPlayer) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seekLocked(pos)
}

// SeekRelative seeks relative to current position.
func (p *StreamPlayer) SeekRelative(delta time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dec == nil {
		return
	}
	p.seekLocked(p.dec.Position() + delta)
}

func (p *StreamPlayer) seekLocked(pos time.Duration) {
	if p.dec == nil {
		return
	}
	rate := p.dec.Info().Codec.SampleRate
	grain := p.dec.Grain()
	if rate <= 0 || grain <= 0 {
		return
	}
	pos = max(pos, 0)
	unit := int(int64(pos) * int64(rate) / int64(time.Second) / int64(grain))
	unit = min(unit, p.dec.SeekLimit())
	switch p.dec.State() {
	case stream.StatusPlaying, stream.StatusPaused:
	default:
		p.pendingSeek = unit
		return
	}
	if err := p.dec.Seek(unit); err != nil {
		p.log.Warn("seek", zap.Duration("pos", pos), zap.Error(err))
	}
}

// SetVolume sets the volume (0.0 - 1.0).
func (p *StreamPlayer) SetVolume(vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = min(max(vol, 0), 1)
	p.applyVolumeLocked()
}

func (p *StreamPlayer) applyVolumeLocked() {
	if p.dec == nil {
		return
	}
	v := int(p.volume * output.VolumeMax)
	if err := p.dec.SetVolume(v, v); err != nil {
		p.log.Warn("set volume", zap.Error(err))
	}
}

// Track returns metadata about the current track.
func (p *StreamPlayer) Track() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.track
}

// Info returns current playback information.
func (p *StreamPlayer) Info() PlaybackInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.infoLocked()
}

func (p *StreamPlayer) infoLocked() PlaybackInfo {
	info := PlaybackInfo{State: StateStopped, Volume: p.volume}
	if p.dec == nil {
		return info
	}
	info.State = stateOf(p.dec.State())
	info.Position = p.dec.Position()
	info.Duration = p.dec.Duration()
	info.Units = p.dec.Units()
	info.UnitsDecoded = p.dec.UnitsDecoded()
	info.BufferIndex = p.dec.BufferIndex()
	return info
}

// IsLoaded returns true if a track is loaded.
func (p *StreamPlayer) IsLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.dec != nil
}

// State returns the current playback state.
func (p *StreamPlayer) State() PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dec == nil {
		return StateStopped
	}
	return stateOf(p.dec.State())
}

func stateOf(s stream.Status) PlayState {
	switch s {
	case stream.StatusPlaying:
		return StatePlaying
	case stream.StatusPaused:
		return StatePaused
	case stream.StatusExhausted:
		return StateEnded
	}
	return StateStopped
}

// Subscribe returns a channel that receives playback info updates.
func (p *StreamPlayer) Subscribe() <-chan PlaybackInfo {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	ch := make(chan PlaybackInfo, 1)
	if p.subscribers == nil {
		close(ch)
		return ch
	}
	p.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription channel.
func (p *StreamPlayer) Unsubscribe(ch <-chan PlaybackInfo) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for subCh := range p.subscribers {
		if subCh == ch {
			delete(p.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// tickLoop sends periodic playback info updates to subscribers until the
// stream stops or ends.
func (p *StreamPlayer) tickLoop() {
	defer p.tickWg.Done()

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			info := p.infoLocked()
			done := info.State == StateStopped || info.State == StateEnded
			if done {
				p.ticking = false
			}
			p.mu.Unlock()

			p.publish(info)
			if done {
				return
			}
		}
	}
}

func (p *StreamPlayer) publish(info PlaybackInfo) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	for ch := range p.subscribers {
		select {
		case ch <- info:
		default:
			// Replace the stale update so the last state always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- info:
			default:
			}
		}
	}
}

// Close releases all resources.
func (p *StreamPlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancel()
	p.stopLocked()
	p.mu.Unlock()

	// Wait for tickLoop goroutine to exit before closing channels
	p.tickWg.Wait()

	p.subMu.Lock()
	for ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
	p.subMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unloadLocked()
}

func errClosed(op string) error {
	return errs.New(errs.KindInvalidHandle, op, errs.CodeNotInitialized, "player closed")
}

// Ensure StreamPlayer implements Player
var _ Player = (*StreamPlayer)(nil)
