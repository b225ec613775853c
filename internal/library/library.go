// Package library indexes the playable audio files under a directory.
package library

import (
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/player"
	"github.com/dewi-tim/sasmux/internal/storage"
)

// Extensions the scanner picks up.
var audioExtensions = []string{".at9", ".wav", ".mp3", ".aac"}

// Track represents a track in the library with full metadata.
type Track struct {
	Path       string
	Title      string
	Album      string
	Format     string
	Channels   int
	SampleRate int
	Duration   time.Duration
}

// Album is one directory of tracks sharing a format.
type Album struct {
	Name   string
	Format string
	Tracks []Track
}

// Format groups albums by container and codec, e.g. "RIFF/AT9".
type Format struct {
	Name   string
	Albums map[string]*Album
}

// Option customizes a Library.
type Option func(*Library)

// WithStorage replaces the host file system reader used for probing.
func WithStorage(s storage.Storage) Option {
	return func(l *Library) { l.storage = s }
}

// WithFS walks fsys instead of the host file system rooted at the library
// root. Paths are then relative to fsys.
func WithFS(fsys fs.FS) Option {
	return func(l *Library) { l.fsys = fsys }
}

// WithParallelism bounds the concurrent header probes.
func WithParallelism(n int) Option {
	return func(l *Library) { l.parallel = n }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Library) { l.log = log }
}

// Library represents an indexed audio library.
type Library struct {
	root     string
	fsys     fs.FS
	storage  storage.Storage
	parallel int
	log      *zap.Logger

	mu      sync.RWMutex
	formats map[string]*Format
	tracks  []Track // Flat list for quick access
	skipped int
}

// New creates a new library rooted at the given directory.
func New(root string, opts ...Option) *Library {
	l := &Library{
		root:     root,
		parallel: runtime.GOMAXPROCS(0),
		formats:  make(map[string]*Format),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.storage == nil {
		l.storage = storage.OS{}
	}
	if l.log == nil {
		l.log = logging.Named("library")
	}
	return l
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// Scan walks the library, probes every audio file header in parallel and
// rebuilds the index. Files whose header cannot be parsed are skipped.
// Returns the number of tracks found.
func (l *Library) Scan() (int, error) {
	paths, err := l.collect()
	if err != nil {
		return 0, err
	}

	found := make([]*Track, len(paths))
	var g errgroup.Group
	g.SetLimit(max(l.parallel, 1))
	for i, path := range paths {
		g.Go(func() error {
			meta, err := player.ReadTrackMetadata(l.storage, path)
			if err != nil {
				l.log.Debug("skip unreadable file", zap.String("path", path), zap.Error(err))
				return nil
			}
			found[i] = &Track{
				Path:       path,
				Title:      meta.Title,
				Album:      meta.Album,
				Format:     meta.Format,
				Channels:   meta.Channels,
				SampleRate: meta.SampleRate,
				Duration:   meta.Duration,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Clear existing data
	l.formats = make(map[string]*Format)
	l.tracks = make([]Track, 0, len(found))
	l.skipped = 0
	for _, t := range found {
		if t == nil {
			l.skipped++
			continue
		}
		l.tracks = append(l.tracks, *t)
		l.addTrack(*t)
	}

	// Sort tracks within each album
	for _, format := range l.formats {
		for _, album := range format.Albums {
			sort.Slice(album.Tracks, func(i, j int) bool {
				return album.Tracks[i].Title < album.Tracks[j].Title
			})
		}
	}

	l.log.Debug("library scanned",
		zap.String("root", l.root),
		zap.Int("tracks", len(l.tracks)),
		zap.Int("skipped", l.skipped))
	return len(l.tracks), nil
}

// collect lists candidate files in walk order, skipping hidden directories.
func (l *Library) collect() ([]string, error) {
	var paths []string
	visit := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if d.IsDir() {
			if path != "." && path != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isAudioFile(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	}

	if l.fsys == nil {
		return paths, filepath.WalkDir(l.root, visit)
	}
	return paths, fs.WalkDir(l.fsys, ".", visit)
}

// addTrack adds a track to the library hierarchy.
func (l *Library) addTrack(track Track) {
	format, ok := l.formats[track.Format]
	if !ok {
		format = &Format{
			Name:   track.Format,
			Albums: make(map[string]*Album),
		}
		l.formats[track.Format] = format
	}

	album, ok := format.Albums[track.Album]
	if !ok {
		album = &Album{
			Name:   track.Album,
			Format: track.Format,
		}
		format.Albums[track.Album] = album
	}
	album.Tracks = append(album.Tracks, track)
}

// Formats returns a sorted list of format names.
func (l *Library) Formats() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.formats))
	for name := range l.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Albums returns a sorted list of album names for a format.
func (l *Library) Albums(formatName string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	format, ok := l.formats[formatName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(format.Albums))
	for name := range format.Albums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tracks returns the sorted tracks of one album.
func (l *Library) Tracks(formatName, albumName string) []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	format, ok := l.formats[formatName]
	if !ok {
		return nil
	}
	album, ok := format.Albums[albumName]
	if !ok {
		return nil
	}
	return append([]Track(nil), album.Tracks...)
}

// AllTracks returns all tracks in walk order.
func (l *Library) AllTracks() []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Track, len(l.tracks))
	copy(result, l.tracks)
	return result
}

// TrackCount returns the total number of tracks.
func (l *Library) TrackCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.tracks)
}

// Skipped returns how many candidate files the last scan could not parse.
func (l *Library) Skipped() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.skipped
}

// isAudioFile checks if a filename has a supported extension.
func isAudioFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
