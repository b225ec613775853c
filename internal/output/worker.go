package output

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/pcm"
)

// State is the lifecycle state of a Worker.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// ThreadParams describes the render goroutine. Priority, StackSize and CPU
// are recorded for callers that report them; the Go runtime schedules the
// goroutine itself. LockOSThread pins it to one OS thread.
type ThreadParams struct {
	Priority     int
	StackSize    int
	CPU          int
	LockOSThread bool
}

// RenderFunc fills one grain buffer.
type RenderFunc func(buf []int16)

// WorkerConfig configures one Start.
type WorkerConfig struct {
	Name   string
	Port   PortParams
	Thread ThreadParams
	Render RenderFunc
}

// Worker owns a render goroutine, its port and its two grain buffers.
//
// The loop renders into buffer i, submits it, and flips to the other buffer.
// Since Output blocks until the previous grain drained, the buffer being
// rendered is never the one the port is reading.
type Worker struct {
	opener Opener
	heap   *heap.Heap
	log    *zap.Logger

	// ctl serializes Start and Stop.
	ctl sync.Mutex

	state  atomic.Int32
	abort  atomic.Bool
	gate   *Gate
	grains atomic.Uint64
	index  atomic.Int32

	mu   sync.Mutex
	port Port
	err  error
	done chan struct{}
	quit chan struct{}
	bufs [2][]int16
	ptrs [2]heap.Ptr

	wg sync.WaitGroup
}

// NewWorker returns a stopped worker whose buffers come from h.
func NewWorker(opener Opener, h *heap.Heap, log *zap.Logger) *Worker {
	if log == nil {
		log = logging.Named("output")
	}
	closed := make(chan struct{})
	close(closed)
	return &Worker{
		opener: opener,
		heap:   h,
		log:    log,
		gate:   NewGate(true),
		done:   closed,
	}
}

// Start allocates the grain buffers, launches the render goroutine and waits
// for it to open its port. Any failure leaves the worker stopped with
// nothing allocated.
func (w *Worker) Start(cfg WorkerConfig) error {
	const op = "output.Start"

	w.ctl.Lock()
	defer w.ctl.Unlock()

	if State(w.state.Load()) != StateStopped || w.hasBuffers() {
		return errs.New(errs.KindState, op, errs.CodeBusy, "worker %q already started", cfg.Name)
	}
	if cfg.Render == nil {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "nil render function")
	}
	if err := cfg.Port.Validate(); err != nil {
		return err
	}

	if err := w.allocBuffers(cfg.Port.BufferSamples()); err != nil {
		return err
	}

	quit := make(chan struct{})
	done := make(chan struct{})
	ready := make(chan error, 1)

	w.mu.Lock()
	w.err = nil
	w.quit = quit
	w.done = done
	w.mu.Unlock()

	w.abort.Store(false)
	w.gate.Open()
	w.grains.Store(0)
	w.index.Store(0)
	w.state.Store(int32(StateRunning))

	w.wg.Add(1)
	go w.run(cfg, quit, done, ready)

	if err := <-ready; err != nil {
		w.wg.Wait()
		w.state.Store(int32(StateStopped))
		return multierr.Append(err, w.freeBuffers())
	}
	w.log.Debug("worker started",
		zap.String("name", cfg.Name),
		zap.Stringer("port", cfg.Port.Class),
		zap.Int("grain", cfg.Port.Grain),
		zap.Int("rate", cfg.Port.SampleRate))
	return nil
}

// Stop raises the abort flag, joins the goroutine and frees the buffers.
// Stopping a stopped worker is a no-op.
func (w *Worker) Stop() error {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if State(w.state.Load()) == StateStopped && !w.hasBuffers() {
		return nil
	}

	w.state.Store(int32(StateStopping))
	w.abort.Store(true)
	w.mu.Lock()
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.state.Store(int32(StateStopped))
	return w.freeBuffers()
}

// Pause makes the loop block before its next grain.
func (w *Worker) Pause() { w.gate.Close() }

// Resume releases a paused loop.
func (w *Worker) Resume() { w.gate.Open() }

// Paused reports whether the loop is held.
func (w *Worker) Paused() bool { return !w.gate.IsOpen() }

// State returns the lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Err returns the error that ended the loop, if any.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Done is closed when the current loop exits.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Grains counts grains submitted since Start.
func (w *Worker) Grains() uint64 { return w.grains.Load() }

// BufferIndex is the buffer the loop renders next.
func (w *Worker) BufferIndex() int { return int(w.index.Load()) }

// SetVolume forwards to the open port.
func (w *Worker) SetVolume(left, right int) error {
	w.mu.Lock()
	p := w.port
	w.mu.Unlock()
	if p == nil {
		return errs.New(errs.KindState, "output.SetVolume", errs.CodeNotInitialized, "no open port")
	}
	return p.SetVolume(left, right)
}

func (w *Worker) run(cfg WorkerConfig, quit <-chan struct{}, done chan<- struct{}, ready chan<- error) {
	defer w.wg.Done()
	defer close(done)

	if cfg.Thread.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	port, err := w.opener.Open(cfg.Port)
	if err != nil {
		ready <- err
		return
	}
	if err := port.SetVolume(VolumeMax, VolumeMax); err != nil {
		w.log.Warn("set port volume", zap.String("name", cfg.Name), zap.Error(err))
	}

	w.mu.Lock()
	w.port = port
	bufs := w.bufs
	w.mu.Unlock()
	ready <- nil

	idx := 0
	for !w.abort.Load() {
		if !w.gate.Wait(quit) || w.abort.Load() {
			break
		}
		buf := bufs[idx]
		cfg.Render(buf)
		if err := port.Output(buf); err != nil {
			w.fail(cfg.Name, err)
			break
		}
		idx ^= 1
		w.index.Store(int32(idx))
		w.grains.Add(1)
	}

	if err := port.Output(nil); err != nil {
		w.log.Debug("final flush", zap.String("name", cfg.Name), zap.Error(err))
	}
	if err := port.Release(); err != nil {
		w.log.Warn("release port", zap.String("name", cfg.Name), zap.Error(err))
	}

	w.mu.Lock()
	w.port = nil
	w.mu.Unlock()

	// A loop that died on its own lands in Stopped; Stop still owns the
	// buffers.
	w.state.CompareAndSwap(int32(StateRunning), int32(StateStopped))
}

func (w *Worker) fail(name string, err error) {
	w.log.Error("port output failed, stopping render loop", zap.String("name", name), zap.Error(err))
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *Worker) allocBuffers(samples int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.bufs {
		b, p, err := w.heap.AllocBytes(samples*pcm.BytesPerSample, 64)
		if err != nil {
			for j := 0; j < i; j++ {
				err = multierr.Append(err, w.heap.Free(w.ptrs[j]))
				w.bufs[j], w.ptrs[j] = nil, 0
			}
			return err
		}
		w.bufs[i] = pcm.Int16s(b)
		pcm.Silence(w.bufs[i])
		w.ptrs[i] = p
	}
	return nil
}

func (w *Worker) freeBuffers() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	for i := range w.bufs {
		if w.ptrs[i] != 0 {
			err = multierr.Append(err, w.heap.Free(w.ptrs[i]))
		}
		w.bufs[i], w.ptrs[i] = nil, 0
	}
	return err
}

func (w *Worker) hasBuffers() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ptrs[0] != 0
}
