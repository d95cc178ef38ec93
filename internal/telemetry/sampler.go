package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start when the sampler is active.
var ErrAlreadyRunning = errors.New("sampler already running")

// ErrStopped is returned by Start after Stop has been called. A sampler runs
// one window; mixing time bases from several windows would corrupt the
// buffer's timeline.
var ErrStopped = errors.New("sampler already stopped")

const stopJoinTimeout = 5 * time.Second

// Sampler collects GPU telemetry in a background goroutine at a fixed
// interval. The sample buffer is written only by the sampling goroutine and
// read only after Stop returns, so it needs no locking. Everything live
// status readers touch while sampling is in progress (resolved backend,
// device metadata, latest sample) is published under statusMu.
type Sampler struct {
	deviceIndex int
	interval    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}

	samples []Sample

	statusMu sync.Mutex
	backend  string
	metadata Metadata
	latest   *Sample

	// resolve is replaced in tests to inject a fake backend.
	resolve func() Backend
}

// NewSampler creates a sampler for the given device. The interval must be
// positive.
func NewSampler(deviceIndex int, interval time.Duration, logger *slog.Logger) (*Sampler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %s", interval)
	}

	s := &Sampler{
		deviceIndex: deviceIndex,
		interval:    interval,
		logger:      logger.With("component", "telemetry"),
		backend:     BackendUnresolved,
	}
	s.resolve = s.resolveBackend
	return s, nil
}

// Start launches the sampling goroutine. Backend resolution happens inside
// the goroutine so Start returns immediately. A sampler cannot be restarted
// after Stop.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.stopped {
		return ErrStopped
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
	return nil
}

// Stop signals the sampling goroutine and waits for it to drain. It is safe
// to call multiple times and before Start; extra calls are no-ops. If the
// goroutine does not finish within five seconds (a hung nvidia-smi child,
// typically), Stop abandons it and returns.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("sampling goroutine did not stop in time, abandoning", "timeout", stopJoinTimeout)
	}
}

func (s *Sampler) run(stop, done chan struct{}) {
	defer close(done)

	backend := s.resolve()
	defer backend.Close()

	s.statusMu.Lock()
	s.backend = backend.Name()
	s.metadata = backend.Metadata()
	s.statusMu.Unlock()
	s.logger.Info("telemetry sampling started",
		"backend", backend.Name(),
		"device", s.deviceIndex,
		"interval", s.interval)

	start := time.Now()
	s.capture(backend, start)

	for {
		select {
		case <-stop:
			return
		case <-time.After(s.interval):
			s.capture(backend, start)
		}
	}
}

func (s *Sampler) capture(backend Backend, start time.Time) {
	reading, ok := backend.Read()
	if !ok {
		return
	}

	sample := reading.at(time.Since(start).Seconds())
	s.samples = append(s.samples, sample)

	s.statusMu.Lock()
	copied := sample
	s.latest = &copied
	s.statusMu.Unlock()
}

func (s *Sampler) resolveBackend() Backend {
	nvml, err := newNVMLBackend(s.deviceIndex)
	if err == nil {
		return nvml
	}
	s.logger.Info("NVML unavailable, falling back to nvidia-smi polling", "err", err)
	return newSMIBackend(s.deviceIndex, s.logger)
}

// Samples returns the collected buffer. Call only after Stop has returned.
func (s *Sampler) Samples() []Sample { return s.samples }

// Backend reports which backend the sampler resolved to. Safe to call while
// sampling is in progress.
func (s *Sampler) Backend() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.backend
}

// DeviceMetadata reports static device information captured at resolution.
// Safe to call while sampling is in progress.
func (s *Sampler) DeviceMetadata() Metadata {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.metadata
}

// Latest returns a copy of the most recent sample, or false if none was
// collected yet. Safe to call while sampling is in progress.
func (s *Sampler) Latest() (Sample, bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if s.latest == nil {
		return Sample{}, false
	}
	return *s.latest, true
}
