package offline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// Signal is a manually driven Connectivity.
type Signal struct {
	online atomic.Bool
}

// NewSignal returns a signal starting in the given state.
func NewSignal(online bool) *Signal {
	signal := &Signal{}
	signal.online.Store(online)
	return signal
}

// IsOnline reports the current state.
func (s *Signal) IsOnline() bool {
	return s.online.Load()
}

// Set flips the state.
func (s *Signal) Set(online bool) {
	s.online.Store(online)
}

// Prober checks whether the record store is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Prober   Prober
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Monitor derives connectivity from periodic record-store probes and notifies reconnect handlers
// on every offline to online transition.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	online   atomic.Bool

	mu       sync.Mutex
	handlers []func(context.Context)
}

// NewMonitor builds a monitor that starts offline until the first probe succeeds.
func NewMonitor(cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:   cfg.Prober,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// IsOnline reports the result of the latest probe.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// OnReconnect registers a handler invoked synchronously after each offline to online transition.
func (m *Monitor) OnReconnect(handler func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Check probes once, updates the state and fires reconnect handlers on a transition.
func (m *Monitor) Check(ctx context.Context) bool {
	online := false
	if m.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.prober.Probe(probeCtx)
		cancel()
		if err != nil {
			m.logger.Debug("record store probe failed", zap.Error(err))
		}
		online = err == nil
	}

	previous := m.online.Swap(online)
	if previous == online {
		return online
	}
	if !online {
		m.logger.Warn("record store unreachable, switching to offline mode")
		return online
	}

	m.logger.Info("record store reachable again")
	m.mu.Lock()
	handlers := make([]func(context.Context), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()
	for _, handler := range handlers {
		handler(ctx)
	}
	return online
}

// Run probes on the configured interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
