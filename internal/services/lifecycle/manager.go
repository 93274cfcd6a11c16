package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc releases one component's resources. It receives a context
// that carries the overall shutdown deadline.
type ShutdownFunc func(ctx context.Context) error

type registration struct {
	name string
	stop ShutdownFunc
}

// Manager owns the teardown sequence of the process. Components register in
// the order they were brought up and are stopped in the reverse order, so
// the HTTP server drains before the stores underneath it close.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu            sync.Mutex
	registrations []registration
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a component to the teardown sequence.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = append(m.registrations, registration{name: name, stop: fn})
}

// Listen arms the SIGTERM/SIGINT handler; the first signal invokes cancel
// and lets main fall through to Shutdown.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}

// Shutdown stops every registered component in reverse registration order
// under the configured deadline. A failing component is logged and skipped;
// the rest still get their chance to stop, and the collected errors come
// back joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var failures error
	for i := len(m.registrations) - 1; i >= 0; i-- {
		reg := m.registrations[i]
		if err := reg.stop(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", reg.name), zap.Error(err))
			failures = errors.Join(failures, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", reg.name))
	}
	return failures
}
