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

const defaultTimeout = 15 * time.Second

// ShutdownFunc releases one component.
type ShutdownFunc func(ctx context.Context) error

// Runner is a background worker owned by the manager.
type Runner interface {
	Start()
	Stop(ctx context.Context)
}

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager owns process components and tears them down newest first.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook
	done  bool
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{timeout: timeout, logger: logger}
}

// Register adds a shutdown hook. Hooks registered after Shutdown run immediately.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	if !m.done {
		m.hooks = append(m.hooks, hook{name: name, fn: fn})
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	m.stop(ctx, hook{name: name, fn: fn})
}

// Run starts r and stops it on Shutdown.
func (m *Manager) Run(name string, r Runner) {
	r.Start()
	m.logger.Info("component started", zap.String("component", name))
	m.Register(name, func(ctx context.Context) error {
		r.Stop(ctx)
		return ctx.Err()
	})
}

// Shutdown runs every hook in reverse registration order within the timeout
// and joins their errors. Later calls are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := m.stop(ctx, hooks[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stop(ctx context.Context, h hook) error {
	started := time.Now()
	err := h.fn(ctx)
	fields := []zap.Field{zap.String("component", h.name), zap.Duration("took", time.Since(started))}
	if err != nil {
		m.logger.Error("shutdown hook failed", append(fields, zap.Error(err))...)
		return err
	}
	m.logger.Info("component stopped", fields...)
	return nil
}

// Listen derives a context cancelled on SIGINT or SIGTERM.
func (m *Manager) Listen(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
