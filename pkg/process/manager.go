// Package process provides process lifecycle utilities
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/apkforge/apkforge/pkg/logger"
)

// Manager turns OS signals into context cancellation and runs shutdown
// handlers exactly once
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	signals          []os.Signal

	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	shutdown sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		logger:  log,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
	}
}

// RegisterShutdownHandler adds a handler. Handlers run in reverse
// registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start returns a context that is canceled when ctx is done or the
// process receives a termination signal
func (m *Manager) Start(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		cancel()
		return ctx
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)
		defer cancel()

		select {
		case <-ctx.Done():
		case <-stop:
		case sig := <-sigChan:
			m.logger.Info("Received signal, canceling builds", logger.WithField("signal", sig))
		}
	}()

	return ctx
}

// Stop stops listening for signals and runs the shutdown handlers
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		close(m.stop)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.handleShutdown()
}

// IsRunning reports whether the manager is listening for signals
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.shutdown.Do(func() {
		m.mu.Lock()
		handlers := make([]func(), len(m.shutdownHandlers))
		copy(handlers, m.shutdownHandlers)
		m.mu.Unlock()

		m.logger.Debug("Running shutdown handlers", logger.WithField("count", len(handlers)))
		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
	})
}
