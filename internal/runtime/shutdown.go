// Package runtime provides signal handling and ordered cleanup for the
// CLI process. A run in progress gets its context canceled on SIGINT
// or SIGTERM, which tears down task processes and persistent dev
// servers; cleanup handlers then flush caches and close stores.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joss/chore/internal/logging"
)

// ShutdownFunc is one cleanup step run during shutdown.
type ShutdownFunc func(ctx context.Context) error

// DefaultShutdownTimeout bounds total cleanup time.
const DefaultShutdownTimeout = 10 * time.Second

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager cancels the process context on the first signal and
// runs registered cleanup handlers in LIFO order.
type ShutdownManager struct {
	mu       sync.Mutex
	handlers []namedHandler

	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	log *logging.Logger
}

// NewShutdownManager creates a manager with the given cleanup timeout.
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logging.New("runtime"),
	}
}

// Register adds a cleanup handler. Handlers run in reverse
// registration order.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// RegisterSimple adds a handler without an error return.
func (m *ShutdownManager) RegisterSimple(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Context is canceled when shutdown begins. Runs execute under it.
func (m *ShutdownManager) Context() context.Context {
	return m.ctx
}

// Done is closed when cleanup has finished.
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// ListenForSignals cancels the context on the first SIGINT or SIGTERM
// and runs cleanup. A second signal kills the process immediately.
func (m *ShutdownManager) ListenForSignals() {
	sigC := make(chan os.Signal, 2)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigC
		m.log.Info("signal_received", map[string]any{"signal": sig.String()})
		go m.Shutdown()

		<-sigC
		m.log.Warn("signal_forced_exit", nil, nil)
		os.Exit(130)
	}()
}

// Shutdown cancels the context and runs cleanup handlers once.
func (m *ShutdownManager) Shutdown() {
	m.once.Do(m.run)
}

// WaitForShutdown blocks until cleanup has finished.
func (m *ShutdownManager) WaitForShutdown() {
	<-m.done
}

func (m *ShutdownManager) run() {
	defer close(m.done)
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			m.log.Warn("shutdown_timeout", map[string]any{"skipped": h.name}, ctx.Err())
			continue
		}
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			m.log.Warn("shutdown_handler_failed", map[string]any{"handler": h.name}, err)
		} else {
			m.log.Debug("shutdown_handler_done", map[string]any{
				"handler":     h.name,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		}
	}
}
