// File: internal/browser/manager.go

// Package browser provides the chromedp-backed action-execution service:
// a Manager owning the browser process and Sessions implementing the
// per-scenario action catalog.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the browser allocator and hands out isolated sessions, one per
// scenario. Browser startup is deferred until the first session is requested.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
	wg       sync.WaitGroup

	initOnce sync.Once
}

var _ schemas.SessionProvider = (*Manager)(nil)

// NewManager creates a browser manager. No browser process is started yet.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		m.logger.Info("Starting browser allocator",
			zap.Bool("headless", m.cfg.Headless),
			zap.Int("viewport_width", m.cfg.ViewportWidth),
			zap.Int("viewport_height", m.cfg.ViewportHeight))

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), m.allocatorOptions()...)
	})
}

// allocatorOptions merges the chromedp defaults with configuration. Extra
// args use the --name or --name=value command line form.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	for _, arg := range m.cfg.Args {
		name := strings.TrimPrefix(arg, "--")
		if name == "" {
			continue
		}
		if k, v, found := strings.Cut(name, "="); found {
			opts = append(opts, chromedp.Flag(k, v))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// Acquire creates a fresh, isolated browser session. The caller owns the
// session and must Close it; sessions are never reused across scenarios.
func (m *Manager) Acquire(ctx context.Context) (schemas.ActionService, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Page-side JavaScript errors are invisible to step outcomes; surface them
	// in the debug log so failed scenarios can be diagnosed.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventExceptionThrown:
			m.logger.Debug("Page exception", zap.String("detail", e.ExceptionDetails.Text))
		case *runtime.EventConsoleAPICalled:
			if e.Type == runtime.APITypeError {
				m.logger.Debug("Page console error", zap.Int("args", len(e.Args)))
			}
		}
	})

	// Starting the target verifies that the browser process is actually up.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.wg.Add(1)
	var session *Session
	session = newSession(tabCtx, tabCancel, m.cfg, m.logger, func() {
		m.mu.Lock()
		delete(m.sessions, session.ID())
		m.mu.Unlock()
		m.wg.Done()
	})

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("Browser session created", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes all remaining sessions and stops the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager")

	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Error closing session during shutdown",
				zap.String("session_id", s.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for sessions to close")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shutdown complete")
	return nil
}
