// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// Session is one browser tab implementing schemas.ActionService. Element refs
// handed out by Snapshot stay valid until the next snapshot or navigation.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	cfg     config.BrowserConfig
	catalog schemas.ActionCatalog

	mu       sync.Mutex
	refs     map[string]struct{}
	isClosed bool
	onClose  func()
}

var _ schemas.ActionService = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", id)),
		cfg:     cfg,
		catalog: DefaultCatalog(),
		refs:    make(map[string]struct{}),
		onClose: onClose,
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Catalog returns the operations negotiated for this session.
func (s *Session) Catalog() schemas.ActionCatalog { return s.catalog }

// Execute performs one validated action. An error return means the session
// itself is unusable; ordinary action failures and timeouts are reported in
// the outcome.
func (s *Session) Execute(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	if err := s.alive(); err != nil {
		return schemas.ActionOutcome{}, err
	}

	s.logger.Debug("Executing action", zap.String("action", req.Action))

	switch req.Action {
	case "navigate":
		return s.doNavigate(ctx, req)
	case "click":
		return s.doClick(ctx, req)
	case "fill":
		return s.doFill(ctx, req)
	case "press_key":
		return s.doPressKey(ctx, req)
	case "get_text":
		return s.doGetText(ctx, req)
	case "wait_for":
		return s.doWaitFor(ctx, req)
	case "snapshot":
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return schemas.ActionOutcome{}, err
		}
		return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: snap.Digest}, nil
	default:
		// Validation happens upstream; an unknown action here is a harness bug.
		return schemas.ActionOutcome{
			Status: schemas.OutcomeFailure,
			Error:  fmt.Sprintf("action %q is not implemented by this session", req.Action),
		}, nil
	}
}

func (s *Session) doNavigate(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	url, _ := req.StringParam("url")

	navCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.NavigationTimeout > 0 {
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(err, fmt.Sprintf("navigation to %s failed", url))
	}

	// Navigation invalidates all refs from the previous document.
	s.mu.Lock()
	s.refs = make(map[string]struct{})
	s.mu.Unlock()

	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: "navigated to " + url}, nil
}

func (s *Session) doClick(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	ref, _ := req.StringParam("ref")
	if out, ok := s.checkRef(ref); !ok {
		return out, nil
	}
	if err := s.run(ctx, chromedp.Click(refSelector(ref), chromedp.ByQuery)); err != nil {
		return s.classify(err, fmt.Sprintf("click on %s failed", ref))
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: "clicked " + ref}, nil
}

func (s *Session) doFill(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	ref, _ := req.StringParam("ref")
	text, _ := req.StringParam("text")
	if out, ok := s.checkRef(ref); !ok {
		return out, nil
	}
	sel := refSelector(ref)
	err := s.run(ctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(err, fmt.Sprintf("typing into %s failed", ref))
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: "filled " + ref}, nil
}

func (s *Session) doPressKey(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	name, _ := req.StringParam("key")
	key, ok := keyByName(name)
	if !ok {
		return schemas.ActionOutcome{
			Status: schemas.OutcomeFailure,
			Error:  fmt.Sprintf("unknown key %q; use Enter, Tab, Escape, Backspace, or a single character", name),
		}, nil
	}
	if err := s.run(ctx, chromedp.KeyEvent(key)); err != nil {
		return s.classify(err, fmt.Sprintf("pressing %s failed", name))
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: "pressed " + name}, nil
}

func (s *Session) doGetText(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	ref, _ := req.StringParam("ref")
	if out, ok := s.checkRef(ref); !ok {
		return out, nil
	}
	var text string
	if err := s.run(ctx, chromedp.Text(refSelector(ref), &text, chromedp.ByQuery)); err != nil {
		return s.classify(err, fmt.Sprintf("reading text of %s failed", ref))
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: text}, nil
}

func (s *Session) doWaitFor(ctx context.Context, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	text, _ := req.StringParam("text")

	timeout := 10 * time.Second
	if raw, ok := req.Params["timeout_seconds"]; ok {
		if secs, ok := raw.(float64); ok && secs > 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}

	expr := fmt.Sprintf(`document.body && document.body.innerText.includes(%q)`, text)
	err := s.run(ctx, chromedp.Poll(expr, nil, chromedp.WithPollingTimeout(timeout)))
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return schemas.ActionOutcome{
				Status: schemas.OutcomeTimeout,
				Error:  fmt.Sprintf("text %q did not appear within %s", text, timeout),
			}, nil
		}
		return s.classify(err, fmt.Sprintf("waiting for %q failed", text))
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeSuccess, Result: fmt.Sprintf("text %q is visible", text)}, nil
}

// Snapshot captures a fresh digest of the page and refreshes element refs.
func (s *Session) Snapshot(ctx context.Context) (schemas.PageSnapshot, error) {
	if err := s.alive(); err != nil {
		return schemas.PageSnapshot{}, err
	}

	max := s.cfg.SnapshotMaxElements
	if max <= 0 {
		max = 50
	}

	var payload snapshotPayload
	script := fmt.Sprintf(snapshotScript, max)
	if err := s.run(ctx, chromedp.Evaluate(script, &payload)); err != nil {
		return schemas.PageSnapshot{}, fmt.Errorf("page snapshot failed: %w", err)
	}

	s.mu.Lock()
	s.refs = refSet(payload)
	s.mu.Unlock()

	s.logger.Debug("Page snapshot captured",
		zap.String("url", payload.URL),
		zap.Int("elements", len(payload.Elements)))

	return schemas.PageSnapshot{
		URL:    payload.URL,
		Title:  payload.Title,
		Digest: buildDigest(payload),
	}, nil
}

// Close terminates the session. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// -- internals --

func (s *Session) alive() error {
	s.mu.Lock()
	closed := s.isClosed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session %s is closed", s.id)
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("session %s lost: %w", s.id, err)
	}
	return nil
}

// run executes chromedp actions under both the session lifetime and the
// caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// classify maps an execution error onto the outcome taxonomy. A dead session
// context means the service itself is lost and surfaces as an error; caller
// deadlines become timeout outcomes; everything else is an action failure.
func (s *Session) classify(err error, detail string) (schemas.ActionOutcome, error) {
	if s.ctx.Err() != nil {
		return schemas.ActionOutcome{}, fmt.Errorf("session %s lost: %w", s.id, s.ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.ActionOutcome{Status: schemas.OutcomeTimeout, Error: fmt.Sprintf("%s: %v", detail, err)}, nil
	}
	return schemas.ActionOutcome{Status: schemas.OutcomeFailure, Error: fmt.Sprintf("%s: %v", detail, err)}, nil
}

// checkRef verifies the ref was issued by the latest snapshot.
func (s *Session) checkRef(ref string) (schemas.ActionOutcome, bool) {
	s.mu.Lock()
	_, ok := s.refs[ref]
	s.mu.Unlock()
	if !ok {
		return schemas.ActionOutcome{
			Status: schemas.OutcomeFailure,
			Error:  fmt.Sprintf("ref %q is not in the current snapshot; take a fresh snapshot first", ref),
		}, false
	}
	return schemas.ActionOutcome{}, true
}

// keyByName resolves a human-readable key name to the chromedp key rune.
func keyByName(name string) (string, bool) {
	switch name {
	case "Enter", "enter":
		return kb.Enter, true
	case "Tab", "tab":
		return kb.Tab, true
	case "Escape", "escape", "Esc":
		return kb.Escape, true
	case "Backspace", "backspace":
		return kb.Backspace, true
	case "Delete", "delete":
		return kb.Delete, true
	case "ArrowDown":
		return kb.ArrowDown, true
	case "ArrowUp":
		return kb.ArrowUp, true
	}
	if len([]rune(name)) == 1 {
		return name, true
	}
	return "", false
}

// combineContext derives a context from the session context (which carries
// the chromedp target) that is also cancelled when the request context ends.
func combineContext(sessionCtx, reqCtx context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := reqCtx.Deadline(); ok {
		ctx, cancel = context.WithDeadline(sessionCtx, deadline)
	} else {
		ctx, cancel = context.WithCancel(sessionCtx)
	}
	stop := context.AfterFunc(reqCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
