package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// newDetachedSession builds a Session without a live browser, enough for the
// paths that fail before reaching chromedp.
func newDetachedSession(t *testing.T) (*Session, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(ctx, cancel, config.BrowserConfig{SnapshotMaxElements: 50}, zap.NewNop(), nil)
	t.Cleanup(cancel)
	return s, cancel
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	for _, name := range []string{"navigate", "click", "fill", "press_key", "get_text", "wait_for", "snapshot"} {
		_, ok := catalog.Lookup(name)
		assert.True(t, ok, "catalog should offer %s", name)
	}

	nav, _ := catalog.Lookup("navigate")
	url, ok := nav.Param("url")
	require.True(t, ok)
	assert.True(t, url.Required)
	assert.Equal(t, schemas.ParamString, url.Type)

	wf, _ := catalog.Lookup("wait_for")
	timeout, ok := wf.Param("timeout_seconds")
	require.True(t, ok)
	assert.False(t, timeout.Required)
	assert.Equal(t, schemas.ParamNumber, timeout.Type)
}

func TestExecute_UnknownRefFailsWithoutBrowser(t *testing.T) {
	s, _ := newDetachedSession(t)

	out, err := s.Execute(context.Background(), schemas.ActionRequest{
		Action: "click",
		Params: map[string]any{"ref": "e9"},
	})

	require.NoError(t, err, "unknown ref is an action failure, not a service loss")
	assert.Equal(t, schemas.OutcomeFailure, out.Status)
	assert.Contains(t, out.Error, "e9")
	assert.Contains(t, out.Error, "snapshot")
}

func TestExecute_UnknownKeyFails(t *testing.T) {
	s, _ := newDetachedSession(t)

	out, err := s.Execute(context.Background(), schemas.ActionRequest{
		Action: "press_key",
		Params: map[string]any{"key": "HyperMegaKey"},
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFailure, out.Status)
}

func TestExecute_ClosedSessionIsServiceLoss(t *testing.T) {
	s, _ := newDetachedSession(t)
	require.NoError(t, s.Close(context.Background()))

	_, err := s.Execute(context.Background(), schemas.ActionRequest{Action: "snapshot"})
	assert.Error(t, err)
}

func TestExecute_CancelledSessionContextIsServiceLoss(t *testing.T) {
	s, cancel := newDetachedSession(t)
	cancel()

	_, err := s.Execute(context.Background(), schemas.ActionRequest{
		Action: "click",
		Params: map[string]any{"ref": "e1"},
	})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	closes := 0
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(ctx, cancel, config.BrowserConfig{}, zap.NewNop(), func() { closes++ })

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, closes, "onClose fires exactly once")
}

func TestCombineContext(t *testing.T) {
	t.Run("request deadline propagates", func(t *testing.T) {
		session, sessionCancel := context.WithCancel(context.Background())
		defer sessionCancel()
		req, reqCancel := context.WithTimeout(context.Background(), time.Hour)
		defer reqCancel()

		ctx, cancel := combineContext(session, req)
		defer cancel()

		deadline, ok := ctx.Deadline()
		require.True(t, ok, "the combined context carries the request deadline")
		want, _ := req.Deadline()
		assert.Equal(t, want, deadline)
	})

	t.Run("request cancellation propagates", func(t *testing.T) {
		session, sessionCancel := context.WithCancel(context.Background())
		defer sessionCancel()
		req, reqCancel := context.WithCancel(context.Background())

		ctx, cancel := combineContext(session, req)
		defer cancel()

		reqCancel()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe request cancellation")
		}
	})

	t.Run("session cancellation propagates", func(t *testing.T) {
		session, sessionCancel := context.WithCancel(context.Background())
		req := context.Background()

		ctx, cancel := combineContext(session, req)
		defer cancel()

		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline, "no request deadline means none is invented")

		sessionCancel()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe session cancellation")
		}
	})
}

func TestKeyByName(t *testing.T) {
	for _, name := range []string{"Enter", "enter", "Tab", "Escape", "Backspace", "a", "Z"} {
		_, ok := keyByName(name)
		assert.True(t, ok, "key %q should resolve", name)
	}
	_, ok := keyByName("NotAKey")
	assert.False(t, ok)
}

func TestBuildDigest(t *testing.T) {
	payload := snapshotPayload{
		URL:   "https://example.com/login",
		Title: "Login",
		Text:  "Sign in to continue",
		Elements: []elementInfo{
			{Ref: "e1", Tag: "input", Type: "email", Name: "Email"},
			{Ref: "e2", Tag: "input", Type: "password", Name: "Password"},
			{Ref: "e3", Tag: "button", Name: "Sign in"},
			{Ref: "e4", Tag: "a"},
		},
	}

	digest := buildDigest(payload)

	assert.Contains(t, digest, "Visible text: Sign in to continue")
	assert.Contains(t, digest, `[e1] input[email] "Email"`)
	assert.Contains(t, digest, `[e3] button "Sign in"`)
	assert.Contains(t, digest, "[e4] a")
}

func TestBuildDigest_Empty(t *testing.T) {
	assert.Empty(t, buildDigest(snapshotPayload{}))
}

func TestRefSelector(t *testing.T) {
	assert.Equal(t, `[data-kref="e7"]`, refSelector("e7"))
}

func TestRefSet(t *testing.T) {
	payload := snapshotPayload{Elements: []elementInfo{{Ref: "e1"}, {Ref: "e2"}}}
	set := refSet(payload)

	assert.Len(t, set, 2)
	_, ok := set["e1"]
	assert.True(t, ok)
	_, ok = set["e3"]
	assert.False(t, ok)
}
