// Package testing holds test doubles shared by the command and service tests.
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/tasks"
)

// ErrInjected is returned by the failing doubles in this package.
var ErrInjected = errors.New("injected failure")

// MockOnboarder is a test double for [tasks.Onboarder].
//
// It replays Updates on the progress channel and returns the canned result.
type MockOnboarder struct {
	Updates   []tasks.ProgressUpdate
	Result    *tasks.OnboardingResult
	Err       error
	Outcome   *initgate.Outcome
	RetryErr  error
	Providers []models.Provider
	Identity  models.Identity
	Retries   int
	Cancelled int
}

func (m *MockOnboarder) LinkAndInitialize(ctx context.Context, progress chan<- tasks.ProgressUpdate, providers []models.Provider, identity models.Identity) (*tasks.OnboardingResult, error) {
	m.Providers = providers
	m.Identity = identity
	for _, u := range m.Updates {
		if progress != nil {
			progress <- u
		}
	}
	return m.Result, m.Err
}

func (m *MockOnboarder) RetryInitialization(ctx context.Context, progress chan<- tasks.ProgressUpdate, identity models.Identity) (*initgate.Outcome, error) {
	m.Identity = identity
	m.Retries++
	return m.Outcome, m.RetryErr
}

func (m *MockOnboarder) CancelActive() { m.Cancelled++ }

// FailingWriter passes the first Allow writes to Target and fails every write after.
// The zero value fails immediately.
type FailingWriter struct {
	Target io.Writer
	Allow  int
	writes int
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.writes >= w.Allow || w.Target == nil {
		return 0, ErrInjected
	}
	w.writes++
	return w.Target.Write(p)
}

// Transport is an [http.RoundTripper] that answers from Respond and records every request.
type Transport struct {
	Respond func(*http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []*http.Request
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, r)
	t.mu.Unlock()
	return t.Respond(r)
}

// Requests returns the requests seen so far.
func (t *Transport) Requests() []*http.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*http.Request(nil), t.requests...)
}

// Client wraps t in an [http.Client].
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Respond builds a response with status and body.
func Respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// BrokenBody builds a 200 response whose body fails on read.
func BrokenBody() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: brokenBody{}}
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, ErrInjected }
func (brokenBody) Close() error             { return nil }

// AssertFileExists fails the test when path is missing.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
