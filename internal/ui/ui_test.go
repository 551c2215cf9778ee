package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
)

type fakeOnboarder struct {
	updates   []tasks.ProgressUpdate
	result    *tasks.OnboardingResult
	err       error
	outcome   *initgate.Outcome
	retryErr  error
	cancelled int
	retries   int
}

func (f *fakeOnboarder) LinkAndInitialize(ctx context.Context, progress chan<- tasks.ProgressUpdate, providers []models.Provider, identity models.Identity) (*tasks.OnboardingResult, error) {
	for _, u := range f.updates {
		progress <- u
	}
	return f.result, f.err
}

func (f *fakeOnboarder) RetryInitialization(ctx context.Context, progress chan<- tasks.ProgressUpdate, identity models.Identity) (*initgate.Outcome, error) {
	f.retries++
	progress <- tasks.ProgressUpdate{Phase: tasks.Training, Step: 50, Total: 100, Data: models.InitRun{Stage: models.StageTraining, Progress: 50, Attempt: 1}}
	return f.outcome, f.retryErr
}

func (f *fakeOnboarder) CancelActive() { f.cancelled++ }

var testProviders = []models.Provider{
	{ID: "tidal", Kind: models.KindDevice},
	{ID: "spotify", Kind: models.KindDirect},
}

func newTestModel(engine tasks.Onboarder) *Model {
	return NewModel(context.Background(), engine, testProviders, models.Identity{SessionID: "s1", UserID: "u1", Email: "u@example.com"})
}

func keyPress(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// drive runs cmd and feeds every resulting message back into m until the run finishes.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("run did not finish")
		}
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func deviceUpdate() tasks.ProgressUpdate {
	return tasks.ProgressUpdate{
		Phase: tasks.DeviceCode,
		Step:  1,
		Total: 2,
		Data: deviceflow.Update{
			Provider:  "tidal",
			State:     models.FlowAwaitingUserAction,
			Grant:     &models.DeviceGrant{DeviceCode: "dc", UserCode: "WXYZ-1234", VerificationURI: "link.example.com"},
			Remaining: 125,
		},
	}
}

func TestModelApply(t *testing.T) {
	t.Run("Device Code Shows Box", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		m.apply(deviceUpdate())

		if m.code == nil {
			t.Fatal("expected device code to be set")
		}
		if m.entries[0].status != models.EntryActive {
			t.Errorf("expected first entry active, got %s", m.entries[0].status)
		}

		view := m.View()
		for _, want := range []string{"WXYZ-1234", "https://link.example.com", "2:05"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
	})

	t.Run("Link Resolved Clears Code", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		m.apply(deviceUpdate())
		m.apply(tasks.ProgressUpdate{
			Phase: tasks.LinkResolved,
			Step:  1,
			Total: 2,
			Data:  linking.Result{ProviderID: "tidal", Status: models.EntrySkipped, Reason: models.ReasonExpired},
		})

		if m.code != nil {
			t.Error("expected device code to be cleared")
		}
		if m.entries[0].result == nil || m.entries[0].status != models.EntrySkipped {
			t.Errorf("expected skipped entry, got %+v", m.entries[0])
		}
		if !strings.Contains(m.View(), "expired") {
			t.Errorf("expected reason in view, got:\n%s", m.View())
		}
	})

	t.Run("Init Phases", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		m.apply(tasks.ProgressUpdate{Phase: tasks.AllLinked})
		if m.view != InitView {
			t.Fatalf("expected InitView, got %v", m.view)
		}

		m.apply(tasks.ProgressUpdate{Phase: tasks.Training, Message: "Training your model...", Data: models.InitRun{Stage: models.StageTraining, Progress: 40, Attempt: 1}})
		if m.run.Progress != 40 {
			t.Errorf("expected progress 40, got %d", m.run.Progress)
		}
		if !strings.Contains(m.View(), "Training your model...") {
			t.Errorf("expected message in view, got:\n%s", m.View())
		}

		m.apply(tasks.ProgressUpdate{Phase: tasks.InitDone})
		if m.run.Progress != 100 || m.run.Stage != models.StageDone {
			t.Errorf("expected finished run, got %+v", m.run)
		}
	})

	t.Run("Out Of Range Step", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		m.apply(tasks.ProgressUpdate{Phase: tasks.LinkProvider, Step: 9})
		for _, e := range m.entries {
			if e.status != models.EntryPending {
				t.Errorf("expected entries untouched, got %s", e.status)
			}
		}
	})
}

func TestModelKeys(t *testing.T) {
	t.Run("Cancel Skips Active Flow", func(t *testing.T) {
		engine := &fakeOnboarder{}
		m := newTestModel(engine)

		m.Update(keyPress("c"))
		if engine.cancelled != 0 {
			t.Error("expected no cancel without an active code")
		}

		m.apply(deviceUpdate())
		m.Update(keyPress("c"))
		if engine.cancelled != 1 {
			t.Errorf("expected one cancel, got %d", engine.cancelled)
		}
		if !strings.Contains(m.message, "Skipping tidal") {
			t.Errorf("unexpected message %q", m.message)
		}
	})

	t.Run("Open Verification Link", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		var opened string
		m.open = func(u string) error {
			opened = u
			return nil
		}

		m.apply(deviceUpdate())
		m.Update(keyPress("o"))
		if opened != "https://link.example.com" {
			t.Errorf("expected verification URL to open, got %q", opened)
		}
	})

	t.Run("Open Failure Shows URL", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		m.open = func(string) error { return fmt.Errorf("no browser") }

		m.apply(deviceUpdate())
		m.Update(keyPress("o"))
		if !strings.Contains(m.message, "https://link.example.com") {
			t.Errorf("expected URL in message, got %q", m.message)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(&fakeOnboarder{})
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if m.View() != "" {
			t.Error("expected empty view after quitting")
		}
	})
}

func TestModelRun(t *testing.T) {
	linked := linking.Result{ProviderID: "tidal", Kind: models.KindDevice, Status: models.EntryCompleted, Success: true}
	skipped := linking.Result{ProviderID: "spotify", Kind: models.KindDirect, Status: models.EntrySkipped, Reason: models.ReasonLinkFailed}

	t.Run("Completes", func(t *testing.T) {
		engine := &fakeOnboarder{
			updates: []tasks.ProgressUpdate{
				{Phase: tasks.LinkProvider, Step: 1, Total: 2},
				{Phase: tasks.AllLinked, Step: 1, Total: 2},
			},
			result: &tasks.OnboardingResult{
				SessionID: "s1",
				Links:     &linking.Summary{Results: []linking.Result{linked, skipped}},
				Init:      &initgate.Outcome{Kind: models.InitTrained, Attempts: 1, Result: models.InitResult{Success: true, ItemCount: 12, Status: models.InitStatusTrained}},
			},
		}
		m := newTestModel(engine)
		drive(t, m, m.startOnboarding())

		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %v", m.view)
		}
		if m.entries[0].result == nil || !m.entries[0].result.Success {
			t.Errorf("expected entries synced from result, got %+v", m.entries[0])
		}

		view := m.View()
		for _, want := range []string{"Onboarding complete", "Linked 1 of 2", "trained on 12 items"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}

		m.Update(keyPress("r"))
		if engine.retries != 0 {
			t.Error("expected retry to be unavailable after success")
		}
	})

	t.Run("Retry After Backend Failure", func(t *testing.T) {
		initErr := fmt.Errorf("%w: status 503", shared.ErrInitBackend)
		engine := &fakeOnboarder{
			result: &tasks.OnboardingResult{
				Links:   &linking.Summary{Results: []linking.Result{linked, skipped}},
				Init:    &initgate.Outcome{Kind: models.InitFailed, Attempts: 2},
				InitErr: initErr,
			},
			err:     initErr,
			outcome: &initgate.Outcome{Kind: models.InitFallback, Attempts: 1, Result: models.InitResult{Success: true, Status: models.InitStatusBaseModelCopied}},
		}
		m := newTestModel(engine)
		drive(t, m, m.startOnboarding())

		if !m.canRetry() {
			t.Fatal("expected retry to be available")
		}
		if !strings.Contains(m.View(), "Initialization failed") {
			t.Errorf("expected failure title, got:\n%s", m.View())
		}

		_, cmd := m.Update(keyPress("r"))
		if m.view != InitView {
			t.Errorf("expected InitView while retrying, got %v", m.view)
		}
		drive(t, m, cmd)

		if engine.retries != 1 {
			t.Errorf("expected one retry, got %d", engine.retries)
		}
		if m.view != ResultView || m.err != nil {
			t.Fatalf("expected successful retry, got view %v err %v", m.view, m.err)
		}
		if !strings.Contains(m.View(), "using the base model") {
			t.Errorf("expected fallback title, got:\n%s", m.View())
		}
	})

	t.Run("Linking Error", func(t *testing.T) {
		engine := &fakeOnboarder{err: shared.ErrInvalidInput}
		m := newTestModel(engine)
		drive(t, m, m.startOnboarding())

		result, err := m.Result()
		if result != nil || err == nil {
			t.Fatalf("expected error result, got %v %v", result, err)
		}
		if !strings.Contains(m.View(), "Onboarding failed") {
			t.Errorf("expected failure message, got:\n%s", m.View())
		}
	})
}
