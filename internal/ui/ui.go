package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/formatter"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LinkingView ViewState = iota
	InitView
	ResultView
)

type entry struct {
	provider models.Provider
	status   models.EntryStatus
	result   *linking.Result
}

func (e entry) glyph(active string) string {
	switch {
	case e.result != nil:
		g := formatter.Glyph(*e.result)
		switch {
		case e.result.Success:
			return styles.ok.Render(g)
		case e.result.Status == models.EntryCompleted:
			return styles.warn.Render(g)
		default:
			return styles.err.Render(g)
		}
	case e.status == models.EntryActive:
		return active
	default:
		return styles.help.Render("·")
	}
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	engine    tasks.Onboarder
	identity  models.Identity
	view      ViewState
	entries   []entry
	code      *deviceflow.Update
	run       models.InitRun
	message   string
	updates   chan tasks.ProgressUpdate
	done      chan tea.Msg
	result    *tasks.OnboardingResult
	err       error
	retrying  bool
	spinner   spinner.Model
	bar       progress.Model
	help      help.Model
	keys      keyMap
	open      func(string) error
	width     int
	quitting  bool
}

// NewModel creates a TUI model that onboards providers for identity.
func NewModel(ctx context.Context, engine tasks.Onboarder, providers []models.Provider, identity models.Identity) *Model {
	entries := make([]entry, len(providers))
	for i, p := range providers {
		entries[i] = entry{provider: p, status: models.EntryPending}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.warn

	return &Model{
		ctx:      ctx,
		engine:   engine,
		identity: identity,
		view:     LinkingView,
		entries:  entries,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:     help.New(),
		keys:     newKeyMap(),
		open:     shared.OpenBrowser,
	}
}

// Result returns the onboarding result once the run has finished.
func (m *Model) Result() (*tasks.OnboardingResult, error) {
	return m.result, m.err
}

// Init starts the spinner and the onboarding run.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startOnboarding())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.apply(tasks.ProgressUpdate(msg))
		return m, m.waitForProgress()

	case onboardingDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.code = nil
		m.view = ResultView
		m.updates = nil
		m.syncEntries()
		return m, nil

	case retryDoneMsg:
		m.retrying = false
		m.updates = nil
		m.view = ResultView
		if m.result != nil {
			m.result.Init = msg.outcome
			m.result.InitErr = msg.err
		}
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.cancel):
		if m.view == LinkingView && m.code != nil {
			m.engine.CancelActive()
			m.message = fmt.Sprintf("Skipping %s...", m.code.Provider)
		}

	case key.Matches(msg, m.keys.open):
		if m.view == LinkingView && m.code != nil && m.code.Grant != nil {
			if err := m.open(m.code.Grant.VerificationURL()); err != nil {
				m.message = fmt.Sprintf("Open %s in your browser", m.code.Grant.VerificationURL())
			}
		}

	case key.Matches(msg, m.keys.retry):
		if m.canRetry() {
			return m, m.startRetry()
		}
	}
	return m, nil
}

func (m *Model) canRetry() bool {
	return m.view == ResultView && !m.retrying && m.result != nil &&
		m.result.InitErr != nil && errors.Is(m.result.InitErr, shared.ErrInitBackend)
}

// apply folds one progress update into the model.
func (m *Model) apply(u tasks.ProgressUpdate) {
	m.message = u.Message
	idx := u.Step - 1

	switch u.Phase {
	case tasks.LinkProvider:
		if idx >= 0 && idx < len(m.entries) {
			m.entries[idx].status = models.EntryActive
		}
	case tasks.DeviceCode:
		if fu, ok := u.Data.(deviceflow.Update); ok {
			m.code = &fu
		}
		if idx >= 0 && idx < len(m.entries) {
			m.entries[idx].status = models.EntryActive
		}
	case tasks.LinkResolved:
		if r, ok := u.Data.(linking.Result); ok && idx >= 0 && idx < len(m.entries) {
			m.entries[idx].status = r.Status
			m.entries[idx].result = &r
		}
		m.code = nil
	case tasks.AllLinked:
		m.code = nil
		m.view = InitView
		m.run = models.InitRun{}
	case tasks.Analyzing, tasks.Training, tasks.Evaluating, tasks.Persisting:
		m.view = InitView
		if run, ok := u.Data.(models.InitRun); ok {
			m.run = run
		}
	case tasks.InitDone:
		m.run.Progress = 100
		m.run.Stage = models.StageDone
	case tasks.InitFailed:
		if run, ok := u.Data.(models.InitRun); ok {
			m.run = run
		}
	}
}

// syncEntries copies final link results over the entries, covering dropped updates.
func (m *Model) syncEntries() {
	if m.result == nil || m.result.Links == nil {
		return
	}
	for i, r := range m.result.Links.Results {
		if i < len(m.entries) {
			m.entries[i].status = r.Status
			m.entries[i].result = &r
		}
	}
}

func (m *Model) startOnboarding() tea.Cmd {
	m.updates = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan tea.Msg, 1)

	providers := make([]models.Provider, len(m.entries))
	for i, e := range m.entries {
		providers[i] = e.provider
	}

	updates, done := m.updates, m.done
	go func() {
		result, err := m.engine.LinkAndInitialize(m.ctx, updates, providers, m.identity)
		close(updates)
		done <- onboardingDoneMsg{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) startRetry() tea.Cmd {
	m.retrying = true
	m.view = InitView
	m.run = models.InitRun{}
	m.updates = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan tea.Msg, 1)

	updates, done := m.updates, m.done
	go func() {
		outcome, err := m.engine.RetryInitialization(m.ctx, updates, m.identity)
		close(updates)
		done <- retryDoneMsg{outcome: outcome, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		if updates == nil {
			return nil
		}
		update, ok := <-updates
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.view {
	case LinkingView:
		return m.renderLinking()
	case InitView:
		return m.renderInit()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderEntries() string {
	var b strings.Builder
	for _, e := range m.entries {
		line := fmt.Sprintf("%s %s", e.glyph(m.spinner.View()), e.provider.ID)
		if e.result != nil && !e.result.Success && e.result.Reason != "" {
			line += styles.help.Render(fmt.Sprintf("  %s", e.result.Reason))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *Model) renderLinking() string {
	title := styles.title.Render("Link your music services")

	var code string
	if m.code != nil && m.code.Grant != nil {
		body := fmt.Sprintf("Visit %s\nand enter\n\n%s\n\nCode expires in %s",
			m.code.Grant.VerificationURL(),
			styles.code.Render(m.code.Grant.UserCode),
			tasks.Countdown(m.code.Remaining))
		code = "\n" + styles.box.Render(body) + "\n"
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.open, m.keys.quit})
	return fmt.Sprintf("%s\n%s%s\n%s\n\n%s", title, m.renderEntries(), code, m.message, helpView)
}

func (m *Model) renderInit() string {
	title := styles.title.Render("Setting up your model")
	percent := float64(m.run.Progress) / 100

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s", title, m.renderEntries(), m.bar.ViewAs(percent), m.message, helpView)
}

func (m *Model) renderResult() string {
	if m.result == nil {
		msg := "Onboarding stopped"
		if m.err != nil {
			msg = fmt.Sprintf("Onboarding failed: %v", m.err)
		}
		return styles.err.Render(msg) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}

	var title string
	switch {
	case m.result.InitErr != nil:
		title = styles.err.Render("✗ Initialization failed")
	case m.result.Init != nil && m.result.Init.Fallback():
		title = styles.warn.Render("! Linked, using the base model")
	default:
		title = styles.ok.Render("✓ Onboarding complete")
	}

	summary := fmt.Sprintf("\nLinked %d of %d providers\nInitialization: %s",
		len(m.result.Linked()), len(m.entries), formatter.InitSummary(m.result.Init, m.result.InitErr))
	if m.err != nil && !errors.Is(m.err, shared.ErrInitBackend) {
		summary += "\n" + styles.err.Render(m.err.Error())
	}

	keys := []key.Binding{m.keys.quit}
	if m.canRetry() {
		keys = []key.Binding{m.keys.retry, m.keys.quit}
	}
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, m.renderEntries(), summary, m.help.ShortHelpView(keys))
}
