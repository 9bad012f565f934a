// Package tui implements the interactive hashing shell: a path prompt,
// a live progress display and a copyable digest.
package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hashsafe/hashsafe/internal/clipboard"
	"github.com/hashsafe/hashsafe/internal/engine"
	hprogress "github.com/hashsafe/hashsafe/internal/progress"
)

// Submitter starts hashing runs. *engine.Engine satisfies it.
type Submitter interface {
	Submit(ctx context.Context, path string) *engine.Run
}

// Copier places text on the clipboard. *clipboard.Copier satisfies it.
type Copier interface {
	Copy(text string) (clipboard.Method, error)
}

// noticeFadeDelay is how long status notices stay visible.
const noticeFadeDelay = 2 * time.Second

const maxBarWidth = 60

var errEmptyPath = errors.New("enter a file path")

type phase int

const (
	phaseIdle phase = iota
	phaseHashing
	phaseSucceeded
	phaseCancelled
	phaseFailed
)

// progressMsg carries a snapshot for the run with the given ID.
type progressMsg struct {
	runID    string
	snapshot hprogress.Snapshot
}

// outcomeMsg carries the terminal outcome for the run with the given ID.
type outcomeMsg struct {
	runID   string
	outcome engine.Outcome
}

type clipboardMsg struct {
	method clipboard.Method
	err    error
}

// noticeFadeMsg clears the notice if it is still the one with this sequence number.
type noticeFadeMsg struct {
	seq int
}

// Model is the bubbletea model for the hashing shell.
type Model struct {
	engine Submitter
	copier Copier
	keys   KeyMap

	input   textinput.Model
	bar     progress.Model
	spinner spinner.Model
	help    help.Model

	run      *engine.Run
	phase    phase
	snapshot hprogress.Snapshot
	digest   string
	err      error

	notice    string
	noticeSeq int
}

// New creates the shell model. eng runs the hashing and copier receives
// digests on Ctrl+Y.
func New(eng Submitter, copier Copier) Model {
	input := textinput.New()
	input.Prompt = "File: "
	input.Placeholder = "path to a file"
	input.Focus()

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxBarWidth

	return Model{
		engine:  eng,
		copier:  copier,
		keys:    DefaultKeyMap,
		input:   input,
		bar:     bar,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// waitForRun delivers the next snapshot of run, or its outcome once the
// progress channel is closed.
func waitForRun(run *engine.Run) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-run.Progress()
		if ok {
			return progressMsg{runID: run.ID(), snapshot: snapshot}
		}
		<-run.Done()
		outcome, _ := run.Outcome()
		return outcomeMsg{runID: run.ID(), outcome: outcome}
	}
}

func copyDigest(c Copier, digest string) tea.Cmd {
	return func() tea.Msg {
		method, err := c.Copy(digest)
		return clipboardMsg{method: method, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-4))
		m.help.Width = msg.Width
		return m, nil

	case progressMsg:
		if !m.current(msg.runID) {
			return m, nil
		}
		m.snapshot = msg.snapshot
		return m, waitForRun(m.run)

	case outcomeMsg:
		if !m.current(msg.runID) {
			return m, nil
		}
		return m.finish(msg.outcome), nil

	case spinner.TickMsg:
		if m.phase != phaseHashing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case clipboardMsg:
		if msg.err != nil {
			return m.setNotice("Copy failed: " + msg.err.Error())
		}
		if msg.method == clipboard.MethodOSC52 {
			return m.setNotice("Sent to terminal clipboard")
		}
		return m.setNotice("Copied to clipboard")

	case noticeFadeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.run != nil {
			m.run.Cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		if m.phase == phaseHashing {
			return m, nil
		}
		return m.start()

	case key.Matches(msg, m.keys.Cancel):
		if m.phase != phaseHashing {
			return m, nil
		}
		m.run.Cancel()
		return m.setNotice("Cancelling...")

	case key.Matches(msg, m.keys.Copy):
		if m.digest == "" {
			return m, nil
		}
		return m, copyDigest(m.copier, m.digest)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start submits the path in the input box. Any previous result is cleared
// before the run begins.
func (m Model) start() (tea.Model, tea.Cmd) {
	m.digest = ""
	m.err = nil
	m.snapshot = hprogress.Snapshot{}

	path := cleanPath(m.input.Value())
	if path == "" {
		m.phase = phaseFailed
		m.err = errEmptyPath
		return m, nil
	}

	m.phase = phaseHashing
	m.run = m.engine.Submit(context.Background(), path)
	return m, tea.Batch(waitForRun(m.run), m.spinner.Tick)
}

func (m Model) finish(o engine.Outcome) Model {
	m.run = nil
	switch o.State {
	case engine.StateSucceeded:
		m.phase = phaseSucceeded
		m.digest = o.Digest
	case engine.StateCancelled:
		m.phase = phaseCancelled
	default:
		m.phase = phaseFailed
		m.err = o.Err
	}
	m.notice = ""
	return m
}

func (m Model) current(runID string) bool {
	return m.run != nil && m.run.ID() == runID
}

func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return m, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{seq: seq}
	})
}

// Digest returns the digest of the last successful run, or "".
func (m Model) Digest() string {
	return m.digest
}

// Err returns the error of the last failed run, or nil.
func (m Model) Err() error {
	return m.err
}

// cleanPath trims whitespace and the quotes terminals add to dropped
// files, and expands a leading ~.
func cleanPath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[1:])
		}
	}
	return s
}
