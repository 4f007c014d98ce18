package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/chat"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxLogLines = 50
	busyStatus  = "busy: wait for the current request"
	mountStatus = "still loading conversation..."
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type mountDoneMsg struct{}

type actionDoneMsg struct {
	status string
	err    error
}

type reloadDoneMsg struct {
	changed bool
}

type logLineMsg string

type summaryItem struct {
	summary chat.Summary
	active  bool
}

var _ list.DefaultItem = summaryItem{}

func (i summaryItem) FilterValue() string { return i.summary.Title() }

func (i summaryItem) Title() string {
	if i.active {
		return "● " + i.summary.Title()
	}
	return i.summary.Title()
}

func (i summaryItem) Description() string {
	count := fmt.Sprintf("%d %s", i.summary.MessageCount, pluralize(i.summary.MessageCount, "msg", "msgs"))
	if label := i.summary.ActivityLabel(); label != "" {
		return count + " · " + label
	}
	return count
}

type model struct {
	ctx    context.Context
	engine *chat.Engine
	opts   uiOptions

	logLines <-chan string

	state     chat.State
	summaries []chat.Summary

	ready       bool
	inflight    bool
	reloading   bool
	quitConfirm bool
	showHelp    bool
	focus       focusArea

	statusLine string
	logs       []string

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	sidebar  list.Model
	spinner  spinner.Model
	theme    uiTheme

	markdown      *glamour.TermRenderer
	markdownWidth int
}

type uiOptions struct {
	baseURL  string
	markdown bool
}

func newModel(ctx context.Context, engine *chat.Engine, logLines <-chan string, opts uiOptions) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Type a message and press Enter. /help for commands."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	theme := newTheme()
	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("#ff71ce")).BorderForeground(lipgloss.Color("#ff71ce"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("#9ca3d8")).BorderForeground(lipgloss.Color("#ff71ce"))
	sidebar := list.New([]list.Item{}, delegate, 0, 0)
	sidebar.SetShowTitle(false)
	sidebar.SetShowHelp(false)
	sidebar.SetShowStatusBar(false)
	sidebar.SetFilteringEnabled(false)
	sidebar.DisableQuitKeybindings()

	return model{
		ctx:        ctx,
		engine:     engine,
		opts:       opts,
		logLines:   logLines,
		statusLine: "loading conversation...",
		logs:       []string{},
		input:      input,
		timeline:   timeline,
		sidebar:    sidebar,
		spinner:    sp,
		theme:      theme,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.mountCmd(),
		waitLogLine(m.logLines),
	)
}

func (m model) mountCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		engine.Initialize(ctx)
		return mountDoneMsg{}
	}
}

func (m model) sendCmd(pending *chat.PendingSend) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		engine.CompleteSend(ctx, pending)
		return actionDoneMsg{status: "reply received"}
	}
}

func (m model) openCmd(id string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := engine.OpenConversation(ctx, id)
		return actionDoneMsg{status: "opened conversation " + shortID(id), err: err}
	}
}

func (m model) clearCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := engine.Clear(ctx)
		return actionDoneMsg{status: "conversation cleared", err: err}
	}
}

func (m model) reloadCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return reloadDoneMsg{changed: engine.RefreshSummaries(ctx)}
	}
}

func waitLogLine(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logLineMsg(line)
	}
}

// syncFromEngine copies the engine's state into the model. The UI only reads
// engine state here so View never races a running command.
func (m *model) syncFromEngine() {
	m.state = m.engine.Snapshot()
	m.summaries = m.engine.Summaries().Items()

	items := make([]list.Item, 0, len(m.summaries))
	activeIndex := -1
	for idx, summary := range m.summaries {
		active := summary.ID == m.state.ActiveID && summary.ID != ""
		if active {
			activeIndex = idx
		}
		items = append(items, summaryItem{summary: summary, active: active})
	}
	selected := m.sidebar.Index()
	m.sidebar.SetItems(items)
	switch {
	case m.focus != focusSidebar && activeIndex >= 0:
		m.sidebar.Select(activeIndex)
	case selected < len(items):
		m.sidebar.Select(selected)
	}
	m.renderPanes()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case mountDoneMsg:
		m.ready = true
		m.syncFromEngine()
		if m.state.ActiveID != "" {
			m.statusLine = fmt.Sprintf("ready · conversation=%s", shortID(m.state.ActiveID))
		} else {
			m.statusLine = "ready"
		}
	case actionDoneMsg:
		m.inflight = false
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			m.statusLine = busyStatus
		case msg.err != nil:
			m.logError(msg.err)
		case strings.TrimSpace(msg.status) != "":
			m.statusLine = msg.status
			m.appendLog(msg.status)
		}
		m.syncFromEngine()
	case reloadDoneMsg:
		m.reloading = false
		if msg.changed {
			m.statusLine = "conversations reloaded"
		} else {
			m.statusLine = "conversation list unavailable"
		}
		m.syncFromEngine()
	case logLineMsg:
		m.appendLog(string(msg))
		cmds = append(cmds, waitLogLine(m.logLines))
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Busy || m.inflight || !m.ready {
			m.renderPanes()
		}
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.quitConfirm {
			break
		}
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.quitConfirm {
			switch msg.String() {
			case "y", "Y", "enter":
				return m, tea.Quit
			case "n", "N", "esc":
				m.quitConfirm = false
				m.statusLine = "quit canceled"
			}
			return m, tea.Batch(cmds...)
		}
		if m.showHelp {
			switch msg.String() {
			case "esc", "q", "enter", "?":
				m.showHelp = false
				m.renderPanes()
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case "esc":
			m.beginQuitConfirm()
			return m, tea.Batch(cmds...)
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, tea.Batch(cmds...)
		case "ctrl+l":
			cmds = append(cmds, m.startClear())
			return m, tea.Batch(cmds...)
		case "ctrl+r":
			cmds = append(cmds, m.startReload())
			return m, tea.Batch(cmds...)
		case "ctrl+n":
			m.startNew()
			return m, tea.Batch(cmds...)
		}

		if m.focus == focusSidebar {
			switch msg.String() {
			case "enter":
				if item, ok := m.sidebar.SelectedItem().(summaryItem); ok {
					cmds = append(cmds, m.startOpen(item.summary.ID))
				}
			default:
				var cmd tea.Cmd
				m.sidebar, cmd = m.sidebar.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, tea.Batch(cmds...)
			}
			if strings.HasPrefix(raw, "/") {
				m.input.SetValue("")
				cmds = append(cmds, m.handleSlash(raw))
				return m, tea.Batch(cmds...)
			}
			cmds = append(cmds, m.startSend(raw))
			return m, tea.Batch(cmds...)
		case "pgup", "ctrl+b":
			m.timeline.LineUp(8)
			return m, tea.Batch(cmds...)
		case "pgdown", "ctrl+f":
			m.timeline.LineDown(8)
			return m, tea.Batch(cmds...)
		case "up":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.timeline.LineUp(4)
				return m, tea.Batch(cmds...)
			}
		case "down":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.timeline.LineDown(4)
				return m, tea.Batch(cmds...)
			}
		case "home":
			m.timeline.GotoTop()
			return m, tea.Batch(cmds...)
		case "end":
			m.timeline.GotoBottom()
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// startSend runs the optimistic phase inside Update so the user message is
// on screen before the request goes out.
func (m *model) startSend(raw string) tea.Cmd {
	if !m.ready {
		m.statusLine = mountStatus
		return nil
	}
	if m.inflight {
		m.statusLine = busyStatus
		return nil
	}
	pending, err := m.engine.BeginSend(m.ctx, raw)
	switch {
	case errors.Is(err, chat.ErrBusy):
		m.statusLine = busyStatus
		return nil
	case err != nil:
		return nil
	}
	m.input.SetValue("")
	m.inflight = true
	m.statusLine = "sending..."
	m.timeline.GotoBottom()
	m.syncFromEngine()
	return m.sendCmd(pending)
}

func (m *model) startOpen(id string) tea.Cmd {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if !m.ready {
		m.statusLine = mountStatus
		return nil
	}
	if m.inflight || m.engine.Busy() {
		m.statusLine = busyStatus
		return nil
	}
	m.inflight = true
	m.statusLine = "opening " + shortID(id) + "..."
	return m.openCmd(id)
}

func (m *model) startClear() tea.Cmd {
	if !m.ready {
		m.statusLine = mountStatus
		return nil
	}
	if m.inflight || m.engine.Busy() {
		m.statusLine = busyStatus
		return nil
	}
	m.inflight = true
	m.statusLine = "clearing conversation..."
	return m.clearCmd()
}

func (m *model) startReload() tea.Cmd {
	if m.reloading {
		return nil
	}
	m.reloading = true
	m.statusLine = "reloading conversations..."
	return m.reloadCmd()
}

// startNew is the "+ New" affordance. It only refocuses the input; the service
// assigns an id on the first reply.
func (m *model) startNew() {
	m.focus = focusInput
	m.input.Focus()
	m.statusLine = "new conversation: the service assigns an id on the first reply"
}

func (m *model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.Blur()
		m.statusLine = "sidebar: ↑/↓ select · Enter open · Tab back"
	} else {
		m.focus = focusInput
		m.input.Focus()
		m.statusLine = "input"
	}
	m.renderPanes()
}

func (m *model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	tail := parts[1:]
	switch cmd {
	case "/help":
		m.showHelp = true
		m.renderPanes()
		return nil
	case "/quit", "/exit":
		m.beginQuitConfirm()
		return nil
	case "/clear":
		return m.startClear()
	case "/reload":
		return m.startReload()
	case "/new":
		m.startNew()
		return nil
	case "/open":
		if len(tail) == 0 {
			m.statusLine = "usage: /open <conversation_id>"
			return nil
		}
		return m.startOpen(tail[0])
	default:
		m.statusLine = "unknown command: " + cmd
		return nil
	}
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.statusLine = "quit chatsync?"
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = "error: " + compactSingleLine(chat.ErrorDetail(err), 160)
}
