package main

import (
	"fmt"
	"strings"

	"chatsync/internal/chat"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	emptyLoadingText = "Loading conversation…"
	emptyIdleText    = "Say hi — start the conversation"
	typingText       = "Typing…"
	noSummariesText  = "No conversations yet"
	sidebarMinWidth  = 28
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	panel       lipgloss.Style
	panelFocus  lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
	userLabel   lipgloss.Style
	botLabel    lipgloss.Style
	errorLabel  lipgloss.Style
	modal       lipgloss.Style
	accent      lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelFocus: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText:   lipgloss.NewStyle().Foreground(muted),
		userLabel:  lipgloss.NewStyle().Foreground(mint).Bold(true),
		botLabel:   lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorLabel: lipgloss.NewStyle().Foreground(pink).Bold(true),
		modal: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(blue).
			Padding(1, 2),
		accent: lipgloss.NewStyle().Foreground(mint).Bold(true),
	}
}

func (m model) View() string {
	var out string
	switch {
	case m.quitConfirm:
		out = m.renderQuitModal()
	case m.showHelp:
		contentWidth := maxInt(40, m.width-4)
		out = m.theme.panel.Width(contentWidth).Render(
			m.theme.panelTitle.Render("chatsync help") + "\n" + m.renderHelp(),
		)
	default:
		out = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.renderContent(),
			m.renderInput(),
			m.renderFooter(),
		)
	}
	return m.theme.root.Render(out)
}

func (m *model) renderHeader() string {
	title := m.theme.accent.Render("chatsync")
	conv := "new conversation"
	if m.state.ActiveID != "" {
		conv = "conversation " + shortID(m.state.ActiveID)
	}
	meta := m.theme.helpText.Render(fmt.Sprintf("  %s · %s", conv, nullCoalesce(m.opts.baseURL, "offline")))
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(title + meta)
}

func (m *model) paneWidths() (left, right int) {
	contentWidth := maxInt(40, m.width-4)
	left = int(float64(contentWidth) * 0.66)
	right = contentWidth - left - 1
	if right < sidebarMinWidth {
		right = sidebarMinWidth
		left = contentWidth - right - 1
	}
	return left, right
}

func (m *model) contentHeight() int {
	return maxInt(8, m.height-10)
}

func (m *model) renderContent() string {
	height := m.contentHeight()
	leftWidth, rightWidth := m.paneWidths()

	timelineStyle, sidebarStyle := m.theme.panelFocus, m.theme.panel
	if m.focus == focusSidebar {
		timelineStyle, sidebarStyle = m.theme.panel, m.theme.panelFocus
	}
	left := timelineStyle.Width(leftWidth).Height(height).Render(
		m.theme.panelTitle.Render("Conversation") + "\n" + m.timeline.View(),
	)
	right := sidebarStyle.Width(rightWidth).Height(height).Render(
		m.theme.panelTitle.Render("History") + "\n" + m.renderSidebar(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *model) renderSidebar() string {
	var body string
	if len(m.summaries) == 0 {
		body = m.theme.helpText.Render(noSummariesText)
	} else {
		body = m.sidebar.View()
	}
	n := len(m.state.Messages)
	footer := m.theme.helpText.Render(fmt.Sprintf("Local history · %d %s", n, pluralize(n, "item", "items")))
	return body + "\n" + footer
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	inputView := m.input.View()
	if m.focus == focusSidebar {
		inputView = m.theme.helpText.Render("Sidebar focused. Press Tab to type.")
	} else if m.state.Busy || m.inflight {
		inputView = m.spinner.View() + " waiting for reply... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") || strings.Contains(lower, "unavailable") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	if len(m.logs) > 0 {
		line += "  " + m.theme.helpText.Render(compactSingleLine(m.logs[len(m.logs)-1], 120))
	}
	hints := m.theme.helpText.Render("Keys: Enter send · Tab sidebar · Ctrl+L clear · Ctrl+R reload · Ctrl+N new · PgUp/PgDn scroll · Esc quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m *model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.5), 32, 64)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}

	body := strings.Join([]string{
		m.theme.errorStatus.Render("Quit chatsync?"),
		"",
		m.theme.helpText.Render("The active conversation is cached locally."),
		"",
		m.theme.accent.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	panel := m.theme.modal.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#120924")),
	)
}

func (m *model) renderHelp() string {
	lines := []string{
		"Keys",
		"- Enter: send the message (blocked while a reply is pending)",
		"- Tab: move focus between input and history sidebar",
		"- Enter in sidebar: open the selected conversation",
		"- Ctrl+L: clear the active conversation",
		"- Ctrl+R: reload the conversation list",
		"- Ctrl+N: start a new conversation",
		"- PgUp/PgDn, Up/Down (input empty), Home/End: scroll",
		"- Esc: quit prompt · Ctrl+C: quit",
		"",
		"Slash Commands",
		"- /open <conversation_id>",
		"- /new",
		"- /clear",
		"- /reload",
		"- /help",
		"- /quit",
		"",
		"Press Esc to close.",
	}
	return m.theme.helpText.Render(strings.Join(lines, "\n"))
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
}

func (m *model) renderPanes() {
	prevOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()

	height := m.contentHeight()
	leftWidth, rightWidth := m.paneWidths()

	m.timeline.Width = maxInt(20, leftWidth-4)
	m.timeline.Height = maxInt(5, height-1)
	m.sidebar.SetSize(maxInt(20, rightWidth-4), maxInt(4, height-2))

	m.timeline.SetContent(m.renderTimeline())
	if prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevOffset)
	}
}

func (m *model) renderTimeline() string {
	if len(m.state.Messages) == 0 {
		if !m.ready {
			return m.theme.helpText.Render(emptyLoadingText)
		}
		return m.theme.helpText.Render(emptyIdleText)
	}
	width := maxInt(20, m.timeline.Width-2)
	var b strings.Builder
	for _, msg := range m.state.Messages {
		switch {
		case msg.Role == chat.RoleUser:
			b.WriteString(m.theme.userLabel.Render("you"))
			b.WriteString("\n")
			b.WriteString(wordwrap.String(msg.Text, width))
		case strings.HasPrefix(msg.Text, "Error: "):
			b.WriteString(m.theme.errorLabel.Render("bot"))
			b.WriteString("\n")
			b.WriteString(wordwrap.String(msg.Text, width))
		default:
			b.WriteString(m.theme.botLabel.Render("bot"))
			b.WriteString("\n")
			b.WriteString(m.renderBotText(msg.Text, width))
		}
		b.WriteString("\n\n")
	}
	if m.state.Busy && m.ready {
		b.WriteString(m.spinner.View() + " " + m.theme.helpText.Render(typingText))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderBotText(text string, width int) string {
	if !m.opts.markdown {
		return wordwrap.String(text, width)
	}
	if m.markdown == nil || m.markdownWidth != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.opts.markdown = false
			m.appendLog("markdown disabled: " + err.Error())
			return wordwrap.String(text, width)
		}
		m.markdown = renderer
		m.markdownWidth = width
	}
	rendered, err := m.markdown.Render(text)
	if err != nil {
		return wordwrap.String(text, width)
	}
	return strings.Trim(rendered, "\n")
}
