package chatview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/storefront-realtime-go/chat"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/bell"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/keys"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/theme"
	"github.com/vovakirdan/storefront-realtime-go/realtime/rest"
)

// attachPrefix starts an input line that uploads a file: "/attach <path> [caption]".
const attachPrefix = "/attach "

// ClosedBanner is shown in place of the input once the thread is closed.
const ClosedBanner = "This conversation has been closed."

// ViewMsg carries a fresh snapshot of the widget.
type ViewMsg struct {
	View chat.View
}

// sendResultMsg reports the outcome of a background send.
type sendResultMsg struct {
	err error
}

// openResultMsg reports the outcome of opening the panel.
type openResultMsg struct {
	err error
}

// Widget is the part of chat.Widget the view drives.
type Widget interface {
	View() chat.View
	Open(ctx context.Context) error
	Hide()
	Send(ctx context.Context, content string, media *rest.Attachment) error
}

// Model is the chat panel: a scrolling transcript above a single-line input.
type Model struct {
	widget   Widget
	view     chat.View
	input    textinput.Model
	viewport viewport.Model
	keys     *keys.KeyMap
	err      error
	focused  bool
	width    int
	height   int
}

// New creates a chat panel for widget.
func New(widget Widget, k *keys.KeyMap, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, or /attach <path> [caption]"
	ti.Prompt = "> "
	ti.CharLimit = 2000

	vp := viewport.New(max(width-4, 10), max(height-6, 3))
	vp.Style = lipgloss.NewStyle()

	m := Model{
		widget:   widget,
		view:     widget.View(),
		input:    ti,
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
	m.refreshViewport()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the chat panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ViewMsg:
		m.view = msg.View
		m.refreshViewport()
		return m, nil

	case sendResultMsg:
		m.err = msg.err
		return m, nil

	case openResultMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	if !m.view.Open {
		if key.Matches(msg, m.keys.ToggleChat) || key.Matches(msg, m.keys.Send) {
			return m, m.open()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		m.widget.Hide()
		m.view = m.widget.View()
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		if m.view.Closed {
			return m, nil
		}
		content, media, err := parseInput(m.input.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		m.input.Reset()
		m.err = nil
		w := m.widget
		return m, func() tea.Msg {
			return sendResultMsg{err: w.Send(context.Background(), content, media)}
		}

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		if msg.Type != tea.KeyRunes {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	if m.view.Closed {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// open shows the panel and loads history in the background.
func (m *Model) open() tea.Cmd {
	w := m.widget
	m.input.Focus()
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return openResultMsg{err: w.Open(context.Background())}
	})
}

// OpenCmd opens the panel from outside, e.g. when a bell link targets this order.
func (m *Model) OpenCmd() tea.Cmd {
	if m.view.Open {
		return nil
	}
	return m.open()
}

// parseInput turns an input line into message content and an optional attachment.
func parseInput(line string) (string, *rest.Attachment, error) {
	if !strings.HasPrefix(line, attachPrefix) {
		return line, nil, nil
	}
	args := strings.TrimSpace(strings.TrimPrefix(line, attachPrefix))
	path, caption, _ := strings.Cut(args, " ")
	if path == "" {
		return "", nil, errors.New("usage: /attach <path> [caption]")
	}
	att, err := loadAttachment(path)
	if err != nil {
		return "", nil, err
	}
	return caption, att, nil
}

func loadAttachment(path string) (*rest.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if info.Size() > rest.MaxAttachmentSize {
		return nil, chat.ErrAttachmentTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return &rest.Attachment{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// refreshViewport re-renders the transcript and scrolls to the bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.view.Messages) == 0 {
		return theme.HelpStyle.Render("No messages yet.")
	}

	roleStyle := lipgloss.NewStyle().Bold(true)
	selfStyle := roleStyle.Foreground(theme.ColorBlue)
	otherStyle := roleStyle.Foreground(theme.ColorGreen)
	pendingStyle := theme.HelpStyle

	self := rest.OwnerUser
	if m.view.Admin {
		self = rest.OwnerAdmin
	}

	var sections []string
	for _, msg := range m.view.Messages {
		var label string
		if msg.Owner == self {
			label = selfStyle.Render("You")
		} else {
			label = otherStyle.Render(ownerName(msg.Owner))
		}
		if !msg.CreatedAt.IsZero() {
			label += " " + theme.ReadStyle.Render(msg.CreatedAt.Local().Format("15:04"))
		}
		body := msg.MessageContent
		if msg.HasMedia {
			body = strings.TrimSpace(body + " [attachment]")
		}
		if strings.HasPrefix(msg.MessageID, "temp-") {
			body = pendingStyle.Render(body + " (sending…)")
		}
		sections = append(sections, label, body, "")
	}
	return strings.Join(sections, "\n")
}

func ownerName(o rest.Owner) string {
	if o == rest.OwnerAdmin {
		return "Support"
	}
	return "Customer"
}

// Title renders the panel header with the unread badge, e.g. "Order chat 9+".
func (m Model) Title() string {
	title := lipgloss.NewStyle().Bold(true).Render("Order chat #" + m.view.OrderID)
	if m.view.Unread > 0 && !m.view.Open {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", theme.BadgeStyle.Render(bell.BadgeText(m.view.Unread)))
	}
	return title
}

// View renders the chat panel.
func (m Model) View() string {
	var body string
	switch {
	case m.view.State == chat.StateLoadingThread:
		body = theme.HelpStyle.Render("Loading conversation…")
	case m.view.State == chat.StateHidden:
		body = theme.HelpStyle.Render("No conversation for this order.")
	case !m.view.Open:
		body = theme.HelpStyle.Render("Press o to open the conversation.")
	default:
		footer := m.input.View()
		if m.view.Closed {
			footer = theme.BannerStyle.Render(ClosedBanner)
		}
		sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
			Render(strings.Repeat("─", max(min(m.width-6, 80), 1)))
		parts := []string{m.viewport.View(), sep, footer}
		if m.err != nil {
			parts = append(parts, theme.ErrorStyle.Render(m.err.Error()))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	style := theme.PanelStyle
	if m.focused {
		style = theme.FocusedPanelStyle
	}
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, m.Title(), "", body))
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-8, 10)
	m.viewport.Width = max(width-4, 10)
	m.viewport.Height = max(height-8, 3)
	m.refreshViewport()
}

// Focus gives keyboard focus to the panel.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	if m.view.Open {
		return m.input.Focus()
	}
	return nil
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// OrderID returns the order the panel belongs to.
func (m Model) OrderID() string { return m.view.OrderID }

// Typing reports whether key presses should go to the input.
func (m Model) Typing() bool {
	return m.focused && m.view.Open && !m.view.Closed
}

// Err returns the last send or load error shown in the panel.
func (m Model) Err() error { return m.err }
