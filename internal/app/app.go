package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/storefront-realtime-go/chat"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/bell"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/chatview"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/keys"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/theme"
	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// EventStream is the SSE side the app watches and reconnects.
type EventStream interface {
	State(aud realtime.Audience) realtime.ConnectionState
	OnStateChanged(fn func(realtime.StateEvent)) (unsubscribe func())
	ConnectAdmin() error
	ConnectUser(userID string) error
	DisconnectAdmin()
	UserID() string
}

// Socket is the WebSocket side the app watches and reconnects.
type Socket interface {
	State() realtime.ConnectionState
	OnStateChanged(fn func(realtime.StateEvent)) (unsubscribe func())
	Reconnect()
}

// ChatWidget is a chat.Widget as seen by the app.
type ChatWidget interface {
	chatview.Widget
	OnChange(fn func(chat.View)) (unsubscribe func())
}

// Services are the live components the app renders. WS, Chat and Toasts are
// optional.
type Services struct {
	Store  *realtime.NotificationStore
	SSE    EventStream
	WS     Socket
	Chat   ChatWidget
	Toasts *ui.ToastQueue
	Admin  bool
}

type panel int

const (
	panelBell panel = iota
	panelChat
)

// statesMsg carries the connection states after any of them changed.
type statesMsg struct {
	admin, user, ws realtime.ConnectionState
}

// toastExpiredMsg clears the toast line once its duration elapses.
type toastExpiredMsg struct {
	seq int
}

// reconnectedMsg reports the outcome of a manual reconnect.
type reconnectedMsg struct {
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	svc    Services
	keys   *keys.KeyMap
	help   help.Model
	layout ui.Layout
	ready  bool

	bell    bell.Model
	chat    chatview.Model
	hasChat bool
	focus   panel

	states   statesMsg
	toast    *realtime.Toast
	toastSeq int
	status   string

	storeSig *ui.Signal
	chatSig  *ui.Signal
	stateSig *ui.Signal
	unsubs   []func()
}

// New creates the root model and subscribes to the services. Call Close when
// the program exits.
func New(svc Services) Model {
	k := keys.DefaultKeyMap()
	storeSig, chatSig, stateSig := ui.NewSignal(), ui.NewSignal(), ui.NewSignal()
	m := Model{
		svc:      svc,
		keys:     k,
		help:     help.New(),
		layout:   ui.NewLayout(80, 24),
		bell:     bell.New(svc.Store, k, svc.Admin),
		storeSig: storeSig,
		chatSig:  chatSig,
		stateSig: stateSig,
	}
	m.bell.Focus()

	m.unsubs = append(m.unsubs,
		svc.Store.OnChange(func([]realtime.Notification) { storeSig.Notify() }),
		svc.SSE.OnStateChanged(func(realtime.StateEvent) { stateSig.Notify() }),
	)
	if svc.WS != nil {
		m.unsubs = append(m.unsubs, svc.WS.OnStateChanged(func(realtime.StateEvent) { stateSig.Notify() }))
	}
	if svc.Chat != nil {
		m.chat = chatview.New(svc.Chat, k, 48, 20)
		m.hasChat = true
		m.unsubs = append(m.unsubs, svc.Chat.OnChange(func(chat.View) { chatSig.Notify() }))
	}
	m.states = m.readStates()
	return m
}

// Close drops the service subscriptions.
func (m Model) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitStore(), m.waitStates()}
	if m.hasChat {
		cmds = append(cmds, m.chat.Init(), m.waitChat())
	}
	if m.svc.Toasts != nil {
		cmds = append(cmds, m.svc.Toasts.Wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) waitStore() tea.Cmd {
	store := m.svc.Store
	return m.storeSig.Wait(func() tea.Msg {
		return bell.NotificationsMsg{Items: store.Notifications()}
	})
}

func (m Model) waitChat() tea.Cmd {
	w := m.svc.Chat
	return m.chatSig.Wait(func() tea.Msg {
		return chatview.ViewMsg{View: w.View()}
	})
}

func (m Model) waitStates() tea.Cmd {
	return m.stateSig.Wait(func() tea.Msg { return m.readStates() })
}

func (m Model) readStates() statesMsg {
	s := statesMsg{
		admin: m.svc.SSE.State(realtime.AudienceAdmin),
		user:  m.svc.SSE.State(realtime.AudienceUser),
		ws:    realtime.StateDisconnected,
	}
	if m.svc.WS != nil {
		s.ws = m.svc.WS.State()
	}
	return s
}

// Update routes messages to the panels.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.bell.SetSize(m.layout.BellWidth(m.hasChat), h)
		if m.hasChat {
			m.chat.SetSize(m.layout.ChatWidth(), h)
		}
		m.help.Width = msg.Width
		return m, nil

	case bell.NotificationsMsg:
		var cmd tea.Cmd
		m.bell, cmd = m.bell.Update(msg)
		return m, tea.Batch(cmd, m.waitStore())

	case chatview.ViewMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, tea.Batch(cmd, m.waitChat())

	case statesMsg:
		m.states = msg
		return m, m.waitStates()

	case ui.ToastMsg:
		m.toastSeq++
		t := msg.Toast
		m.toast = &t
		seq := m.toastSeq
		d := t.Duration
		if d <= 0 {
			d = realtime.ToastDuration
		}
		return m, tea.Batch(
			m.svc.Toasts.Wait(),
			tea.Tick(d, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} }),
		)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case bell.OpenLinkMsg:
		m.status = "→ " + msg.Path
		if m.hasChat && m.chat.OrderID() == msg.OrderID {
			m.setFocus(panelChat)
			return m, tea.Batch(m.chat.Focus(), m.chat.OpenCmd())
		}
		return m, nil

	case reconnectedMsg:
		if msg.err != nil {
			m.status = "reconnect: " + msg.err.Error()
		} else {
			m.status = "reconnecting…"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.hasChat {
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// Letters go to the chat input while it is focused and open.
	typing := m.focus == panelChat && m.chat.Typing()

	switch {
	case key.Matches(msg, m.keys.SwitchPanel) && m.hasChat:
		if m.focus == panelBell {
			m.setFocus(panelChat)
			return m, m.chat.Focus()
		}
		m.setFocus(panelBell)
		return m, nil

	case typing:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reconnect):
		return m, m.reconnect()
	}

	var cmd tea.Cmd
	if m.focus == panelChat {
		m.chat, cmd = m.chat.Update(msg)
	} else {
		m.bell, cmd = m.bell.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(p panel) {
	m.focus = p
	if p == panelChat {
		m.bell.Blur()
		return
	}
	m.chat.Blur()
	m.bell.Focus()
}

// reconnect restarts every push channel with fresh credentials.
func (m Model) reconnect() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		if svc.WS != nil {
			svc.WS.Reconnect()
		}
		if svc.Admin {
			svc.SSE.DisconnectAdmin()
			return reconnectedMsg{err: svc.SSE.ConnectAdmin()}
		}
		if id := svc.SSE.UserID(); id != "" {
			return reconnectedMsg{err: svc.SSE.ConnectUser(id)}
		}
		return reconnectedMsg{}
	}
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Storefront"
	if m.svc.Admin {
		title = "Storefront Admin"
	}
	if unread := m.bell.Unread(); unread > 0 {
		title += " 🔔 " + bell.BadgeText(unread)
	}
	header := m.layout.RenderHeader(title, m.connectionSummary())

	content := m.bell.View()
	if m.hasChat {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, m.chat.View())
	}

	return m.layout.RenderWithFrame(header, content, m.renderToast(), m.layout.RenderStatusBar(m.hints()))
}

func (m Model) connectionSummary() string {
	aud := realtime.AudienceUser
	sse := m.states.user
	if m.svc.Admin {
		aud, sse = realtime.AudienceAdmin, m.states.admin
	}
	parts := []string{fmt.Sprintf("sse/%s %s", aud, theme.StateStyle(sse).Render(sse.String()))}
	if m.svc.WS != nil {
		parts = append(parts, "ws "+theme.StateStyle(m.states.ws).Render(m.states.ws.String()))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	line := m.toast.Title
	if m.toast.Message != "" {
		line += " " + m.toast.Message
	}
	return theme.SeverityStyle(m.toast.Severity).Render(line)
}

func (m Model) hints() string {
	if m.status != "" {
		return m.status + " | " + m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}
