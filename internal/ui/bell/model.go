package bell

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/storefront-realtime-go/internal/ui/keys"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/theme"
	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// NotificationsMsg carries a fresh snapshot of the notification store.
type NotificationsMsg struct {
	Items []realtime.Notification
}

// OpenLinkMsg is emitted when a notification with an order link is selected.
type OpenLinkMsg struct {
	OrderID string
	Path    string
}

// Store is the part of realtime.NotificationStore the bell mutates.
type Store interface {
	Notifications() []realtime.Notification
	MarkAsRead(id string)
	Clear()
}

// Model renders the notification bell: a badge plus the list of received
// notifications, newest first.
type Model struct {
	store   Store
	items   []realtime.Notification
	cursor  int
	keys    *keys.KeyMap
	admin   bool
	focused bool
	now     func() time.Time
	width   int
	height  int
}

// New creates a bell bound to store. admin selects the back office link targets.
func New(store Store, k *keys.KeyMap, admin bool) Model {
	return Model{
		store: store,
		items: store.Notifications(),
		keys:  k,
		admin: admin,
		now:   time.Now,
	}
}

// WithClock overrides the time source used for relative timestamps.
func (m Model) WithClock(now func() time.Time) Model {
	m.now = now
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// Update handles messages for the bell.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NotificationsMsg:
		m.items = msg.Items
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.MarkRead):
		if len(m.items) == 0 {
			return m, nil
		}
		n := m.items[m.cursor]
		m.store.MarkAsRead(n.ID)
		m.items = m.store.Notifications()
		m.clampCursor()
		if path := n.Link(m.admin); path != "" {
			return m, func() tea.Msg {
				return OpenLinkMsg{OrderID: n.Data.OrderID, Path: path}
			}
		}
	case key.Matches(msg, m.keys.Clear):
		m.store.Clear()
		m.items = nil
		m.cursor = 0
	}
	return m, nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Unread returns the number of unread notifications in the current snapshot.
func (m Model) Unread() int {
	n := 0
	for _, item := range m.items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (realtime.Notification, bool) {
	if len(m.items) == 0 {
		return realtime.Notification{}, false
	}
	return m.items[m.cursor], true
}

// View renders the bell panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Render("Notifications")
	if unread := m.Unread(); unread > 0 {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", theme.BadgeStyle.Render(BadgeText(unread)))
	}

	var rows []string
	rows = append(rows, title, "")

	if len(m.items) == 0 {
		rows = append(rows, theme.HelpStyle.Render("No notifications yet"))
	}

	now := m.now()
	visible := m.visibleRange()
	for i := visible.start; i < visible.end; i++ {
		rows = append(rows, m.renderItem(i, now))
	}

	style := theme.PanelStyle
	if m.focused {
		style = theme.FocusedPanelStyle
	}
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	if m.height > 0 {
		style = style.Height(m.height - 2)
	}
	return style.Render(strings.Join(rows, "\n"))
}

func (m Model) renderItem(i int, now time.Time) string {
	n := m.items[i]

	titleStyle := theme.UnreadStyle
	if n.IsRead {
		titleStyle = theme.ReadStyle
	}
	line := titleStyle.Render(n.ResourceType.Label())
	if n.Data.OrderID != "" {
		line += theme.ReadStyle.Render(" #" + n.Data.OrderID)
	}
	line += theme.HelpStyle.Render("  " + RelativeTime(n.CreatedAt, now))

	if i == m.cursor && m.focused {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

type span struct{ start, end int }

// visibleRange keeps the cursor on screen when the list is taller than the panel.
func (m Model) visibleRange() span {
	rows := m.height - 4
	if rows <= 0 || len(m.items) <= rows {
		return span{0, len(m.items)}
	}
	start := m.cursor - rows + 1
	if start < 0 {
		start = 0
	}
	return span{start, start + rows}
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Focus gives keyboard focus to the bell.
func (m *Model) Focus() { m.focused = true }

// Blur removes keyboard focus.
func (m *Model) Blur() { m.focused = false }

// Focused reports whether the bell receives keys.
func (m Model) Focused() bool { return m.focused }

// RelativeTime formats t relative to now: "Just now", "5m ago", "3h ago", "2d ago".
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	minutes := int(d / time.Minute)
	if minutes < 1 {
		return "Just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	return fmt.Sprintf("%dd ago", hours/24)
}

// BadgeText renders an unread counter, capping it at "9+".
func BadgeText(n int) string {
	if n > 9 {
		return "9+"
	}
	return fmt.Sprint(n)
}
