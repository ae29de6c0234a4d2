package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/storefront-realtime-go/internal/ui/theme"
)

// Layout splits the terminal into a header, a bell column, a chat column and
// a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	ToastHeight     int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
		ToastHeight:     1,
	}
}

// ContentHeight returns the height left for the panels.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight-l.ToastHeight, 0)
}

// BellWidth returns the bell column width. Without a chat panel the bell
// takes the whole width.
func (l Layout) BellWidth(withChat bool) int {
	if !withChat {
		return l.Width
	}
	return max(l.Width*2/5, 30)
}

// ChatWidth returns the chat column width.
func (l Layout) ChatWidth() int {
	return max(l.Width-l.BellWidth(true), 0)
}

// RenderHeader renders the title bar with the connection summary on the right.
func (l Layout) RenderHeader(title, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.Align(lipgloss.Right).Render(status)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, statusRendered)
}

// RenderStatusBar renders the bottom bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame stacks header, panels, toast line and status bar.
func (l Layout) RenderWithFrame(header, content, toast, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, toast, statusBar)
}
