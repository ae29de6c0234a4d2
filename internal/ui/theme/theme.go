package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps the bell and chat panels.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedPanelStyle marks the panel receiving keys.
var FocusedPanelStyle = PanelStyle.
	BorderForeground(ColorBlue)

var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// UnreadStyle renders titles of notifications not yet read.
var UnreadStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)

// ReadStyle dims notifications already read.
var ReadStyle = lipgloss.NewStyle().Foreground(ColorGray)

// BadgeStyle renders unread counters.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// BannerStyle renders the closed-thread notice above the chat input.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Italic(true)

var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

var ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed)

// StateStyle returns a color-coded style for a connection state.
func StateStyle(s realtime.ConnectionState) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch s {
	case realtime.StateOpen:
		return base.Foreground(ColorGreen)
	case realtime.StateConnecting:
		return base.Foreground(ColorYellow)
	case realtime.StateErrored:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// SeverityStyle colors toasts by severity.
func SeverityStyle(s realtime.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch s {
	case realtime.SeveritySuccess:
		return base.Foreground(ColorGreen)
	case realtime.SeverityWarning:
		return base.Foreground(ColorYellow)
	case realtime.SeverityError:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorBlue)
	}
}
