// Package dashboard provides a Bubble Tea terminal UI over a running
// stream.Runtime: a live ticker table, connection status, and a
// scrolling strategy-alert feed. Grounded on pkg/ui's color palette and
// style set, adapted from the arbitrage bot's opportunity/price-snapshot
// view to this domain's ticker/alert view.
package dashboard

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#10B981")
	colorDanger    = lipgloss.Color("#EF4444")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorMuted     = lipgloss.Color("#6B7280")
	colorBorder    = lipgloss.Color("#374151")
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 2)

	statusConnected = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	statusReconnect = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	statusDown      = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder())

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	alertStyle     = lipgloss.NewStyle().Foreground(colorWarning)
	helpStyle      = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
)
