package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/reportstore"
)

// Style palette, carried over verbatim from the teacher's view.go: the
// same success/error/muted colors and box/header/status-bar treatment,
// now painting signal-lifecycle panels instead of order-book panels.
var (
	successColor = lipgloss.Color("#00FF87")
	errorColor   = lipgloss.Color("#FF5555")
	mutedColor   = lipgloss.Color("#6272A4")

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#6272A4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// View renders the active panel.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.activeView {
	case ViewDashboard:
		content = m.renderDashboard()
	case ViewReport:
		content = m.renderReport()
	case ViewHelp:
		content = m.renderHelp()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		"",
		content,
		"",
		m.renderKeyHints(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("⚡ BACKTEST-KIT MONITOR")

	status := "STOPPED"
	statusStyle := errorStyle
	if m.running {
		status = "RUNNING"
		statusStyle = successStyle
	}

	pairsText := mutedStyle.Render(fmt.Sprintf("Pairs: %d", len(m.pairs)))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		"  ",
		statusStyle.Render(status),
		"  ",
		pairsText,
	)
}

func (m Model) renderDashboard() string {
	if len(m.pairs) == 0 {
		return boxStyle.Render(mutedStyle.Render("No engines registered yet."))
	}

	rows := make([]string, 0, len(m.pairs)+1)
	rows = append(rows, titleStyle.Render(fmt.Sprintf("%-14s %-18s %-10s %-14s %s", "SYMBOL", "STRATEGY", "KIND", "REASON", "PNL%")))

	for i, key := range m.pairs {
		snap := m.snapshots[key]
		kindStyle := mutedStyle
		switch snap.Kind {
		case engine.KindOpened, engine.KindActive, engine.KindScheduled:
			kindStyle = successStyle
		case engine.KindClosed, engine.KindCancelled:
			kindStyle = errorStyle
			if snap.PnLPercent.IsPositive() {
				kindStyle = successStyle
			}
		}

		row := fmt.Sprintf("%-14s %-18s %-10s %-14s %s",
			key.Symbol, key.StrategyName, string(snap.Kind), string(snap.CloseReason), snap.PnLPercent.StringFixed(2))
		if i == m.selected {
			row = "> " + row
		} else {
			row = "  " + row
		}
		rows = append(rows, kindStyle.Render(row))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderReport() string {
	if len(m.pairs) == 0 {
		return boxStyle.Render(mutedStyle.Render("No engines registered yet."))
	}
	key := m.pairs[m.selected]
	report := m.store.GetReport(reportstore.Key{Symbol: key.Symbol, StrategyName: key.StrategyName})
	return boxStyle.Render(report)
}

func (m Model) renderHelp() string {
	lines := []string{
		"1  dashboard",
		"2  report for selected pair",
		"3  this help",
		"up/k, down/j  change selection",
		"c  clear error",
		"r  force refresh",
		"q, ctrl+c  quit",
	}
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = mutedStyle.Render(l)
	}
	recent := m.recentMessages(10)
	rendered = append(rendered, "", titleStyle.Render("recent events"))
	for _, r := range recent {
		rendered = append(rendered, mutedStyle.Render(r))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rendered...))
}

func (m Model) renderKeyHints() string {
	return helpStyle.Render("[1] dashboard  [2] report  [3] help  [q] quit")
}

func (m Model) renderStatusBar() string {
	if m.lastError != nil {
		return statusBarStyle.Render(errorStyle.Render("error: " + m.lastError.Error()))
	}
	return statusBarStyle.Render(fmt.Sprintf("last update: %s", m.lastUpdate.Format("15:04:05")))
}
