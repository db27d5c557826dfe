package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and advances the model, grounded on the
// teacher's own update.go dispatch shape (tea.KeyMsg/WindowSizeMsg/
// tickMsg/errorMsg cases), retargeted from order/position update
// messages onto signalMsg (EventBus-forwarded engine.Result events).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refreshPairs()
		return m, tickCmd()

	case signalMsg:
		m.applySignal(msg)
		return m, nil

	case errorMsg:
		m.setError(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "1":
		m.activeView = ViewDashboard
		return m, nil

	case "2":
		m.activeView = ViewReport
		return m, nil

	case "3":
		m.activeView = ViewHelp
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.pairs)-1 {
			m.selected++
		}
		return m, nil

	case "c":
		m.lastError = nil
		return m, nil

	case "r":
		m.refreshPairs()
		return m, nil
	}

	return m, nil
}
