// Package tui is the bubbletea/lipgloss terminal dashboard for observing
// a running registry of engines: per-(symbol,strategyName) lifecycle
// state plus the reportstore summary for whichever pair is selected.
// Grounded on the teacher's own internal/tui/model.go (Model/View/Init/
// tickCmd shape), retargeted from the multiplexer/order-manager/risk-
// manager/strategy-orchestrator bot stack onto this repo's own
// registry+eventbus+reportstore.
package tui

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/registry"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/reportstore"
)

// View is the active panel.
type View int

const (
	ViewDashboard View = iota
	ViewReport
	ViewHelp
)

// PairSnapshot is the most recent non-idle Result observed for one
// (symbol, strategyName) pair, refreshed as signal events arrive on the
// EventBus.
type PairSnapshot struct {
	Kind        engine.Kind
	CloseReason engine.CloseReason
	PnLPercent  decimal.Decimal
	UpdatedAt   time.Time
}

// Model is the TUI's immutable-per-update bubbletea state. reg and store
// are read-only references into the running process; Model never
// mutates them, it only renders what they report.
type Model struct {
	reg   *registry.Registry
	store *reportstore.Store

	running bool

	width      int
	height     int
	activeView View
	selected   int

	pairs      []registry.Key
	snapshots  map[registry.Key]PairSnapshot
	lastUpdate time.Time

	messages []string

	lastError error
	errorTime time.Time
}

// NewModel constructs a Model observing reg and store. running reflects
// whether the process's scheduler drivers are currently active.
func NewModel(reg *registry.Registry, store *reportstore.Store, running bool) Model {
	return Model{
		reg:        reg,
		store:      store,
		running:    running,
		activeView: ViewDashboard,
		snapshots:  make(map[registry.Key]PairSnapshot),
		messages:   make([]string, 0),
	}
}

// Init starts the periodic refresh tick and enters the alt screen.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

// Message types.
type tickMsg time.Time
type signalMsg struct {
	symbol       string
	strategyName string
	result       engine.Result
}
type errorMsg error

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// SignalCmd wraps a bus-observed Result as a tea.Msg, for callers
// forwarding EventBus signal events into a running tea.Program via
// Program.Send.
func SignalCmd(symbol, strategyName string, result engine.Result) tea.Msg {
	return signalMsg{symbol: symbol, strategyName: strategyName, result: result}
}

// ErrorCmd wraps an error as a tea.Msg.
func ErrorCmd(err error) tea.Msg {
	return errorMsg(err)
}

func (m *Model) addMessage(message string) {
	timestamp := time.Now().Format("15:04:05")
	m.messages = append(m.messages, timestamp+" "+message)
	if len(m.messages) > 100 {
		m.messages = m.messages[1:]
	}
}

func (m *Model) recentMessages(count int) []string {
	if len(m.messages) <= count {
		return m.messages
	}
	return m.messages[len(m.messages)-count:]
}

// refreshPairs re-reads the registry's current key set, sorted for a
// stable dashboard row order.
func (m *Model) refreshPairs() {
	keys := m.reg.Keys()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].StrategyName < keys[j].StrategyName
	})
	m.pairs = keys
	if m.selected >= len(m.pairs) {
		m.selected = 0
	}
	m.lastUpdate = time.Now()
}

func (m *Model) applySignal(msg signalMsg) {
	key := registry.Key{Symbol: msg.symbol, StrategyName: msg.strategyName}
	m.snapshots[key] = PairSnapshot{
		Kind:        msg.result.Kind,
		CloseReason: msg.result.CloseReason,
		PnLPercent:  msg.result.PnLPercent,
		UpdatedAt:   time.Now(),
	}
	m.addMessage(msg.symbol + "/" + msg.strategyName + ": " + string(msg.result.Kind))
}

func (m *Model) setError(err error) {
	m.lastError = err
	m.errorTime = time.Now()
	if err != nil {
		m.addMessage("error: " + err.Error())
	}
}
