// Package reportstore implements the Report/Storage accumulator (C11): a
// bounded FIFO of closed/cancelled signal outcomes per (symbol,
// strategyName), plus the statistics derived from it. Grounded on the
// teacher's internal/backtesting engine.calculateMetrics/
// calculateMaxDrawdown (win/loss counting, profit factor, annualization
// from elapsed span) and pkg/utils.StandardDeviation, retargeted from a
// single end-of-run metrics struct onto a live, continuously-updated
// deque fed by the EventBus rather than a closed trade list computed
// once after a backtest finishes.
//
// Every statistic is nullable: a metric whose denominator would be zero
// or non-finite (no closed trades yet, zero variance, zero elapsed span)
// comes back nil rather than a NaN or a misleading zero, per spec.md
// §4.11's "return ∅".
package reportstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
	"github.com/tripolskypetr/backtest-kit-sub014/pkg/utils"
)

// Capacity bounds each (symbol, strategyName) deque, per spec.md §4.11.
const Capacity = 250

// DefaultDumpDir is the root reports are written under when Dump is
// called without an explicit path, per spec.md §6's ./dump/performance
// convention.
const DefaultDumpDir = "./dump/performance"

// Key identifies one (symbol, strategyName) aggregation.
type Key struct {
	Symbol       string
	StrategyName string
}

func (k Key) fileName() string {
	return fmt.Sprintf("%s_%s.txt", k.Symbol, k.StrategyName)
}

// Entry is one terminal outcome recorded for a Key: a closed or
// cancelled signal. Non-terminal results (idle/scheduled/opened/active)
// are never recorded, mirroring the teacher's trades-only metrics input.
type Entry struct {
	Kind        engine.Kind
	CloseReason engine.CloseReason
	PnLPercent  decimal.Decimal
	CloseTime   int64 // unix seconds
}

// Win reports whether the entry was a profitable closed trade. A
// cancellation is neither a win nor a loss; it is excluded from
// win/loss statistics entirely, matching the teacher's trades-only
// (never cancellations-included) metrics.
func (e Entry) Win() bool {
	return e.Kind == engine.KindClosed && e.PnLPercent.GreaterThan(decimal.Zero)
}

// Store accumulates Entries per Key and answers statistics queries over
// them. Zero value is not usable; construct with New.
type Store struct {
	mu   sync.Mutex
	data map[Key][]Entry // newest at index 0, dropped from the back past Capacity
	log  *logger.Logger
}

// New constructs an empty Store.
func New() *Store {
	return &Store{data: make(map[Key][]Entry), log: logger.Component("reportstore")}
}

// Subscribe wires the store as a side-effect-free observer of bus's
// signal topic: every terminal Result is appended as a new Entry.
// Non-terminal results are ignored. Returns the subscription's
// Unsubscribe handle.
func (s *Store) Subscribe(bus *eventbus.Bus) eventbus.Unsubscribe {
	return bus.On(eventbus.TopicSignal, func(evt eventbus.Event) {
		res, ok := evt.Payload.(engine.Result)
		if !ok {
			return
		}
		s.Record(res)
	})
}

// Record appends res as a new Entry for its (Symbol, StrategyName), if
// res is terminal (Closed or Cancelled). Called directly by tests and
// by the Subscribe handler alike.
func (s *Store) Record(res engine.Result) {
	if res.Kind != engine.KindClosed && res.Kind != engine.KindCancelled {
		return
	}
	key := Key{Symbol: res.Symbol, StrategyName: res.StrategyName}
	entry := Entry{
		Kind:        res.Kind,
		CloseReason: res.CloseReason,
		PnLPercent:  res.PnLPercent,
		CloseTime:   res.CloseTime,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]Entry{entry}, s.data[key]...)
	if len(entries) > Capacity {
		s.log.Debug("capacity reached, dropping oldest entry", "key", key, "capacity", Capacity)
		entries = entries[:Capacity]
	}
	s.data[key] = entries
}

// GetData returns a defensive copy of the entries recorded for key,
// newest first. An unknown key returns an empty, non-nil slice.
func (s *Store) GetData(key Key) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.data[key]))
	copy(out, s.data[key])
	return out
}

// Stats holds the derived statistics for one Key's recorded entries.
// Every field beyond the five trade counts (TotalTrades through
// LosingTrades) is a pointer: nil means the spec's ∅, not zero.
type Stats struct {
	TotalTrades      int
	ClosedTrades     int
	CancelledTrades  int
	WinningTrades    int
	LosingTrades     int

	WinRatePct           *decimal.Decimal
	AveragePnLPercent    *decimal.Decimal
	TotalPnLPercent      *decimal.Decimal
	StandardDeviation    *decimal.Decimal
	SharpeRatio          *decimal.Decimal
	CertaintyRatio       *decimal.Decimal
	ExpectedYearlyReturn *decimal.Decimal
}

// GetStats computes Stats over key's current entries.
func (s *Store) GetStats(key Key) Stats {
	return computeStats(s.GetData(key))
}

func computeStats(entries []Entry) Stats {
	stats := Stats{TotalTrades: len(entries)}

	closed := make([]Entry, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case engine.KindClosed:
			closed = append(closed, e)
			stats.ClosedTrades++
			if e.Win() {
				stats.WinningTrades++
			} else {
				stats.LosingTrades++
			}
		case engine.KindCancelled:
			stats.CancelledTrades++
		}
	}

	if len(closed) == 0 {
		return stats
	}

	n := decimal.NewFromInt(int64(len(closed)))
	pnls := make([]decimal.Decimal, len(closed))
	total := decimal.Zero
	for i, e := range closed {
		pnls[i] = e.PnLPercent
		total = total.Add(e.PnLPercent)
	}
	avg := total.Div(n)

	stats.TotalPnLPercent = ptr(total)
	stats.AveragePnLPercent = ptr(avg)
	stats.WinRatePct = ptr(decimal.NewFromInt(int64(stats.WinningTrades)).Div(n).Mul(decimal.NewFromInt(100)))

	stddev := utils.StandardDeviation(pnls)
	if !stddev.IsZero() {
		stats.StandardDeviation = ptr(stddev)
		stats.SharpeRatio = ptr(avg.Div(stddev))
	}

	if stats.LosingTrades > 0 {
		losingRatio := decimal.NewFromInt(int64(stats.LosingTrades)).Div(n)
		if !losingRatio.IsZero() {
			winningRatio := decimal.NewFromInt(int64(stats.WinningTrades)).Div(n)
			stats.CertaintyRatio = ptr(winningRatio.Div(losingRatio))
		}
	}

	stats.ExpectedYearlyReturn = expectedYearlyReturn(closed, avg)

	return stats
}

// expectedYearlyReturn annualizes avg (the mean PnL percent per closed
// trade) by the observed trading frequency, grounded on the teacher's
// calculateMetrics AnnualizedReturn = TotalReturnPct / years, adapted
// here from "one return over the whole backtest span" to "average
// per-trade return times trades observed per year over the entries'
// own span". Returns ∅ when fewer than two closed trades exist or their
// span collapses to zero (both make "trades per year" non-finite).
func expectedYearlyReturn(closed []Entry, avg decimal.Decimal) *decimal.Decimal {
	if len(closed) < 2 {
		return nil
	}
	sorted := make([]Entry, len(closed))
	copy(sorted, closed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CloseTime < sorted[j].CloseTime })

	span := sorted[len(sorted)-1].CloseTime - sorted[0].CloseTime
	if span <= 0 {
		return nil
	}

	const secondsPerYear = float64(365.25 * 24 * 3600)
	tradesPerYear := secondsPerYear / float64(span) * float64(len(sorted)-1)
	yearly := avg.Mul(decimal.NewFromFloat(tradesPerYear))
	return &yearly
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// GetReport renders a formatted text report for key, in the teacher's
// banner-and-emoji-section idiom (internal/backtesting.Reporter.
// GenerateReport), retargeted from a one-shot backtest summary onto the
// live accumulator's current Stats.
func (s *Store) GetReport(key Key) string {
	entries := s.GetData(key)
	stats := computeStats(entries)

	var sb strings.Builder
	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("   SIGNAL PERFORMANCE REPORT — %s / %s\n", key.Symbol, key.StrategyName))
	sb.WriteString("═══════════════════════════════════════════════════════\n\n")

	sb.WriteString("📊 OVERVIEW\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Recorded:       %d\n", stats.TotalTrades))
	sb.WriteString(fmt.Sprintf("Closed Trades:        %d\n", stats.ClosedTrades))
	sb.WriteString(fmt.Sprintf("Cancelled:            %d\n", stats.CancelledTrades))
	sb.WriteString(fmt.Sprintf("Winning / Losing:     %d / %d\n\n", stats.WinningTrades, stats.LosingTrades))

	sb.WriteString("📈 STATISTICS\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	writeStat(&sb, "Win Rate", stats.WinRatePct, true)
	writeStat(&sb, "Average PnL", stats.AveragePnLPercent, true)
	writeStat(&sb, "Total PnL", stats.TotalPnLPercent, true)
	writeStat(&sb, "Std Deviation", stats.StandardDeviation, false)
	writeStat(&sb, "Sharpe Ratio", stats.SharpeRatio, false)
	writeStat(&sb, "Certainty Ratio", stats.CertaintyRatio, false)
	writeStat(&sb, "Expected Yearly Return", stats.ExpectedYearlyReturn, true)

	sb.WriteString("\n═══════════════════════════════════════════════════════\n")
	return sb.String()
}

func writeStat(sb *strings.Builder, label string, v *decimal.Decimal, isPercent bool) {
	if v == nil {
		sb.WriteString(fmt.Sprintf("%-22s∅\n", label+":"))
		return
	}
	if isPercent {
		sb.WriteString(fmt.Sprintf("%-22s%.2f%%\n", label+":", v.InexactFloat64()))
		return
	}
	sb.WriteString(fmt.Sprintf("%-22s%.2f\n", label+":", v.InexactFloat64()))
}

// GetSummary renders the teacher's one-line GenerateSummary equivalent.
func (s *Store) GetSummary(key Key) string {
	stats := s.GetStats(key)
	winRate := "∅"
	if stats.WinRatePct != nil {
		winRate = fmt.Sprintf("%.2f%%", stats.WinRatePct.InexactFloat64())
	}
	sharpe := "∅"
	if stats.SharpeRatio != nil {
		sharpe = fmt.Sprintf("%.2f", stats.SharpeRatio.InexactFloat64())
	}
	return fmt.Sprintf("Trades: %d | Closed: %d | Win Rate: %s | Sharpe: %s",
		stats.TotalTrades, stats.ClosedTrades, winRate, sharpe)
}

// Dump writes key's report to disk using the same write-temp-then-rename
// discipline as PersistenceAdapter.Write, under path (or DefaultDumpDir
// if path is empty).
func (s *Store) Dump(key Key, path string) error {
	if path == "" {
		path = DefaultDumpDir
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("reportstore: mkdir %s: %w", path, err)
	}

	target := filepath.Join(path, key.fileName())
	tmp := target + ".tmp"
	report := s.GetReport(key)
	if err := os.WriteFile(tmp, []byte(report), 0o644); err != nil {
		return fmt.Errorf("reportstore: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("reportstore: rename %s -> %s: %w", tmp, target, err)
	}
	return nil
}

// DumpJSON writes key's raw entries as indented JSON, for downstream
// tooling that prefers structured data over the prose report.
func (s *Store) DumpJSON(key Key, path string) error {
	if path == "" {
		path = DefaultDumpDir
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("reportstore: mkdir %s: %w", path, err)
	}

	entries := s.GetData(key)
	bs, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("reportstore: marshal %s: %w", key, err)
	}

	base := strings.TrimSuffix(key.fileName(), ".txt") + ".json"
	target := filepath.Join(path, base)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return fmt.Errorf("reportstore: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("reportstore: rename %s -> %s: %w", tmp, target, err)
	}
	return nil
}
