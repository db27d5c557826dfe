// Package telemetry exposes process metrics and health endpoints,
// grounded on the teacher's internal/telemetry/metrics.go: the same
// package-level atomic/mutex-guarded counter maps and the same
// /metrics+/healthz+/readyz Server shape, retargeted from per-exchange
// order/position bookkeeping onto the signal-lifecycle engine's own
// concerns (ticks, transitions, milestones, risk rejections,
// persistence latency).
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	metricsMu sync.RWMutex

	tickCounts        = make(map[string]uint64)            // symbol_strategy -> tick count
	transitionCounts  = make(map[string]map[string]uint64)  // symbol_strategy -> kind -> count
	closeReasonCounts = make(map[string]uint64)             // close reason -> count
	milestoneCounts   = make(map[string]map[string]uint64)  // symbol_strategy -> milestone type -> count
	riskRejections    = make(map[string]uint64)             // riskName -> count
	errorCounts       = make(map[string]uint64)             // error type -> count
	persistenceWrites = make([]time.Duration, 0, 100)       // recent write latencies, capped

	callbackPanics uint64
)

func pairKey(symbol, strategyName string) string {
	if symbol == "" {
		symbol = "unknown"
	}
	if strategyName == "" {
		strategyName = "unknown"
	}
	return symbol + "_" + strategyName
}

// RecordTick increments the tick counter for (symbol, strategyName).
func RecordTick(symbol, strategyName string) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	tickCounts[pairKey(symbol, strategyName)]++
}

// RecordTransition records one Result.Kind observed for (symbol,
// strategyName), per spec.md §4.10's signal topic.
func RecordTransition(symbol, strategyName, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	key := pairKey(symbol, strategyName)
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if _, ok := transitionCounts[key]; !ok {
		transitionCounts[key] = make(map[string]uint64)
	}
	transitionCounts[key][kind]++
}

// RecordCloseReason tallies a terminal Result's CloseReason.
func RecordCloseReason(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	closeReasonCounts[reason]++
}

// RecordMilestone tallies a breakeven/partial-profit/partial-loss event
// for (symbol, strategyName).
func RecordMilestone(symbol, strategyName, milestoneType string) {
	if milestoneType == "" {
		milestoneType = "unknown"
	}
	key := pairKey(symbol, strategyName)
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if _, ok := milestoneCounts[key]; !ok {
		milestoneCounts[key] = make(map[string]uint64)
	}
	milestoneCounts[key][milestoneType]++
}

// RecordRiskRejection tallies an admission-control rejection by
// riskName.
func RecordRiskRejection(riskName string) {
	if riskName == "" {
		riskName = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	riskRejections[riskName]++
}

// RecordError tallies errors by type (candle fetch failures, getSignal
// callback errors, persistence write errors).
func RecordError(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	errorCounts[errorType]++
}

// RecordCallbackPanic records a recovered panic from a user-supplied
// getSignal callback.
func RecordCallbackPanic() {
	atomic.AddUint64(&callbackPanics, 1)
}

// RecordPersistenceWrite records one PersistenceAdapter.Write latency
// sample, keeping at most the last 100.
func RecordPersistenceWrite(latency time.Duration) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if len(persistenceWrites) >= 100 {
		persistenceWrites = persistenceWrites[1:]
	}
	persistenceWrites = append(persistenceWrites, latency)
}

// Server exposes metrics and health endpoints.
type Server struct {
	srv        *http.Server
	readyState atomic.Bool
}

// NewServer creates a new telemetry server. A blank addr disables it
// entirely (NewServer returns nil, matching the teacher's convention).
func NewServer(addr string) *Server {
	if addr == "" {
		return nil
	}

	server := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", server.metricsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if server.readyState.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	server.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return server
}

func (s *Server) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	metricsMu.RLock()
	defer metricsMu.RUnlock()

	builder := &strings.Builder{}

	builder.WriteString("# HELP btk_ticks_total Total engine ticks by symbol and strategy\n")
	builder.WriteString("# TYPE btk_ticks_total counter\n")
	for _, key := range sortedKeys(tickCounts) {
		fmt.Fprintf(builder, "btk_ticks_total{pair=\"%s\"} %d\n", key, tickCounts[key])
	}

	builder.WriteString("# HELP btk_transitions_total Total Result.Kind transitions by symbol/strategy and kind\n")
	builder.WriteString("# TYPE btk_transitions_total counter\n")
	pairs := make([]string, 0, len(transitionCounts))
	for key := range transitionCounts {
		pairs = append(pairs, key)
	}
	sort.Strings(pairs)
	for _, key := range pairs {
		kinds := transitionCounts[key]
		for _, kind := range sortedStringKeys(kinds) {
			fmt.Fprintf(builder, "btk_transitions_total{pair=\"%s\",kind=\"%s\"} %d\n", key, kind, kinds[kind])
		}
	}

	builder.WriteString("# HELP btk_close_reasons_total Total terminal signals by close reason\n")
	builder.WriteString("# TYPE btk_close_reasons_total counter\n")
	for _, reason := range sortedKeys(closeReasonCounts) {
		fmt.Fprintf(builder, "btk_close_reasons_total{reason=\"%s\"} %d\n", reason, closeReasonCounts[reason])
	}

	builder.WriteString("# HELP btk_milestones_total Total milestone events by symbol/strategy and type\n")
	builder.WriteString("# TYPE btk_milestones_total counter\n")
	pairs = pairs[:0]
	for key := range milestoneCounts {
		pairs = append(pairs, key)
	}
	sort.Strings(pairs)
	for _, key := range pairs {
		types := milestoneCounts[key]
		for _, t := range sortedStringKeys(types) {
			fmt.Fprintf(builder, "btk_milestones_total{pair=\"%s\",type=\"%s\"} %d\n", key, t, types[t])
		}
	}

	builder.WriteString("# HELP btk_risk_rejections_total Total admission-control rejections by riskName\n")
	builder.WriteString("# TYPE btk_risk_rejections_total counter\n")
	for _, riskName := range sortedKeys(riskRejections) {
		fmt.Fprintf(builder, "btk_risk_rejections_total{risk=\"%s\"} %d\n", riskName, riskRejections[riskName])
	}

	builder.WriteString("# HELP btk_errors_total Total errors by type\n")
	builder.WriteString("# TYPE btk_errors_total counter\n")
	for _, errorType := range sortedKeys(errorCounts) {
		fmt.Fprintf(builder, "btk_errors_total{type=\"%s\"} %d\n", errorType, errorCounts[errorType])
	}

	builder.WriteString("# HELP btk_callback_panics_total Number of recovered panics from getSignal callbacks\n")
	builder.WriteString("# TYPE btk_callback_panics_total counter\n")
	fmt.Fprintf(builder, "btk_callback_panics_total %d\n", atomic.LoadUint64(&callbackPanics))

	builder.WriteString("# HELP btk_persistence_write_latency_seconds Average PersistenceAdapter write latency over the last 100 writes\n")
	builder.WriteString("# TYPE btk_persistence_write_latency_seconds gauge\n")
	if len(persistenceWrites) > 0 {
		var sum time.Duration
		for _, lat := range persistenceWrites {
			sum += lat
		}
		avg := sum / time.Duration(len(persistenceWrites))
		fmt.Fprintf(builder, "btk_persistence_write_latency_seconds %f\n", avg.Seconds())
	}

	_, _ = w.Write([]byte(builder.String()))
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]uint64) []string {
	return sortedKeys(m)
}

// Start begins serving metrics and health endpoints in a separate goroutine.
func (s *Server) Start() error {
	if s == nil || s.srv == nil {
		return nil
	}
	go func() {
		_ = s.srv.ListenAndServe()
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// SetReady updates the readiness state exposed on /readyz.
func (s *Server) SetReady(ready bool) {
	if s == nil {
		return
	}
	s.readyState.Store(ready)
}
