package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	SessionsCreated atomic.Uint64

	AnalysesTotal      atomic.Uint64
	AnalysesRunning    atomic.Int64
	AnalysesSucceeded  atomic.Uint64
	AnalysesFailed     atomic.Uint64
	AnalysisDurationMS atomic.Uint64
	FailuresByKind     [5]atomic.Uint64 // indexed by kindIndex

	StartTime time.Time
}

var failureKinds = []review.ErrorKind{
	review.ErrorConfiguration,
	review.ErrorUnauthorized,
	review.ErrorRateLimited,
	review.ErrorTooLarge,
	review.ErrorGeneric,
}

func kindIndex(k review.ErrorKind) int {
	for i, fk := range failureKinds {
		if fk == k {
			return i
		}
	}
	return len(failureKinds) - 1
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

var globalMetrics = NewMetrics()

// Global returns the process-wide metrics.
func Global() *Metrics { return globalMetrics }

func (m *Metrics) IncrementSessions() { m.SessionsCreated.Add(1) }

// RunStarted implements the review run observer.
func (m *Metrics) RunStarted() {
	m.AnalysesTotal.Add(1)
	m.AnalysesRunning.Add(1)
}

func (m *Metrics) RunFinished(kind review.ErrorKind, failed bool, d time.Duration) {
	m.AnalysesRunning.Add(-1)
	m.AnalysisDurationMS.Add(uint64(d.Milliseconds()))
	if !failed {
		m.AnalysesSucceeded.Add(1)
		return
	}
	m.AnalysesFailed.Add(1)
	m.FailuresByKind[kindIndex(kind)].Add(1)
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	byKind := make(map[string]uint64, len(failureKinds))
	for i, k := range failureKinds {
		byKind[string(k)] = m.FailuresByKind[i].Load()
	}

	return map[string]interface{}{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"sessions_created":     m.SessionsCreated.Load(),
		"analyses_total":       m.AnalysesTotal.Load(),
		"analyses_running":     m.AnalysesRunning.Load(),
		"analyses_succeeded":   m.AnalysesSucceeded.Load(),
		"analyses_failed":      m.AnalysesFailed.Load(),
		"analysis_duration_ms": m.AnalysisDurationMS.Load(),
		"failures_by_kind":     byKind,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
