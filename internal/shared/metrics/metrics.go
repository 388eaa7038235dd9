package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var durationBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

var (
	operationsTotal   = newCounterVec("slice", "operation", "phase")
	operationDuration = newHistogramVec(durationBucketsMs, "slice")

	httpRequestsTotal   = newCounterVec("method", "route", "status")
	httpRequestDuration = newHistogramVec(durationBucketsMs, "method", "route")

	sessionsExpiredTotal   atomic.Uint64
	workspacesEvictedTotal atomic.Uint64
	workspacesActive       atomic.Int64
)

// ObserveOperation records one phase transition of a slice operation. The
// duration is recorded for terminal phases only.
func ObserveOperation(slice, operation, phase string, took time.Duration) {
	operationsTotal.Inc(slice, operation, phase)
	if phase != "pending" {
		operationDuration.Observe(durationMs(took), slice)
	}
}

// ObserveHTTPRequest records a served request.
func ObserveHTTPRequest(method, route string, status int, took time.Duration) {
	httpRequestsTotal.Inc(method, route, strconv.Itoa(status))
	httpRequestDuration.Observe(durationMs(took), method, route)
}

// IncSessionsExpired counts sessions cleared by an authentication failure.
func IncSessionsExpired() {
	sessionsExpiredTotal.Add(1)
}

// AddWorkspacesEvicted counts idle workspaces removed by the registry.
func AddWorkspacesEvicted(n int) {
	if n > 0 {
		workspacesEvictedTotal.Add(uint64(n))
	}
}

// SetWorkspacesActive sets the live workspace gauge.
func SetWorkspacesActive(n int) {
	workspacesActive.Store(int64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	operationsTotal.write(&buf, "operations_total", "Slice operation phase transitions")
	operationDuration.write(&buf, "operation_duration_ms", "Slice operation duration in milliseconds")
	httpRequestsTotal.write(&buf, "http_requests_total", "HTTP requests served")
	httpRequestDuration.write(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds")
	writeCounter(&buf, "sessions_expired_total", "Sessions cleared after an authentication failure", sessionsExpiredTotal.Load())
	writeCounter(&buf, "workspaces_evicted_total", "Idle workspaces evicted", workspacesEvictedTotal.Load())
	writeGauge(&buf, "workspaces_active", "Live client workspaces", workspacesActive.Load())
	return buf.String()
}

func durationMs(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000.0
}

type counterVec struct {
	labels []string
	mu     sync.Mutex
	values map[string]*atomic.Uint64
}

func newCounterVec(labels ...string) *counterVec {
	return &counterVec{labels: labels, values: make(map[string]*atomic.Uint64)}
}

func (v *counterVec) Inc(values ...string) {
	key := labelString(v.labels, values)
	v.mu.Lock()
	c, ok := v.values[key]
	if !ok {
		c = &atomic.Uint64{}
		v.values[key] = c
	}
	v.mu.Unlock()
	c.Add(1)
}

func (v *counterVec) write(buf *bytes.Buffer, name, help string) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	v.mu.Lock()
	keys := sortedKeys(v.values)
	for _, key := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, key, v.values[key].Load())
	}
	v.mu.Unlock()
}

type histogramVec struct {
	labels  []string
	buckets []float64
	mu      sync.Mutex
	values  map[string]*histogram
}

func newHistogramVec(buckets []float64, labels ...string) *histogramVec {
	return &histogramVec{labels: labels, buckets: buckets, values: make(map[string]*histogram)}
}

func (v *histogramVec) Observe(value float64, labels ...string) {
	key := labelString(v.labels, labels)
	v.mu.Lock()
	h, ok := v.values[key]
	if !ok {
		h = newHistogram(v.buckets)
		v.values[key] = h
	}
	v.mu.Unlock()
	h.Observe(value)
}

func (v *histogramVec) write(buf *bytes.Buffer, name, help string) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	v.mu.Lock()
	keys := sortedKeys(v.values)
	snaps := make([]histogramSnapshot, len(keys))
	for i, key := range keys {
		snaps[i] = v.values[key].Snapshot()
	}
	v.mu.Unlock()
	for i, key := range keys {
		writeHistogramSeries(buf, name, key, snaps[i])
	}
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket that holds it; buckets are made
// cumulative when rendered.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogramSeries(buf *bytes.Buffer, name, labels string, snap histogramSnapshot) {
	sep := ""
	if labels != "" {
		sep = ","
	}
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{%s%sle=\"%s\"} %d\n", name, labels, sep, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{%s%sle=\"+Inf\"} %d\n", name, labels, sep, snap.count)
	fmt.Fprintf(buf, "%s_sum{%s} %s\n", name, labels, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count{%s} %d\n", name, labels, snap.count)
}

func labelString(names, values []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		parts[i] = fmt.Sprintf("%s=%q", n, v)
	}
	return strings.Join(parts, ",")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
