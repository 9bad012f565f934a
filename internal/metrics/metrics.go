// Package metrics provides in-process run metrics for hashsafe
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome labels used with RunsTotal
const (
	OutcomeSucceeded = "succeeded"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics holds all engine metrics
type Metrics struct {
	// Counters
	RunsSubmitted *Counter
	RunsTotal     *CounterVec // labels: outcome
	BytesHashed   *Counter
	BlocksHashed  *Counter

	// Gauges
	ActiveRuns *Gauge
	QueuedRuns *Gauge

	// Histograms
	RunDuration *Histogram
	Throughput  *Histogram // bytes per second of successful runs
	FileSize    *Histogram
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v int64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// CounterVec is a counter with one label dimension.
type CounterVec struct {
	counters map[string]*Counter
	mu       sync.RWMutex
}

// NewCounterVec creates a new labeled counter vector.
func NewCounterVec() *CounterVec {
	return &CounterVec{
		counters: make(map[string]*Counter),
	}
}

// WithLabel returns the counter for the given label, creating it if needed.
func (cv *CounterVec) WithLabel(label string) *Counter {
	cv.mu.RLock()
	c, ok := cv.counters[label]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.counters[label]; ok {
		return c
	}
	c = &Counter{}
	cv.counters[label] = c
	return c
}

// Values returns all label-value pairs in the counter vector.
func (cv *CounterVec) Values() map[string]int64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	result := make(map[string]int64, len(cv.counters))
	for k, v := range cv.counters {
		result[k] = v.Value()
	}
	return result
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	value float64
	mu    sync.Mutex
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds the given value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Histogram tracks distribution of values across buckets.
type Histogram struct {
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
	mu      sync.Mutex
}

// NewHistogram creates a new histogram with the given upper bucket bounds.
func NewHistogram(buckets []float64) *Histogram {
	return &Histogram{
		buckets: buckets,
		counts:  make([]int64, len(buckets)+1),
	}
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	i := sort.SearchFloat64s(h.buckets, v)
	h.counts[i]++
}

// Stats returns the observation count, sum and per-bucket counts; the
// last bucket holds observations above every bound.
func (h *Histogram) Stats() (count int64, sum float64, buckets []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bucketsCopy := make([]int64, len(h.counts))
	copy(bucketsCopy, h.counts)
	return h.count, h.sum, bucketsCopy
}

// Default buckets for different metric types
var (
	DurationBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}
	SizeBuckets       = []float64{1024, 10240, 102400, 1048576, 10485760, 104857600, 1073741824, 10737418240}
	ThroughputBuckets = []float64{1 << 20, 10 << 20, 50 << 20, 100 << 20, 250 << 20, 500 << 20, 1 << 30, 2 << 30}
)

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		RunsSubmitted: &Counter{},
		RunsTotal:     NewCounterVec(),
		BytesHashed:   &Counter{},
		BlocksHashed:  &Counter{},

		ActiveRuns: &Gauge{},
		QueuedRuns: &Gauge{},

		RunDuration: NewHistogram(DurationBuckets),
		Throughput:  NewHistogram(ThroughputBuckets),
		FileSize:    NewHistogram(SizeBuckets),
	}
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.counter("hashsafe_runs_submitted_total", m.RunsSubmitted.Value())
	ew.counter("hashsafe_bytes_hashed_total", m.BytesHashed.Value())
	ew.counter("hashsafe_blocks_hashed_total", m.BlocksHashed.Value())

	outcomes := m.RunsTotal.Values()
	labels := make([]string, 0, len(outcomes))
	for label := range outcomes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if len(labels) > 0 {
		ew.printf("# TYPE hashsafe_runs_total counter\n")
	}
	for _, label := range labels {
		ew.printf("hashsafe_runs_total{outcome=%q} %d\n", label, outcomes[label])
	}

	ew.gauge("hashsafe_active_runs", m.ActiveRuns.Value())
	ew.gauge("hashsafe_queued_runs", m.QueuedRuns.Value())

	ew.histogram("hashsafe_run_duration_seconds", m.RunDuration)
	ew.histogram("hashsafe_throughput_bytes_per_second", m.Throughput)
	ew.histogram("hashsafe_file_size_bytes", m.FileSize)

	return ew.err
}

// errWriter remembers the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) counter(name string, value int64) {
	ew.printf("# TYPE %s counter\n%s %d\n", name, name, value)
}

func (ew *errWriter) gauge(name string, value float64) {
	ew.printf("# TYPE %s gauge\n%s %g\n", name, name, value)
}

func (ew *errWriter) histogram(name string, h *Histogram) {
	count, sum, buckets := h.Stats()
	ew.printf("# TYPE %s histogram\n", name)

	cumulative := int64(0)
	for i, b := range h.buckets {
		cumulative += buckets[i]
		ew.printf("%s_bucket{le=\"%g\"} %d\n", name, b, cumulative)
	}
	cumulative += buckets[len(buckets)-1]
	ew.printf("%s_bucket{le=\"+Inf\"} %d\n", name, cumulative)
	ew.printf("%s_sum %g\n", name, sum)
	ew.printf("%s_count %d\n", name, count)
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
	h     *Histogram
}

// NewTimer creates a new timer that will observe to the given histogram
func NewTimer(h *Histogram) *Timer {
	return &Timer{
		start: time.Now(),
		h:     h,
	}
}

// ObserveDuration records the elapsed time in seconds and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.h != nil {
		t.h.Observe(d.Seconds())
	}
	return d
}
