package progress

import (
	"fmt"
	"io"
	"time"
)

// Reporter renders throttled single-line progress updates.
type Reporter struct {
	w          io.Writer
	label      string
	start      time.Time
	lastTick   time.Time
	bytes      uint64
	minTickGap time.Duration
	now        func() time.Time
}

// NewReporter creates a reporter that prints at most every 150ms.
func NewReporter(w io.Writer, label string) *Reporter {
	now := time.Now()
	return &Reporter{w: w, label: label, start: now, lastTick: now, minTickGap: 150 * time.Millisecond, now: time.Now}
}

// Update prints s unless the previous line was printed too recently.
// A snapshot that completes a known total is always printed.
func (r *Reporter) Update(s Snapshot) {
	now := r.now()
	r.bytes = s.BytesProcessed
	frac, known := s.Fraction()
	if now.Sub(r.lastTick) < r.minTickGap && !(known && frac >= 1) {
		return
	}

	avg := rate(s.BytesProcessed, now.Sub(r.start))
	if known {
		eta := time.Duration(0)
		if avg > 0 && s.BytesProcessed < s.TotalBytes {
			eta = time.Duration(float64(s.TotalBytes-s.BytesProcessed)/avg) * time.Second
		}
		_, _ = fmt.Fprintf(r.w, "\r%s %5.1f%% %s/%s %s eta:%s", r.label, frac*100,
			FormatBytes(s.BytesProcessed), FormatBytes(s.TotalBytes), formatRate(avg), formatDuration(eta))
	} else {
		_, _ = fmt.Fprintf(r.w, "\r%s %s %s", r.label, FormatBytes(s.BytesProcessed), formatRate(avg))
	}
	r.lastTick = now
}

// Done terminates the progress line with a summary.
func (r *Reporter) Done(status string) {
	elapsed := r.now().Sub(r.start)
	_, _ = fmt.Fprintf(r.w, "\r%s %s %s in %s (%s)\n", r.label, status, FormatBytes(r.bytes),
		formatDuration(elapsed), formatRate(rate(r.bytes, elapsed)))
}

func rate(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	return float64(bytes) / elapsed.Seconds()
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatRate(bps float64) string {
	if bps < 0 {
		bps = 0
	}
	return FormatBytes(uint64(bps)) + "/s"
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	return d.Truncate(time.Second).String()
}
