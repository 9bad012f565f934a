package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTracker_KnownTotal(t *testing.T) {
	tr := NewTracker(10, true)

	steps := []struct {
		n        int
		wantBps  uint64
		wantFrac float64
	}{
		{0, 0, 0},
		{4, 4, 0.4},
		{4, 8, 0.8},
		{2, 10, 1},
	}

	for i, step := range steps {
		s := tr.Update(step.n)
		if s.BytesProcessed != step.wantBps {
			t.Errorf("step %d: BytesProcessed = %d, want %d", i, s.BytesProcessed, step.wantBps)
		}
		frac, ok := s.Fraction()
		if !ok {
			t.Fatalf("step %d: fraction should be known", i)
		}
		if frac != step.wantFrac {
			t.Errorf("step %d: Fraction = %v, want %v", i, frac, step.wantFrac)
		}
	}
}

func TestTracker_UnknownTotal(t *testing.T) {
	tr := NewTracker(0, false)

	s := tr.Update(1024)
	if !s.Indeterminate() {
		t.Error("snapshot should be indeterminate")
	}
	if _, ok := s.Fraction(); ok {
		t.Error("Fraction should not be available without a total")
	}
	if s.BytesProcessed != 1024 {
		t.Errorf("BytesProcessed = %d, want 1024", s.BytesProcessed)
	}
}

func TestTracker_NegativeTotalIsUnknown(t *testing.T) {
	tr := NewTracker(-1, true)
	if !tr.Snapshot().Indeterminate() {
		t.Error("negative total should be treated as unknown")
	}
}

func TestTracker_EmptyFileIsComplete(t *testing.T) {
	s := NewTracker(0, true).Snapshot()
	frac, ok := s.Fraction()
	if !ok || frac != 1 {
		t.Errorf("Fraction = %v, %v, want 1, true", frac, ok)
	}
}

func TestTracker_OverrunTurnsIndeterminate(t *testing.T) {
	// A growing file, or a special file whose stat size is made up
	tr := NewTracker(10, true)
	s := tr.Update(8)
	if s.Indeterminate() {
		t.Fatal("snapshot within the total should be determinate")
	}

	s = tr.Update(7)
	if !s.Indeterminate() {
		t.Errorf("snapshot past the total should be indeterminate: %+v", s)
	}
	if _, ok := s.Fraction(); ok {
		t.Error("Fraction should be absent once the total is known to be wrong")
	}
	if s.BytesProcessed != 15 {
		t.Errorf("BytesProcessed = %d, want 15", s.BytesProcessed)
	}

	if s, changed := tr.Finish(); changed || !s.Indeterminate() {
		t.Errorf("Finish = %+v, %v, want unchanged indeterminate snapshot", s, changed)
	}
}

func TestTracker_FinishCorrectsShortFile(t *testing.T) {
	tr := NewTracker(100, true)
	tr.Update(60)

	s, changed := tr.Finish()
	if !changed {
		t.Error("Finish should report a change")
	}
	if s.TotalBytes != 60 || s.BytesProcessed != 60 {
		t.Errorf("snapshot = %+v, want 60 of 60", s)
	}
	if frac, ok := s.Fraction(); !ok || frac != 1 {
		t.Errorf("Fraction = %v, %v, want 1, true", frac, ok)
	}
}

func TestTracker_FinishExactIsUnchanged(t *testing.T) {
	tr := NewTracker(10, true)
	tr.Update(10)
	if _, changed := tr.Finish(); changed {
		t.Error("Finish should not change an exact total")
	}
}

func TestTracker_Monotonic(t *testing.T) {
	tr := NewTracker(1000, true)
	var last uint64
	for _, n := range []int{100, 0, 1, 333, -5, 7} {
		s := tr.Update(n)
		if s.BytesProcessed < last {
			t.Fatalf("BytesProcessed went backwards: %d -> %d", last, s.BytesProcessed)
		}
		last = s.BytesProcessed
	}
	if last != 441 {
		t.Errorf("BytesProcessed = %d, want 441", last)
	}
}

func TestReporter_Throttles(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, "file.bin")

	clock := r.start
	r.now = func() time.Time { return clock }

	clock = clock.Add(200 * time.Millisecond)
	r.Update(Snapshot{BytesProcessed: 10, TotalBytes: 100, TotalKnown: true})
	first := buf.Len()
	if first == 0 {
		t.Fatal("first update should be printed")
	}

	clock = clock.Add(10 * time.Millisecond)
	r.Update(Snapshot{BytesProcessed: 20, TotalBytes: 100, TotalKnown: true})
	if buf.Len() != first {
		t.Error("update within the tick gap should be dropped")
	}

	// Completion is always printed
	clock = clock.Add(10 * time.Millisecond)
	r.Update(Snapshot{BytesProcessed: 100, TotalBytes: 100, TotalKnown: true})
	if !strings.Contains(buf.String(), "100.0%") {
		t.Errorf("output %q should contain the completed percentage", buf.String())
	}
}

func TestReporter_Indeterminate(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, "stdin")
	clock := r.start.Add(time.Second)
	r.now = func() time.Time { return clock }

	r.Update(Snapshot{BytesProcessed: 2048})
	out := buf.String()
	if strings.Contains(out, "%") {
		t.Errorf("indeterminate output %q should not contain a percentage", out)
	}
	if !strings.Contains(out, "2.0 KB") {
		t.Errorf("output %q should contain bytes processed", out)
	}

	r.Done("done")
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("Done should terminate the line")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tc := range tests {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
