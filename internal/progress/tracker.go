// Package progress tracks hashing progress and renders it for terminals.
package progress

// Snapshot is the progress of a run after some number of blocks.
type Snapshot struct {
	BytesProcessed uint64
	TotalBytes     uint64
	TotalKnown     bool
}

// Fraction returns the completed fraction in [0,1]. ok is false when the
// total size is unknown and progress is indeterminate.
func (s Snapshot) Fraction() (f float64, ok bool) {
	if !s.TotalKnown {
		return 0, false
	}
	if s.TotalBytes == 0 || s.BytesProcessed >= s.TotalBytes {
		return 1, true
	}
	return float64(s.BytesProcessed) / float64(s.TotalBytes), true
}

// Indeterminate reports whether the total size is unknown.
func (s Snapshot) Indeterminate() bool {
	return !s.TotalKnown
}

// Tracker accumulates bytes read against an optional total.
// It is owned by a single run and is not safe for concurrent use.
type Tracker struct {
	processed uint64
	total     uint64
	known     bool
}

// NewTracker creates a tracker. A negative total is treated as unknown.
func NewTracker(total int64, known bool) *Tracker {
	if total < 0 {
		known = false
	}
	t := &Tracker{known: known}
	if known {
		t.total = uint64(total)
	}
	return t
}

// Update records n more bytes and returns the new snapshot.
// Updates may be any size, including zero. Reading past a known total
// means the size was wrong (a growing file, or a special file with a
// made-up size), so progress turns indeterminate.
func (t *Tracker) Update(n int) Snapshot {
	if n > 0 {
		t.processed += uint64(n)
	}
	if t.known && t.processed > t.total {
		t.known = false
		t.total = 0
	}
	return t.Snapshot()
}

// Finish is called at end of input. A known total that turned out larger
// than the bytes actually read (a file truncated while being hashed) is
// corrected to the byte count. changed reports whether the snapshot
// differs from the previous one.
func (t *Tracker) Finish() (s Snapshot, changed bool) {
	if t.known && t.total != t.processed {
		t.total = t.processed
		changed = true
	}
	return t.Snapshot(), changed
}

// Snapshot returns the current progress without changing it.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		BytesProcessed: t.processed,
		TotalBytes:     t.total,
		TotalKnown:     t.known,
	}
}
