package verify

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/hashutil"
	"github.com/hashsafe/hashsafe/internal/sanitize"
)

// Submitter starts hashing runs
type Submitter interface {
	Submit(ctx context.Context, path string) *engine.Run
}

// Status is the verification status of one entry
type Status int

const (
	StatusOK Status = iota
	StatusMismatch
	StatusUnreadable
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMismatch:
		return "FAILED"
	case StatusUnreadable:
		return "FAILED open or read"
	default:
		return "CANCELLED"
	}
}

// Result is the outcome of checking one entry
type Result struct {
	Entry
	Status Status
	Actual string // digest computed from the file, empty unless it was read fully
	Err    error
}

// Summary counts results by status
type Summary struct {
	OK         int
	Mismatched int
	Unreadable int
	Cancelled  int
}

// Failed reports whether any entry did not verify
func (s Summary) Failed() bool {
	return s.Mismatched > 0 || s.Unreadable > 0
}

// Verifier hashes the files named in checksum entries and compares digests
type Verifier struct {
	engine  Submitter
	baseDir string
	logger  *zap.Logger
}

// New creates a Verifier. Relative entry paths are resolved against
// baseDir; an empty baseDir uses the working directory.
func New(eng Submitter, baseDir string, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		engine:  eng,
		baseDir: baseDir,
		logger:  logger,
	}
}

// Verify checks every entry. Runs are submitted together and results are
// returned in entry order.
func (v *Verifier) Verify(ctx context.Context, entries []Entry) []Result {
	runs := make([]*engine.Run, len(entries))
	for i, e := range entries {
		runs[i] = v.engine.Submit(ctx, v.resolve(e.Path))
	}

	results := make([]Result, len(entries))
	for i, run := range runs {
		<-run.Done()
		o, _ := run.Outcome()
		results[i] = v.result(entries[i], o)
	}
	return results
}

func (v *Verifier) resolve(path string) string {
	if v.baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(v.baseDir, path)
}

func (v *Verifier) result(e Entry, o engine.Outcome) Result {
	r := Result{Entry: e}
	switch o.State {
	case engine.StateSucceeded:
		r.Actual = o.Digest
		if hashutil.Matches(o.Digest, e.Digest) {
			r.Status = StatusOK
		} else {
			r.Status = StatusMismatch
			v.logger.Debug("Checksum mismatch",
				zap.String("path", sanitize.Path(e.Path)),
				zap.String("want", e.Digest),
				zap.String("got", o.Digest))
		}
	case engine.StateCancelled:
		r.Status = StatusCancelled
	default:
		r.Status = StatusUnreadable
		r.Err = o.Err
	}
	return r
}

// Summarize counts results by status
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.OK++
		case StatusMismatch:
			s.Mismatched++
		case StatusUnreadable:
			s.Unreadable++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}
