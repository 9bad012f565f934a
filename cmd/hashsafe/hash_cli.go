package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/hashutil"
	"github.com/hashsafe/hashsafe/internal/progress"
	"github.com/hashsafe/hashsafe/internal/runid"
	"github.com/hashsafe/hashsafe/internal/sanitize"
	"github.com/hashsafe/hashsafe/internal/verify"
)

// stdinPath is opened when a FILE argument is "-".
const stdinPath = "/dev/stdin"

type cliOptions struct {
	stdout   io.Writer
	stderr   io.Writer
	progress bool
	json     bool
	expect   string
	logger   *zap.Logger
}

// runCLI hashes every path and prints results in argument order. All runs
// are submitted up front; the engine bounds how many read at once.
func runCLI(ctx context.Context, eng *engine.Engine, paths []string, opts cliOptions) error {
	if len(paths) == 0 {
		return errNoFile
	}
	if opts.expect != "" {
		if len(paths) != 1 {
			return fmt.Errorf("--expect requires exactly one file, got %d", len(paths))
		}
		if !hashutil.IsDigest(opts.expect) {
			return fmt.Errorf("--expect: %q is not a SHA256 hex digest", opts.expect)
		}
	}

	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runs := make([]*engine.Run, len(paths))
	for i, p := range paths {
		logger.Info("Calculating hash", zap.String("path", sanitize.Path(p)))
		if p == "-" {
			p = stdinPath
		}
		runs[i] = eng.Submit(ctx, p)
	}

	var failed, cancelled int
	for i, run := range runs {
		o := waitRun(run, paths[i], len(runs) > 1, opts)

		switch o.State {
		case engine.StateSucceeded:
			if opts.json {
				continue
			}
			if len(runs) == 1 {
				fmt.Fprintln(opts.stdout, o.Digest)
			} else {
				fmt.Fprintln(opts.stdout, verify.FormatLine(o.Digest, paths[i]))
			}
		case engine.StateCancelled:
			cancelled++
		default:
			failed++
			errorf(opts.stderr, "%s: %s", sanitize.Display(paths[i]), sanitize.Display(o.Err.Error()))
		}
	}

	switch {
	case cancelled > 0:
		errorf(opts.stderr, "cancelled")
		return &exitError{code: exitCancelled}
	case failed > 0:
		return &exitError{code: exitFailure}
	}

	if opts.expect != "" {
		o, _ := runs[0].Outcome()
		if !hashutil.Matches(o.Digest, opts.expect) {
			return &exitError{
				code: exitMismatch,
				err:  fmt.Errorf("%s: digest mismatch: got %s, want %s", sanitize.Display(paths[0]), o.Digest, opts.expect),
			}
		}
	}
	return nil
}

// waitRun follows run to completion, rendering progress on stderr if asked.
func waitRun(run *engine.Run, path string, labelled bool, opts cliOptions) engine.Outcome {
	if !opts.progress {
		<-run.Done()
		o, _ := run.Outcome()
		return o
	}

	label := sanitize.Display(path)
	if labelled {
		label = fmt.Sprintf("[%s] %s", runid.Short(run.ID()), label)
	}
	r := progress.NewReporter(opts.stderr, label)
	for s := range run.Progress() {
		r.Update(s)
	}
	<-run.Done()
	o, _ := run.Outcome()
	r.Done(o.State.String())
	return o
}
