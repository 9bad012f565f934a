package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/sanitize"
	"github.com/hashsafe/hashsafe/internal/verify"
)

var quietCheck bool

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check SUMFILE...",
		Short: "Verify files against sha256sum checksum lists",
		Long: `Read SHA256 checksums in the sha256sum format from each SUMFILE and
verify the listed files. Paths are relative to the working directory.
Use - to read the list from standard input.

Exits 1 if any file is missing, unreadable or does not match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheck,
	}

	cmd.Flags().BoolVarP(&quietCheck, "quiet", "q", false, "don't print OK for each verified file")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s, err := resolveSettings(cmd, cfg)
	if err != nil {
		return err
	}

	logger, err := setupLogger(s.logLevel, s.logFile, false)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := newEngine(s, logger, nil)
	defer closeEngine(eng, logger)

	return checkLists(ctx, eng, args, checkOptions{
		stdin:  cmd.InOrStdin(),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		quiet:  quietCheck,
		logger: logger,
	})
}

type checkOptions struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	quiet  bool
	logger *zap.Logger
}

func checkLists(ctx context.Context, eng *engine.Engine, lists []string, opts checkOptions) error {
	v := verify.New(eng, "", opts.logger)

	var total verify.Summary
	var badLists, malformedTotal int
	for _, list := range lists {
		entries, malformed, err := readList(list, opts.stdin)
		if err != nil {
			errorf(opts.stderr, "%s", sanitize.Display(err.Error()))
			badLists++
			continue
		}
		malformedTotal += malformed
		if len(entries) == 0 {
			errorf(opts.stderr, "%s: no properly formatted SHA256 checksum lines found", sanitize.Display(list))
			badLists++
			continue
		}

		results := v.Verify(ctx, entries)
		for _, r := range results {
			if r.Status == verify.StatusOK && opts.quiet {
				continue
			}
			if r.Status == verify.StatusUnreadable && r.Err != nil {
				errorf(opts.stderr, "%s: %s", sanitize.Display(r.Path), sanitize.Display(r.Err.Error()))
			}
			fmt.Fprintf(opts.stdout, "%s: %s\n", sanitize.Display(r.Path), r.Status)
		}

		sum := verify.Summarize(results)
		total.OK += sum.OK
		total.Mismatched += sum.Mismatched
		total.Unreadable += sum.Unreadable
		total.Cancelled += sum.Cancelled
	}

	if malformedTotal > 0 {
		errorf(opts.stderr, "WARNING: %s improperly formatted", plural(malformedTotal, "line is", "lines are"))
	}
	if total.Unreadable > 0 {
		errorf(opts.stderr, "WARNING: %s could not be read", plural(total.Unreadable, "listed file", "listed files"))
	}
	if total.Mismatched > 0 {
		errorf(opts.stderr, "WARNING: %s did NOT match", plural(total.Mismatched, "computed checksum", "computed checksums"))
	}

	switch {
	case total.Cancelled > 0:
		errorf(opts.stderr, "cancelled")
		return &exitError{code: exitCancelled}
	case total.Failed() || badLists > 0:
		return &exitError{code: exitFailure}
	}
	return nil
}

func readList(list string, stdin io.Reader) ([]verify.Entry, int, error) {
	if list == "-" {
		return verify.Parse(stdin)
	}
	f, err := os.Open(list)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return verify.Parse(f)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
