// hashsafe computes SHA256 digests of files, interactively or from the command line
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	// Set at build time via -ldflags
	version = "dev"

	cfgFile      string
	logLevel     string
	logFile      string
	files        []string
	forceCLI     bool
	blockSize    string
	jobs         int
	maxReadRate  string
	showProgress bool
	jsonOutput   bool
	eventsFile   string
	expect       string
	showStats    bool
)

// Exit codes
const (
	exitFailure   = 1
	exitMismatch  = 2
	exitCancelled = 130
)

var errNoFile = errors.New("in CLI mode, you must specify a file with --file")

// exitError makes main exit with code. A nil err means the message was
// already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		code := exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "hashsafe:", ee.err)
			}
		} else {
			fmt.Fprintln(os.Stderr, "hashsafe:", err)
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hashsafe [flags] [FILE...]",
		Short: "Compute SHA256 digests of files",
		Long: `hashsafe computes the SHA256 digest of files without blocking the
terminal, reporting progress as it reads and allowing the run to be
cancelled at any time.

With no files and an interactive terminal it starts a shell where a path
can be entered and the digest copied to the clipboard. Given files (or
--cli) it prints digests to standard output. Use - to read standard input.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default: stderr, discarded in the interactive shell)")
	rootCmd.PersistentFlags().StringVar(&blockSize, "block-size", "", "read block size (e.g., 64KB, 4MB)")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 0, "files hashed concurrently")
	rootCmd.PersistentFlags().StringVar(&maxReadRate, "max-read-rate", "", "max read rate per file (e.g., 50MB/s, 0 = unlimited)")

	rootCmd.Flags().StringArrayVarP(&files, "file", "f", nil, "file to hash (repeatable)")
	rootCmd.Flags().BoolVarP(&forceCLI, "cli", "c", false, "force command-line mode")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress on stderr")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON events instead of digests")
	rootCmd.Flags().StringVar(&eventsFile, "events-file", "", "append JSON run events to this file")
	rootCmd.Flags().StringVar(&expect, "expect", "", "expected digest; exit 2 on mismatch (single file only)")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "print run metrics to stderr when done")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(benchCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

type mode int

const (
	modeCLI mode = iota
	modeInteractive
)

// selectMode picks CLI mode when forced or when files are given, and the
// interactive shell only on a terminal.
func selectMode(force bool, nFiles int, interactive bool) (mode, error) {
	if force || nFiles > 0 {
		if nFiles == 0 {
			return modeCLI, errNoFile
		}
		return modeCLI, nil
	}
	if interactive {
		return modeInteractive, nil
	}
	return modeCLI, errNoFile
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runRoot(cmd *cobra.Command, args []string) error {
	paths := append(append([]string{}, files...), args...)

	m, err := selectMode(forceCLI, len(paths), isInteractive())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s, err := resolveSettings(cmd, cfg)
	if err != nil {
		return err
	}

	logger, err := setupLogger(s.logLevel, s.logFile, m == modeInteractive)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := openEvents(s, m == modeCLI, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if events != nil {
		defer func() {
			if err := events.Close(); err != nil {
				logger.Warn("Failed to close event log", zap.Error(err))
			}
		}()
	}

	eng := newEngine(s, logger, events)
	defer closeEngine(eng, logger)

	logger.Debug("Starting hashsafe",
		zap.String("version", version),
		zap.Int("files", len(paths)),
		zap.Int("blockSize", s.blockSize),
		zap.Int("jobs", s.maxConcurrent),
		zap.Int64("maxReadRate", s.maxReadRate))

	if m == modeInteractive {
		return runInteractive(ctx, eng)
	}

	err = runCLI(ctx, eng, paths, cliOptions{
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
		progress: s.progress,
		json:     s.json,
		expect:   expect,
		logger:   logger,
	})
	if showStats {
		_ = eng.Metrics().WriteText(cmd.ErrOrStderr())
	}
	return err
}
