package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hashsafe/hashsafe/internal/benchmark"
	"github.com/hashsafe/hashsafe/internal/config"
)

func benchCmd() *cobra.Command {
	var (
		fileSize   string
		iterations int
		dir        string
		scenario   string
		blockSizes []string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure hashing throughput",
		Long: `Write generated test files to a scratch directory and hash them with the
engine under several block size and concurrency settings.

Examples:
  hashsafe bench                          # Run default scenarios
  hashsafe bench --size 256MB --iterations 5
  hashsafe bench --scenario parallel_files
  hashsafe bench --block-sizes 64KB,1MB,8MB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := config.ParseSize(fileSize)
			if err != nil {
				return fmt.Errorf("invalid size: %w", err)
			}
			if size <= 0 {
				return fmt.Errorf("invalid size: must be positive")
			}
			if iterations < 1 {
				return fmt.Errorf("invalid iterations: must be at least 1")
			}

			sizes := make([]int, 0, len(blockSizes))
			for _, s := range blockSizes {
				bs, err := config.ParseSize(s)
				if err != nil || bs <= 0 {
					return fmt.Errorf("invalid block size %q", s)
				}
				sizes = append(sizes, int(bs))
			}

			scenarios := benchmark.DefaultScenarios(size, iterations)
			if scenario != "" && scenario != "all" {
				var found []benchmark.Scenario
				for _, s := range scenarios {
					if s.Name == scenario {
						found = []benchmark.Scenario{s}
						break
					}
				}
				if len(found) == 0 {
					out := cmd.ErrOrStderr()
					fmt.Fprintf(out, "Unknown scenario: %s\n\nAvailable scenarios:\n", scenario)
					for _, s := range scenarios {
						fmt.Fprintf(out, "  %-20s %s\n", s.Name, s.Description)
					}
					return fmt.Errorf("scenario not found")
				}
				scenarios = found
			}

			logger, err := setupLogger(logLevel, logFile, false)
			if err != nil {
				return fmt.Errorf("failed to setup logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			runner := benchmark.NewRunner(dir, out, logger)

			var results []*benchmark.Result
			if len(sizes) > 0 {
				results, err = runner.BlockSizeBenchmark(ctx, size, sizes, iterations)
			} else {
				results, err = runner.RunAll(ctx, scenarios)
			}

			benchmark.PrintResults(out, results)

			if ctx.Err() != nil {
				errorf(cmd.ErrOrStderr(), "cancelled")
				return &exitError{code: exitCancelled}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&fileSize, "size", "64MB", "test file size")
	cmd.Flags().IntVar(&iterations, "iterations", 3, "iterations per scenario")
	cmd.Flags().StringVar(&dir, "dir", "", "scratch directory (default: system temp)")
	cmd.Flags().StringVar(&scenario, "scenario", "", "run one named scenario (default: all)")
	cmd.Flags().StringSliceVar(&blockSizes, "block-sizes", nil, "compare these block sizes on a single file")

	return cmd
}
