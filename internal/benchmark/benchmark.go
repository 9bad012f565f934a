// Package benchmark measures hashing throughput of the engine
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/hashutil"
	"github.com/hashsafe/hashsafe/internal/metrics"
	"github.com/hashsafe/hashsafe/internal/progress"
)

// Scenario defines a benchmark test scenario
type Scenario struct {
	Name          string
	Description   string
	FileSize      int64
	Files         int // files hashed at once per iteration
	BlockSize     int
	MaxConcurrent int
	Iterations    int
}

// Result contains the results of a benchmark run
type Result struct {
	Scenario        string
	Iterations      int
	TotalDuration   time.Duration
	AvgDuration     time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	P50Duration     time.Duration
	TotalBytes      int64
	AvgThroughputMB float64
	BlocksHashed    int64
	Errors          int
}

// Runner executes benchmark scenarios against files written to a scratch directory
type Runner struct {
	dir    string
	output io.Writer
	logger *zap.Logger
}

// NewRunner creates a new benchmark runner. Test files are created in
// dir; an empty dir uses the system temp directory.
func NewRunner(dir string, output io.Writer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		dir:    dir,
		output: output,
		logger: logger,
	}
}

// Run executes a single benchmark scenario
func (r *Runner) Run(ctx context.Context, scenario Scenario) (*Result, error) {
	if scenario.Iterations <= 0 {
		scenario.Iterations = 1
	}
	if scenario.Files <= 0 {
		scenario.Files = 1
	}
	if scenario.MaxConcurrent <= 0 {
		scenario.MaxConcurrent = engine.DefaultMaxConcurrent
	}

	scratch, err := os.MkdirTemp(r.dir, "hashsafe-bench-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	// Generate test data once
	testData := GenerateTestData(scenario.FileSize)
	expectedDigest := hashutil.HashBytes(testData)

	paths := make([]string, scenario.Files)
	for i := range paths {
		paths[i] = filepath.Join(scratch, fmt.Sprintf("data-%d.bin", i))
		if err := os.WriteFile(paths[i], testData, 0600); err != nil {
			return nil, fmt.Errorf("failed to write test file: %w", err)
		}
	}

	m := metrics.New()
	eng := engine.New(&engine.Config{
		BlockSize:     scenario.BlockSize,
		MaxConcurrent: scenario.MaxConcurrent,
		Metrics:       m,
	}, r.logger)
	defer eng.Close()

	var durations []time.Duration
	var totalBytes int64
	var errs int

	r.log("Running scenario: %s (%d iterations)\n", scenario.Name, scenario.Iterations)
	r.log("  File size: %s, Files: %d, Block size: %s, Concurrent: %d\n",
		progress.FormatBytes(uint64(scenario.FileSize)),
		scenario.Files,
		blockSizeLabel(scenario.BlockSize),
		scenario.MaxConcurrent)

	for i := 0; i < scenario.Iterations; i++ {
		start := time.Now()

		runs := make([]*engine.Run, len(paths))
		for j, path := range paths {
			runs[j] = eng.Submit(ctx, path)
		}

		var iterBytes int64
		var iterErr error
		for _, run := range runs {
			o, err := run.Wait(ctx)
			switch {
			case err != nil:
				iterErr = err
			case o.State != engine.StateSucceeded:
				iterErr = fmt.Errorf("run %s", o.State)
				if o.Err != nil {
					iterErr = o.Err
				}
			case o.Digest != expectedDigest:
				iterErr = errors.New("digest mismatch")
			default:
				iterBytes += int64(o.Bytes)
			}
		}
		duration := time.Since(start)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if iterErr != nil {
			errs++
			r.log("  Iteration %d: ERROR - %v\n", i+1, iterErr)
			continue
		}

		durations = append(durations, duration)
		totalBytes += iterBytes

		r.log("  Iteration %d: %v (%.2f MB/s)\n",
			i+1, duration.Round(time.Millisecond), throughputMB(iterBytes, duration))
	}

	if len(durations) == 0 {
		return nil, fmt.Errorf("all iterations failed")
	}

	res := &Result{
		Scenario:     scenario.Name,
		Iterations:   scenario.Iterations,
		TotalBytes:   totalBytes,
		BlocksHashed: m.BlocksHashed.Value(),
		Errors:       errs,
	}

	var totalDur time.Duration
	for _, d := range durations {
		totalDur += d
	}
	sortDurations(durations)
	res.MinDuration = durations[0]
	res.MaxDuration = durations[len(durations)-1]
	res.P50Duration = durations[len(durations)*50/100]
	res.TotalDuration = totalDur
	res.AvgDuration = totalDur / time.Duration(len(durations))
	res.AvgThroughputMB = throughputMB(totalBytes, totalDur)

	return res, nil
}

// RunAll executes multiple scenarios
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))

	for _, s := range scenarios {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := r.Run(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			r.log("Scenario %s failed: %v\n", s.Name, err)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// BlockSizeBenchmark hashes the same file with each block size
func (r *Runner) BlockSizeBenchmark(ctx context.Context, fileSize int64, blockSizes []int, iterations int) ([]*Result, error) {
	var results []*Result

	for _, bs := range blockSizes {
		scenario := Scenario{
			Name:        fmt.Sprintf("block_%d", bs),
			Description: fmt.Sprintf("Single file read in %s blocks", blockSizeLabel(bs)),
			FileSize:    fileSize,
			BlockSize:   bs,
			Iterations:  iterations,
		}

		result, err := r.Run(ctx, scenario)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.output != nil {
		fmt.Fprintf(r.output, format, args...)
	}
}

// DefaultScenarios returns a set of standard benchmark scenarios sized
// around fileSize
func DefaultScenarios(fileSize int64, iterations int) []Scenario {
	return []Scenario{
		{
			Name:        "single_file",
			Description: "One file, default block size, baseline test",
			FileSize:    fileSize,
			Iterations:  iterations,
		},
		{
			Name:        "small_blocks",
			Description: "One file read in 64 KiB blocks",
			FileSize:    fileSize,
			BlockSize:   64 * 1024,
			Iterations:  iterations,
		},
		{
			Name:        "large_blocks",
			Description: "One file read in 8 MiB blocks",
			FileSize:    fileSize,
			BlockSize:   8 * 1024 * 1024,
			Iterations:  iterations,
		},
		{
			Name:          "parallel_files",
			Description:   "Several files hashed at once",
			FileSize:      fileSize / 4,
			Files:         8,
			MaxConcurrent: 4,
			Iterations:    iterations,
		},
		{
			Name:          "serialized_files",
			Description:   "Several files queued behind one worker",
			FileSize:      fileSize / 4,
			Files:         8,
			MaxConcurrent: 1,
			Iterations:    iterations,
		},
	}
}

// PrintResults prints benchmark results in a formatted table
func PrintResults(w io.Writer, results []*Result) {
	fmt.Fprintln(w, "\n=== Benchmark Results ===")
	fmt.Fprintln(w, "")

	for _, r := range results {
		fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
		fmt.Fprintf(w, "  Iterations:     %d (errors: %d)\n", r.Iterations, r.Errors)
		fmt.Fprintf(w, "  Avg Duration:   %v\n", r.AvgDuration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Min/P50/Max:    %v / %v / %v\n",
			r.MinDuration.Round(time.Millisecond),
			r.P50Duration.Round(time.Millisecond),
			r.MaxDuration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Avg Throughput: %.2f MB/s\n", r.AvgThroughputMB)
		fmt.Fprintf(w, "  Total Bytes:    %s\n", progress.FormatBytes(uint64(r.TotalBytes)))
		fmt.Fprintf(w, "  Blocks:         %d\n", r.BlocksHashed)
		fmt.Fprintln(w, "")
	}
}

// GenerateTestData returns size bytes of deterministic data
func GenerateTestData(size int64) []byte {
	data := make([]byte, size)
	// Deterministic but not trivially compressible
	for i := range data {
		data[i] = byte(i*7 + i/256)
	}
	return data
}

func throughputMB(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds() / (1024 * 1024)
}

func blockSizeLabel(bs int) string {
	if bs <= 0 {
		return "default"
	}
	return progress.FormatBytes(uint64(bs))
}

func sortDurations(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		j := i
		for j > 0 && d[j-1] > d[j] {
			d[j-1], d[j] = d[j], d[j-1]
			j--
		}
	}
}
