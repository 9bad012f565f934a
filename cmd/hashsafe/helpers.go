package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hashsafe/hashsafe/internal/config"
	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/eventlog"
	"github.com/hashsafe/hashsafe/internal/metrics"
)

// setupLogger creates a configured zap logger. The interactive shell owns
// the terminal, so it only logs when a log file is set.
func setupLogger(levelName, file string, interactive bool) (*zap.Logger, error) {
	if interactive && file == "" {
		return zap.NewNop(), nil
	}

	level := zapcore.InfoLevel
	switch levelName {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if file != "" {
		cfg.OutputPaths = []string{file}
	}

	return cfg.Build()
}

// configPaths returns the list of config file paths to search.
func configPaths() []string {
	if cfgFile != "" {
		return []string{cfgFile}
	}
	if p := config.DefaultPath(); p != "" {
		return []string{p}
	}
	return nil
}

// loadConfig loads configuration from the first available config file.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.DefaultConfig(), nil
}

// settings are the effective options after flags override the config file.
type settings struct {
	blockSize     int
	maxConcurrent int
	maxReadRate   int64
	progress      bool
	json          bool
	eventsFile    string
	logLevel      string
	logFile       string
}

func resolveSettings(cmd *cobra.Command, cfg *config.Config) (*settings, error) {
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		cfg.Engine.BlockSize = blockSize
	}
	if flags.Changed("jobs") {
		cfg.Engine.MaxConcurrent = jobs
	}
	if flags.Changed("max-read-rate") {
		cfg.Engine.MaxReadRate = maxReadRate
	}
	if flags.Changed("progress") {
		cfg.Output.Progress = showProgress
	}
	if flags.Changed("json") {
		cfg.Output.JSON = jsonOutput
	}
	if flags.Changed("events-file") {
		cfg.Output.EventsFile = eventsFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bs, err := cfg.Engine.BlockSizeBytes()
	if err != nil {
		return nil, err
	}
	rate, err := cfg.Engine.MaxReadRateBytes()
	if err != nil {
		return nil, err
	}

	return &settings{
		blockSize:     int(bs),
		maxConcurrent: cfg.Engine.MaxConcurrent,
		maxReadRate:   rate,
		progress:      cfg.Output.Progress,
		json:          cfg.Output.JSON,
		eventsFile:    cfg.Output.EventsFile,
		logLevel:      cfg.Logging.Level,
		logFile:       cfg.Logging.File,
	}, nil
}

// newEngine builds the hashing engine from the effective settings. A nil
// events logger disables the event log.
func newEngine(s *settings, logger *zap.Logger, events eventlog.Logger) *engine.Engine {
	return engine.New(&engine.Config{
		BlockSize:     s.blockSize,
		MaxConcurrent: s.maxConcurrent,
		MaxReadRate:   s.maxReadRate,
		Metrics:       metrics.New(),
		Events:        events,
	}, logger)
}

// openEvents builds the run event sinks: JSON lines on stdout for --json
// in CLI mode and an appended events file. It returns nil when neither is
// configured.
func openEvents(s *settings, cli bool, stdout io.Writer) (eventlog.Logger, error) {
	var sinks eventlog.MultiLogger
	if cli && s.json {
		sinks = append(sinks, eventlog.NewJSONWriter(nopCloser{stdout}))
	}
	if s.eventsFile != "" {
		f, err := os.OpenFile(s.eventsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("failed to open events file: %w", err)
		}
		sinks = append(sinks, eventlog.NewJSONWriter(f))
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func closeEngine(eng *engine.Engine, logger *zap.Logger) {
	if err := eng.Close(); err != nil {
		logger.Warn("Workers did not stop in time", zap.Error(err))
	}
}

// nopCloser keeps the JSON event writer from closing stdout.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func errorf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "hashsafe: "+format+"\n", args...)
}
