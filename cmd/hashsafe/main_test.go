package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/verify"
)

const abcDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

// execute runs the root command with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	rootCmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("root --help failed: %v", err)
	}

	if !strings.Contains(stdout, "hashsafe") {
		t.Error("help output should contain 'hashsafe'")
	}
	for _, want := range []string{"version", "config", "--file", "--cli", "--expect"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should mention %q", want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "hashsafe version dev") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestHash_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	stdout, stderr, err := execute(t, path)
	if err != nil {
		t.Fatalf("hash failed: %v (stderr: %s)", err, stderr)
	}
	if stdout != abcDigest+"\n" {
		t.Errorf("stdout = %q, want digest only", stdout)
	}
}

func TestHash_FileFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty", "")

	stdout, _, err := execute(t, "--cli", "--file", path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestHash_MultipleFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "abc")
	b := writeFile(t, dir, "b.txt", "")

	stdout, _, err := execute(t, "-j", "2", "-f", a, b)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", stdout)
	}
	if lines[0] != abcDigest+"  "+a {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "  "+b) {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestHash_MissingFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "abc.txt", "abc")
	missing := filepath.Join(dir, "missing")

	stdout, stderr, err := execute(t, good, missing)
	if code := exitCode(err); code != exitFailure {
		t.Fatalf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, missing) {
		t.Errorf("stderr should name the missing file: %q", stderr)
	}
	if !strings.Contains(stdout, abcDigest) {
		t.Errorf("the good file should still be printed: %q", stdout)
	}
}

func TestHash_Expect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	if _, _, err := execute(t, path, "--expect", strings.ToUpper(abcDigest)); err != nil {
		t.Errorf("matching --expect failed: %v", err)
	}

	wrong := strings.Repeat("0", 64)
	_, _, err := execute(t, path, "--expect", wrong)
	if code := exitCode(err); code != exitMismatch {
		t.Errorf("exit code = %d, want %d", code, exitMismatch)
	}
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error = %v, want mismatch", err)
	}

	if _, _, err := execute(t, path, "--expect", "xyz"); err == nil {
		t.Error("invalid --expect value should fail")
	}
}

func TestHash_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	stdout, _, err := execute(t, "--json", path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.Contains(stdout, `"event_type":"run_succeeded"`) {
		t.Errorf("expected run_succeeded event, got %q", stdout)
	}
	if !strings.Contains(stdout, `"digest":"`+abcDigest+`"`) {
		t.Errorf("expected digest in JSON, got %q", stdout)
	}
}

func TestHash_EventsFile(t *testing.T) {
	tests := []struct {
		name       string
		json       bool
		wantStdout bool
	}{
		{"file only", false, false},
		{"file and json", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "abc.txt", "abc")
			eventsPath := filepath.Join(dir, "events.jsonl")

			args := []string{"--events-file", eventsPath, path}
			if tt.json {
				args = append([]string{"--json"}, args...)
			}
			stdout, _, err := execute(t, args...)
			if err != nil {
				t.Fatalf("hash failed: %v", err)
			}

			data, err := os.ReadFile(eventsPath)
			if err != nil {
				t.Fatalf("read events file: %v", err)
			}
			if !strings.Contains(string(data), `"digest":"`+abcDigest+`"`) {
				t.Errorf("events file = %q, want run_succeeded with digest", data)
			}
			if got := strings.Contains(stdout, "run_succeeded"); got != tt.wantStdout {
				t.Errorf("stdout has events = %v, want %v (stdout %q)", got, tt.wantStdout, stdout)
			}
			if !tt.json && stdout != abcDigest+"\n" {
				t.Errorf("stdout = %q, want plain digest", stdout)
			}
		})
	}
}

func TestHash_EventsFileAppends(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "abc.txt", "abc")
	eventsPath := filepath.Join(dir, "events.jsonl")

	for i := 0; i < 2; i++ {
		if _, _, err := execute(t, "--events-file", eventsPath, path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(eventsPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "run_succeeded"); got != 2 {
		t.Errorf("run_succeeded events = %d, want 2", got)
	}
}

func TestHash_EventsFileUnwritable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	_, _, err := execute(t, "--events-file", filepath.Join(t.TempDir(), "missing", "events.jsonl"), path)
	if err == nil || !strings.Contains(err.Error(), "events file") {
		t.Errorf("error = %v, want events file error", err)
	}
}

func TestHash_ProgressAndStats(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	stdout, stderr, err := execute(t, "--progress", "--stats", path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if stdout != abcDigest+"\n" {
		t.Errorf("progress must not pollute stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "succeeded") {
		t.Errorf("expected progress summary on stderr, got %q", stderr)
	}
	if !strings.Contains(stderr, `hashsafe_runs_total{outcome="succeeded"} 1`) {
		t.Errorf("expected metrics on stderr, got %q", stderr)
	}
}

func TestHash_InvalidBlockSize(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")

	_, _, err := execute(t, "--block-size", "0", path)
	if err == nil || !strings.Contains(err.Error(), "engine.block_size") {
		t.Errorf("error = %v, want block size validation error", err)
	}
}

func TestHash_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "abc.txt", "abc")
	cfgPath := writeFile(t, dir, "config.toml", "[output]\njson = true\n")

	stdout, _, err := execute(t, "--config", cfgPath, path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.Contains(stdout, "run_succeeded") {
		t.Errorf("json from config should apply, got %q", stdout)
	}

	// flags override the config file
	stdout, _, err = execute(t, "--config", cfgPath, "--json=false", path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if stdout != abcDigest+"\n" {
		t.Errorf("stdout = %q, want plain digest", stdout)
	}
}

func TestNoFileOutsideTerminal(t *testing.T) {
	_, _, err := execute(t, "--cli")
	if !errors.Is(err, errNoFile) {
		t.Errorf("error = %v, want %v", err, errNoFile)
	}
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name        string
		force       bool
		nFiles      int
		interactive bool
		want        mode
		wantErr     bool
	}{
		{"files given", false, 1, true, modeCLI, false},
		{"forced with files", true, 2, true, modeCLI, false},
		{"forced without files", true, 0, true, modeCLI, true},
		{"terminal", false, 0, true, modeInteractive, false},
		{"no terminal", false, 0, false, modeCLI, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectMode(tt.force, tt.nFiles, tt.interactive)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("mode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunCLI_Cancelled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abc.txt", "abc")
	eng := engine.New(nil, nil)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := runCLI(ctx, eng, []string{path}, cliOptions{stdout: &stdout, stderr: &stderr})
	if code := exitCode(err); code != exitCancelled {
		t.Errorf("exit code = %d, want %d", code, exitCancelled)
	}
	if !strings.Contains(stderr.String(), "cancelled") {
		t.Errorf("stderr = %q, want cancelled", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("no digest expected, got %q", stdout.String())
	}
}

func TestConfigCommands(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sub", "config.toml")

	stdout, _, err := execute(t, "--config", cfgPath, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(stdout, cfgPath) {
		t.Errorf("init output should name the file: %q", stdout)
	}

	if _, _, err := execute(t, "--config", cfgPath, "config", "init"); err == nil {
		t.Error("config init should refuse to overwrite")
	}
	if _, _, err := execute(t, "--config", cfgPath, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}

	stdout, _, err = execute(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"[engine]", "max_concurrent", cfgPath} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show output missing %q: %s", want, stdout)
		}
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	rootCmd := newRootCmd()
	want := map[string]bool{"version": false, "config": false, "check": false, "bench": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "abc")
	bad := writeFile(t, dir, "bad.txt", "abd")
	missing := filepath.Join(dir, "missing.txt")

	tests := []struct {
		name       string
		lines      []string
		quiet      bool
		wantCode   int
		wantStdout []string
		wantStderr []string
	}{
		{
			name:       "all ok",
			lines:      []string{verify.FormatLine(abcDigest, good)},
			wantCode:   0,
			wantStdout: []string{good + ": OK"},
		},
		{
			name:       "mismatch",
			lines:      []string{verify.FormatLine(abcDigest, good), verify.FormatLine(abcDigest, bad)},
			wantCode:   exitFailure,
			wantStdout: []string{good + ": OK", bad + ": FAILED"},
			wantStderr: []string{"1 computed checksum did NOT match"},
		},
		{
			name:       "missing file",
			lines:      []string{verify.FormatLine(abcDigest, missing)},
			wantCode:   exitFailure,
			wantStdout: []string{missing + ": FAILED open or read"},
			wantStderr: []string{"1 listed file could not be read"},
		},
		{
			name:       "quiet hides ok",
			lines:      []string{verify.FormatLine(abcDigest, good), verify.FormatLine(abcDigest, bad)},
			quiet:      true,
			wantCode:   exitFailure,
			wantStdout: []string{bad + ": FAILED"},
		},
		{
			name:       "malformed lines warned",
			lines:      []string{"not a checksum", verify.FormatLine(abcDigest, good)},
			wantCode:   0,
			wantStdout: []string{good + ": OK"},
			wantStderr: []string{"1 line is improperly formatted"},
		},
		{
			name:       "nothing to check",
			lines:      []string{"garbage"},
			wantCode:   exitFailure,
			wantStderr: []string{"no properly formatted SHA256 checksum lines found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := writeFile(t, t.TempDir(), "SHA256SUMS", strings.Join(tt.lines, "\n")+"\n")

			args := []string{"check", list}
			if tt.quiet {
				args = append(args, "--quiet")
			}
			stdout, stderr, err := execute(t, args...)
			if code := exitCode(err); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (err: %v)", code, tt.wantCode, err)
			}
			for _, want := range tt.wantStdout {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout = %q, want %q", stdout, want)
				}
			}
			for _, want := range tt.wantStderr {
				if !strings.Contains(stderr, want) {
					t.Errorf("stderr = %q, want %q", stderr, want)
				}
			}
			if tt.quiet && strings.Contains(stdout, ": OK") {
				t.Errorf("quiet output should not list OK files: %q", stdout)
			}
		})
	}
}

func TestCheck_MissingList(t *testing.T) {
	_, stderr, err := execute(t, "check", filepath.Join(t.TempDir(), "SHA256SUMS"))
	if code := exitCode(err); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "SHA256SUMS") {
		t.Errorf("stderr should name the list: %q", stderr)
	}
}

func TestCheckLists_Stdin(t *testing.T) {
	good := writeFile(t, t.TempDir(), "good.txt", "abc")
	eng := engine.New(nil, nil)
	defer eng.Close()

	var stdout, stderr bytes.Buffer
	err := checkLists(context.Background(), eng, []string{"-"}, checkOptions{
		stdin:  strings.NewReader(verify.FormatLine(abcDigest, good) + "\n"),
		stdout: &stdout,
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("checkLists failed: %v (stderr: %s)", err, stderr.String())
	}
	if got, want := stdout.String(), good+": OK\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestCheckLists_Cancelled(t *testing.T) {
	good := writeFile(t, t.TempDir(), "good.txt", "abc")
	eng := engine.New(nil, nil)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := checkLists(ctx, eng, []string{"-"}, checkOptions{
		stdin:  strings.NewReader(verify.FormatLine(abcDigest, good) + "\n"),
		stdout: &stdout,
		stderr: &stderr,
	})
	if code := exitCode(err); code != exitCancelled {
		t.Errorf("exit code = %d, want %d", code, exitCancelled)
	}
}

func TestBench_BlockSizes(t *testing.T) {
	stdout, _, err := execute(t, "bench", "--size", "128KB", "--iterations", "1",
		"--dir", t.TempDir(), "--block-sizes", "16KB,64KB")
	if err != nil {
		t.Fatalf("bench failed: %v", err)
	}
	for _, want := range []string{"block_16384", "block_65536", "Benchmark Results"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("bench output missing %q:\n%s", want, stdout)
		}
	}
}

func TestBench_InvalidFlags(t *testing.T) {
	tests := [][]string{
		{"bench", "--size", "lots"},
		{"bench", "--iterations", "0"},
		{"bench", "--block-sizes", "0"},
		{"bench", "--scenario", "nope"},
	}
	for _, args := range tests {
		if _, _, err := execute(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestBench_Scenario(t *testing.T) {
	stdout, _, err := execute(t, "bench", "--size", "256KB", "--iterations", "1",
		"--dir", t.TempDir(), "--scenario", "serialized_files")
	if err != nil {
		t.Fatalf("bench failed: %v", err)
	}
	if !strings.Contains(stdout, "Scenario: serialized_files") {
		t.Errorf("bench output missing scenario:\n%s", stdout)
	}
	if strings.Contains(stdout, "Scenario: single_file") {
		t.Errorf("only the selected scenario should run:\n%s", stdout)
	}
}
