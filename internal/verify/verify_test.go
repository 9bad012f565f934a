package verify

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashsafe/hashsafe/internal/engine"
)

const (
	abcDigest   = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.txt", abcDigest + "  a.txt"},
		{"dir/with space", abcDigest + "  dir/with space"},
		{"new\nline", `\` + abcDigest + `  new\nline`},
		{`back\slash`, `\` + abcDigest + `  back\\slash`},
	}
	for _, tt := range tests {
		if got := FormatLine(abcDigest, tt.path); got != tt.want {
			t.Errorf("FormatLine(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseLine_RoundTrip(t *testing.T) {
	for _, path := range []string{"a.txt", "with space", "new\nline", `back\slash`, "cr\rpath"} {
		e, err := ParseLine(FormatLine(abcDigest, path))
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", path, err)
		}
		if e.Path != path || e.Digest != abcDigest {
			t.Errorf("got %+v, want path %q", e, path)
		}
	}
}

func TestParseLine(t *testing.T) {
	upper := strings.ToUpper(abcDigest)
	e, err := ParseLine(upper + " *binary.iso")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if e.Digest != abcDigest || e.Path != "binary.iso" {
		t.Errorf("got %+v", e)
	}

	malformed := []string{
		"",
		"abc  file",
		abcDigest,
		abcDigest + "  ",
		abcDigest + " file",
		strings.Repeat("z", 64) + "  file",
		`\` + abcDigest + `  bad\qescape`,
		`\` + abcDigest + `  trailing\`,
	}
	for _, line := range malformed {
		if _, err := ParseLine(line); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseLine(%q) err = %v, want ErrMalformed", line, err)
		}
	}
}

func TestParse(t *testing.T) {
	input := "# generated\n" +
		abcDigest + "  a.txt\r\n" +
		"\n" +
		"garbage line\n" +
		emptyDigest + "  empty\n"

	entries, malformed, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Path != "a.txt" || entries[0].Line != 2 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Path != "empty" || entries[1].Line != 5 {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestVerifier(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("not abc"), 0644); err != nil {
		t.Fatal(err)
	}

	eng := engine.New(nil, nil)
	defer eng.Close()

	entries := []Entry{
		{Digest: abcDigest, Path: "a.txt"},
		{Digest: abcDigest, Path: "b.txt"},
		{Digest: abcDigest, Path: "missing.txt"},
	}
	results := New(eng, dir, nil).Verify(context.Background(), entries)

	want := []Status{StatusOK, StatusMismatch, StatusUnreadable}
	for i, r := range results {
		if r.Status != want[i] {
			t.Errorf("%s: status = %v, want %v", r.Path, r.Status, want[i])
		}
	}
	if results[1].Actual == "" || results[1].Actual == abcDigest {
		t.Errorf("mismatch should carry the actual digest, got %q", results[1].Actual)
	}
	if !errors.Is(results[2].Err, fs.ErrNotExist) {
		t.Errorf("unreadable err = %v, want not exist", results[2].Err)
	}

	s := Summarize(results)
	if s.OK != 1 || s.Mismatched != 1 || s.Unreadable != 1 || !s.Failed() {
		t.Errorf("Summary = %+v", s)
	}
}

func TestVerifier_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(nil, nil)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := New(eng, "", nil).Verify(ctx, []Entry{{Digest: abcDigest, Path: path}})

	if results[0].Status != StatusCancelled {
		t.Errorf("status = %v, want cancelled", results[0].Status)
	}
	if s := Summarize(results); s.Failed() || s.Cancelled != 1 {
		t.Errorf("Summary = %+v", s)
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusOK:         "OK",
		StatusMismatch:   "FAILED",
		StatusUnreadable: "FAILED open or read",
		StatusCancelled:  "CANCELLED",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
