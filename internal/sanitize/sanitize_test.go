package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestString_Empty(t *testing.T) {
	if got := String(""); got != "" {
		t.Errorf("String(\"\") = %q, want \"\"", got)
	}
}

func TestString_Normal(t *testing.T) {
	input := "/home/user/Downloads/debian-12.5.0-amd64-netinst.iso"
	got := String(input)
	if got != input {
		t.Errorf("String(%q) = %q, want %q", input, got, input)
	}
}

func TestString_Escapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"newline", "line1\nline2", `line1\nline2`},
		{"carriage return", "line1\rline2", `line1\rline2`},
		{"CRLF", "a\r\nb", `a\r\nb`},
		{"tab", "col1\tcol2", `col1\tcol2`},
		{"backslash", `C:\x`, `C:\\x`},
		{"null byte", "before\x00after", `before\x00after`},
		{"escape sequence", "evil\x1b[2Jname", `evil\x1b[2Jname`},
		{"C1 control", "a\u009bb", `a\x9bb`},
		{
			name:  "fake log injection",
			input: "/tmp/x\n2024-01-01 INFO Fake entry",
			want:  `/tmp/x\n2024-01-01 INFO Fake entry`,
		},
		{"unicode untouched", "/tmp/日本語.txt", "/tmp/日本語.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.input); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got := Display(tt.input); got != tt.want {
				t.Errorf("Display(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestString_Truncation(t *testing.T) {
	long := strings.Repeat("a", MaxLogStringLength+100)

	got := String(long)
	if !strings.HasSuffix(got, "...") {
		t.Error("long string should end with ...")
	}
	if len(got) != MaxLogStringLength+3 {
		t.Errorf("len = %d, want %d", len(got), MaxLogStringLength+3)
	}

	if got := Display(long); got != long {
		t.Error("Display must not truncate")
	}
}

func TestPath(t *testing.T) {
	if got := Path("/tmp/a\nb"); got != `/tmp/a\nb` {
		t.Errorf("Path() = %q", got)
	}
}

func TestError(t *testing.T) {
	if got := Error(nil); got != "" {
		t.Errorf("Error(nil) = %q, want \"\"", got)
	}
	err := errors.New("open /tmp/a\nb: no such file")
	if got, want := Error(err), `open /tmp/a\nb: no such file`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNeedsEscape(t *testing.T) {
	tests := map[string]bool{
		"/plain/path": false,
		"with space":  false,
		"new\nline":   true,
		`back\slash`:  true,
		"esc\x1b":     true,
		"unicode ünï": false,
	}
	for in, want := range tests {
		if got := NeedsEscape(in); got != want {
			t.Errorf("NeedsEscape(%q) = %v, want %v", in, got, want)
		}
	}
}
