// Package sanitize escapes user-supplied paths and messages before they
// reach logs or the terminal, so that a file name cannot forge log lines
// or inject terminal escape sequences.
package sanitize

import (
	"strings"
	"unicode"
)

// MaxLogStringLength is the maximum length for logged strings.
// Longer strings are truncated with "..." suffix.
const MaxLogStringLength = 500

// String escapes control characters (including newlines and ESC) and
// truncates s to MaxLogStringLength bytes.
func String(s string) string {
	return escape(s, MaxLogStringLength)
}

// Path sanitizes a file path for logging.
func Path(path string) string {
	return String(path)
}

// Display escapes control characters in s for printing to a terminal.
// Unlike String it never truncates.
func Display(s string) string {
	return escape(s, -1)
}

// Error sanitizes an error message for logging.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// NeedsEscape reports whether s contains characters that Display would change.
func NeedsEscape(s string) bool {
	for _, r := range s {
		if r == '\\' || unicode.IsControl(r) {
			return true
		}
	}
	return false
}

func escape(s string, limit int) string {
	if !NeedsEscape(s) && (limit < 0 || len(s) <= limit) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 16)

	for i, r := range s {
		if limit >= 0 && i >= limit {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		default:
			if unicode.IsControl(r) && r < 0x100 {
				b.WriteString(`\x`)
				b.WriteByte(hexChar(byte(r) >> 4))
				b.WriteByte(hexChar(byte(r) & 0x0f))
			} else {
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}

func hexChar(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'a' + b - 10
}
