// Package verify checks files against sha256sum-style checksum lists.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashsafe/hashsafe/internal/hashutil"
)

// ErrMalformed is returned for lines that are not "<digest>  <path>".
var ErrMalformed = errors.New("improperly formatted checksum line")

// Entry is one line of a checksum list.
type Entry struct {
	Digest string
	Path   string
	Line   int
}

// FormatLine renders digest and path in the sha256sum layout. Paths with
// a backslash or newline are escaped and the line is prefixed with '\'.
func FormatLine(digest, path string) string {
	if strings.ContainsAny(path, "\\\n\r") {
		r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
		return `\` + digest + "  " + r.Replace(path)
	}
	return digest + "  " + path
}

// ParseLine parses a single checksum line. Both the text ("  ") and
// binary (" *") separators are accepted.
func ParseLine(line string) (Entry, error) {
	escaped := strings.HasPrefix(line, `\`)
	if escaped {
		line = line[1:]
	}

	if len(line) < hashutil.DigestHexLen+2 {
		return Entry{}, ErrMalformed
	}
	digest := line[:hashutil.DigestHexLen]
	if !hashutil.IsDigest(digest) {
		return Entry{}, ErrMalformed
	}
	sep := line[hashutil.DigestHexLen : hashutil.DigestHexLen+2]
	if sep != "  " && sep != " *" {
		return Entry{}, ErrMalformed
	}

	path := line[hashutil.DigestHexLen+2:]
	if escaped {
		var err error
		if path, err = unescape(path); err != nil {
			return Entry{}, err
		}
	}
	if path == "" {
		return Entry{}, ErrMalformed
	}

	return Entry{Digest: strings.ToLower(digest), Path: path}, nil
}

func unescape(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i == len(s) {
			return "", ErrMalformed
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", ErrMalformed
		}
	}
	return b.String(), nil
}

// Parse reads a checksum list. Blank lines and lines starting with '#' are
// skipped; malformed lines are counted and otherwise ignored.
func Parse(r io.Reader) (entries []Entry, malformed int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, perr := ParseLine(line)
		if perr != nil {
			malformed++
			continue
		}
		e.Line = n
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read checksum list: %w", err)
	}
	return entries, malformed, nil
}
