package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxLogValueLen caps user-supplied values so one request cannot flood the log.
const maxLogValueLen = 256

// SanitizeForLog makes a user-supplied string safe to put on a single log line.
// Newlines, tabs, NUL, ESC and other control characters become visible escapes;
// printable Unicode is kept. Values longer than maxLogValueLen runes are cut and
// suffixed with "...".
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := 0
	for _, r := range s {
		if runes == maxLogValueLen {
			b.WriteString("...")
			break
		}
		runes++

		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == utf8.RuneError:
			b.WriteString(`�`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
