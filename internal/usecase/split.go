// File: internal/usecase/split.go
package usecase

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxMessageLen is the Telegram limit for one text message.
const DefaultMaxMessageLen = 4096

// Split packs units into segments of at most maxLen runes. Units are kept
// whole whenever they fit; a unit longer than maxLen is broken on line
// boundaries. A single line longer than maxLen becomes its own oversized
// segment. Joining the segments gives back the joined units.
func Split(units []string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLen
	}

	var (
		out    []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
		bufLen = 0
	}
	add := func(s string, n int) {
		if bufLen+n > maxLen {
			flush()
		}
		buf.WriteString(s)
		bufLen += n
	}

	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if n == 0 {
			continue
		}
		if n <= maxLen {
			add(u, n)
			continue
		}
		for _, line := range strings.SplitAfter(u, "\n") {
			if line == "" {
				continue
			}
			add(line, utf8.RuneCountInString(line))
		}
	}
	flush()
	return out
}

// SplitText is Split for a single block of text.
func SplitText(text string, maxLen int) []string {
	return Split([]string{text}, maxLen)
}
