// Package theme produces the textual theme of a run through an ordered chain
// of strategies that ends in a configured default.
package theme

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxThemeRunes caps the length of a generated theme.
const MaxThemeRunes = 80

// Request carries the per-run inputs a strategy may use.
type Request struct {
	Now           time.Time
	RotationIndex int
}

// Strategy produces a theme candidate. An empty string or an error makes the
// resolver move on to the next strategy.
type Strategy interface {
	Name() string
	Kind() string
	Produce(ctx context.Context, req Request) (string, error)
}

// Normalize reduces a model completion to a single clean theme: the first
// non-empty line, without surrounding quotes or trailing punctuation, clipped
// to MaxThemeRunes.
func Normalize(completion string) string {
	line := ""
	for _, l := range strings.Split(completion, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	for {
		before := line
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`“”‘’*")
		line = strings.TrimRight(line, ".!?,;:")
		if line == before {
			break
		}
	}

	if utf8.RuneCountInString(line) > MaxThemeRunes {
		line = strings.TrimSpace(string([]rune(line)[:MaxThemeRunes]))
	}
	return line
}
