package theme

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/timmy/immiframe/internal/config"
)

// FileStrategy picks a random entry from a newline-delimited file. Blank
// lines and lines starting with # are ignored. The file is re-read every run
// so edits apply without a restart.
type FileStrategy struct {
	name string
	path string
}

func NewFileStrategy(name, path string) *FileStrategy {
	return &FileStrategy{name: name, path: path}
}

func (s *FileStrategy) Name() string { return s.name }
func (s *FileStrategy) Kind() string { return config.ThemeKindFile }

func (s *FileStrategy) Produce(ctx context.Context, _ Request) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open theme file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read theme file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("theme file %s has no entries", s.path)
	}
	return entries[rand.IntN(len(entries))], nil
}
