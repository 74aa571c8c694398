package theme

import (
	"context"

	"github.com/timmy/immiframe/internal/config"
)

// StaticStrategy rotates through a fixed list. The rotation index is owned
// by the orchestrator and advanced only after a run that used this theme.
type StaticStrategy struct {
	name  string
	items []string
}

func NewStaticStrategy(name string, items []string) *StaticStrategy {
	return &StaticStrategy{name: name, items: items}
}

func (s *StaticStrategy) Name() string { return s.name }
func (s *StaticStrategy) Kind() string { return config.ThemeKindStatic }

func (s *StaticStrategy) Produce(_ context.Context, req Request) (string, error) {
	if len(s.items) == 0 {
		return "", nil
	}
	idx := req.RotationIndex % len(s.items)
	if idx < 0 {
		idx += len(s.items)
	}
	return s.items[idx], nil
}
