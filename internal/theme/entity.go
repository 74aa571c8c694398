package theme

import (
	"context"

	"github.com/timmy/immiframe/internal/config"
)

// StateReader reads a Home Assistant entity state.
type StateReader interface {
	State(ctx context.Context, entityID string) (string, error)
}

// EntityStrategy uses the current state of a Home Assistant entity, typically
// an input_text or input_select helper, as the theme.
type EntityStrategy struct {
	name     string
	entityID string
	states   StateReader
}

func NewEntityStrategy(name, entityID string, states StateReader) *EntityStrategy {
	return &EntityStrategy{name: name, entityID: entityID, states: states}
}

func (s *EntityStrategy) Name() string { return s.name }
func (s *EntityStrategy) Kind() string { return config.ThemeKindEntity }

func (s *EntityStrategy) Produce(ctx context.Context, _ Request) (string, error) {
	return s.states.State(ctx, s.entityID)
}
