package theme

import (
	"context"
	"fmt"
	"net/http"

	"github.com/timmy/immiframe/internal/config"
)

// Deps are the shared clients some strategies need.
type Deps struct {
	States     StateReader
	HTTPClient *http.Client // gemini transport override, nil for default
}

// NewStrategy builds one strategy from its configuration.
func NewStrategy(ctx context.Context, cfg *config.ThemeSourceConfig, deps Deps) (Strategy, error) {
	switch cfg.Kind {
	case config.ThemeKindStatic:
		return NewStaticStrategy(cfg.Name, cfg.Items), nil
	case config.ThemeKindFile:
		return NewFileStrategy(cfg.Name, cfg.Path), nil
	case config.ThemeKindEntity:
		if deps.States == nil {
			return nil, fmt.Errorf("theme source %q: home assistant is not configured", cfg.Name)
		}
		return NewEntityStrategy(cfg.Name, cfg.EntityID, deps.States), nil
	case config.ThemeKindOpenAI:
		return NewOpenAIStrategy(cfg), nil
	case config.ThemeKindGemini:
		return NewGeminiStrategy(ctx, cfg, deps.HTTPClient)
	default:
		return nil, fmt.Errorf("theme source %q: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// NewResolverFromConfig builds the full fallback chain.
func NewResolverFromConfig(ctx context.Context, cfg config.ThemeConfig, deps Deps) (*Resolver, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		strategy, err := NewStrategy(ctx, src, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Strategy: strategy, Timeout: src.GetTimeout()})
	}
	return NewResolver(sources, cfg.Default, cfg.ResolveTimeout), nil
}
