package generate

import (
	"context"
	"fmt"
)

type FailbackGenerator struct {
	generators []Generator
}

func NewFailbackGenerator(generators ...Generator) *FailbackGenerator {
	return &FailbackGenerator{generators: generators}
}

func (g *FailbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, generator := range g.generators {
		text, err := generator.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", &GenerationError{Op: "failback", Err: ctx.Err()}
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no generators configured")
	}
	return "", &GenerationError{Op: "failback", Err: fmt.Errorf("all generators failed: %w", lastErr)}
}

// Unavailable is a Generator that always fails. It stands in for the model
// when none is configured so every stage degrades to its scripted prompts.
type Unavailable struct{}

func (Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", &GenerationError{Op: "unavailable", Err: fmt.Errorf("no generation service configured")}
}
