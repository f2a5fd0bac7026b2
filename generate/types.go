package generate

import (
	"context"
	"errors"
	"fmt"
)

// Generator turns a prompt into free text. Format compliance of the response
// is not part of the contract.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GenerationError reports that the generation service could not produce a
// response: it timed out, was unavailable or answered with nothing usable.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse is wrapped into a GenerationError when the service answers
// with blank text.
var ErrEmptyResponse = errors.New("empty response")

// AsGenerationError normalizes any error into a GenerationError.
func AsGenerationError(op string, err error) *GenerationError {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return &GenerationError{Op: op, Err: err}
}
