package port

import "context"

// Generator represents a language model for text generation.
type Generator interface {
	// Generate returns the completion for prompt. It blocks until the backend
	// answers or ctx is done.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
