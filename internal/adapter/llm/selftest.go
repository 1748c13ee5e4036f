package llm

import (
	"context"
	"fmt"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// SelfTestPrompt is sent once at startup to confirm the backend responds.
const SelfTestPrompt = "Test connection"

// SelfTest invokes the generator once under timeout.
func SelfTest(ctx context.Context, g port.Generator, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := g.Generate(ctx, SelfTestPrompt); err != nil {
		return fmt.Errorf("%w: self-test against %s: %v", domain.ErrGeneration, g.ModelName(), err)
	}
	return nil
}
