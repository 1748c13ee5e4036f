package llm

import (
	"context"
	"fmt"
	"strings"
)

// EchoGenerator answers without a model server. It returns the question line
// of the prompt followed by the first lines of context, which is enough for
// demos and tests of the surrounding pipeline.
type EchoGenerator struct {
	maxLines int
}

func NewEchoGenerator() *EchoGenerator {
	return &EchoGenerator{maxLines: 3}
}

func (g *EchoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		question  string
		lines     []string
		inContext bool
	)
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Question:"):
			question = strings.TrimSpace(strings.TrimPrefix(line, "Question:"))
			inContext = false
		case question == "" && strings.HasSuffix(line, ":"):
			inContext = true
		case !inContext || line == "" || line == "---":
		case len(lines) < g.maxLines:
			lines = append(lines, line)
		}
	}

	if question == "" {
		return fmt.Sprintf("echo: %s", firstLine(prompt)), nil
	}
	return fmt.Sprintf("%s\n%s", question, strings.Join(lines, "\n")), nil
}

func (g *EchoGenerator) ModelName() string {
	return "echo"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
