package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docrag/internal/domain"
)

type slowGenerator struct {
	delay time.Duration
}

func (g *slowGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-time.After(g.delay):
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *slowGenerator) ModelName() string { return "slow" }

func TestEchoGenerator(t *testing.T) {
	g := NewEchoGenerator()

	prompt := "You are a helpful assistant:\n\nCats are mammals.\n\n---\n\nDogs bark.\n\n---\n\nQuestion: What are cats?\n\nBe accurate."
	out, err := g.Generate(context.Background(), prompt)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out, "What are cats?") {
		t.Errorf("expected question first, got %q", out)
	}
	if !strings.Contains(out, "Cats are mammals.") || !strings.Contains(out, "Dogs bark.") {
		t.Errorf("expected context lines, got %q", out)
	}
	if strings.Contains(out, "helpful assistant") || strings.Contains(out, "Be accurate") {
		t.Errorf("instructions leaked into output: %q", out)
	}
}

func TestEchoGenerator_PlainPrompt(t *testing.T) {
	out, err := NewEchoGenerator().Generate(context.Background(), SelfTestPrompt)
	if err != nil {
		t.Fatal(err)
	}
	if out != "echo: Test connection" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSelfTest_Timeout(t *testing.T) {
	err := SelfTest(context.Background(), &slowGenerator{delay: time.Second}, 20*time.Millisecond)
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestSelfTest_Success(t *testing.T) {
	if err := SelfTest(context.Background(), NewEchoGenerator(), time.Second); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIGenerator_AgainstCompatibleServer(t *testing.T) {
	var gotModel, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = req.Model
		if len(req.Messages) > 0 {
			gotContent = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "Cats are mammals."},
			}},
		})
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{Model: "mistral", BaseURL: srv.URL + "/v1/", Temperature: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	out, err := g.Generate(context.Background(), "What are cats?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Cats are mammals." {
		t.Errorf("unexpected answer %q", out)
	}
	if gotModel != "mistral" || gotContent != "What are cats?" {
		t.Errorf("unexpected request model=%q content=%q", gotModel, gotContent)
	}
}

func TestOpenAIGenerator_RequiresModel(t *testing.T) {
	if _, err := NewOpenAIGenerator(OpenAIConfig{}); err == nil {
		t.Error("expected error without model")
	}
}
