package assist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/genai"

	"focus-flow/model"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   int
	prompts []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWithoutKeyReturnsFallback(t *testing.T) {
	a, err := New(context.Background(), Config{}, quietLogger())
	if err != nil {
		t.Fatalf("new assistant failed: %v", err)
	}
	if _, ok := a.(Fallback); !ok {
		t.Fatalf("expected Fallback assistant, got %T", a)
	}
	if got := a.Encouragement(context.Background(), "x", nil); got != FallbackEncouragement {
		t.Fatalf("unexpected fallback encouragement %q", got)
	}
	if got := a.Subtasks(context.Background(), "x"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil subtask list, got %#v", got)
	}
}

func TestEncouragementIncludesTaskAndSteps(t *testing.T) {
	gen := &fakeGenerator{text: "  Your future smile thanks you!  "}
	g := newGemini(gen, Config{}, quietLogger())

	got := g.Encouragement(context.Background(), "Schedule dentist", []model.Subtask{{Text: "find number"}})
	if got != "Your future smile thanks you!" {
		t.Fatalf("unexpected message %q", got)
	}
	if gen.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", gen.calls)
	}
	prompt := strings.Join(gen.prompts, "\n")
	if !strings.Contains(prompt, `"Schedule dentist"`) || !strings.Contains(prompt, "- find number") {
		t.Fatalf("prompt missing task details:\n%s", prompt)
	}
}

func TestEncouragementFailureUsesFallbackWithoutRetry(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	g := newGemini(gen, Config{}, quietLogger())

	if got := g.Encouragement(context.Background(), "x", nil); got != FailureEncouragement {
		t.Fatalf("expected failure fallback, got %q", got)
	}
	if gen.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", gen.calls)
	}
}

func TestSubtasksParsesJSONArray(t *testing.T) {
	gen := &fakeGenerator{text: `["Open the app", " ", "Pick a time", "Confirm"]`}
	g := newGemini(gen, Config{Model: "custom-model"}, quietLogger())

	got := g.Subtasks(context.Background(), "Book appointment")
	want := []string{"Open the app", "Pick a time", "Confirm"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	cfg := gen.configs[0]
	if cfg == nil || cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil || cfg.ResponseSchema.Type != genai.TypeArray {
		t.Fatalf("expected JSON array response config, got %+v", cfg)
	}
}

func TestSubtasksFailuresReturnEmptyList(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"request error": {err: errors.New("boom")},
		"not json":      {text: "1. do this"},
		"wrong shape":   {text: `{"steps": []}`},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			g := newGemini(gen, Config{}, quietLogger())
			got := g.Subtasks(context.Background(), "x")
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty list, got %#v", got)
			}
		})
	}
}
