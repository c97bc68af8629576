// Package assist talks to the text-generation service that writes
// encouragement messages and suggests subtasks. Every call is attempted once
// and any failure is answered with a fixed fallback.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"focus-flow/model"
)

const (
	// FallbackEncouragement is returned when no service is configured.
	FallbackEncouragement = "Great job! Keep up the fantastic work!"
	// FailureEncouragement is returned when the service call fails.
	FailureEncouragement = "You did it! That's awesome progress. What's next?"

	DefaultModel = "gemini-2.5-flash"
)

// Assistant produces encouragement and subtask suggestions. Implementations
// never return errors; failures collapse to fallbacks.
type Assistant interface {
	Encouragement(ctx context.Context, taskText string, subtasks []model.Subtask) string
	Subtasks(ctx context.Context, taskText string) []string
}

// Fallback is used when no API key is configured.
type Fallback struct{}

func (Fallback) Encouragement(context.Context, string, []model.Subtask) string {
	return FallbackEncouragement
}

func (Fallback) Subtasks(context.Context, string) []string {
	return []string{}
}

// generator is the slice of the genai client used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects and tunes the assistant.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini calls the Gemini API.
type Gemini struct {
	gen     generator
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// New returns a Gemini assistant when an API key is configured, Fallback otherwise.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Assistant, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn("assistant api key not set, using fallback messages")
		return Fallback{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(gen generator, cfg Config, logger *slog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{gen: gen, model: cfg.Model, timeout: cfg.Timeout, log: logger}
}

func (g *Gemini) Encouragement(ctx context.Context, taskText string, subtasks []model.Subtask) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(encouragementPrompt(taskText, subtasks)), nil)
	if err != nil {
		g.log.Error("encouragement request failed", "error", err)
		return FailureEncouragement
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.log.Warn("encouragement response was empty")
		return FailureEncouragement
	}
	return text
}

func (g *Gemini) Subtasks(ctx context.Context, taskText string) []string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(subtasksPrompt(taskText)), cfg)
	if err != nil {
		g.log.Error("subtask request failed", "error", err)
		return []string{}
	}
	subs, err := parseSubtasks(resp.Text())
	if err != nil {
		g.log.Error("subtask response was not a string array", "error", err)
		return []string{}
	}
	return subs
}

func parseSubtasks(raw string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func encouragementPrompt(taskText string, subtasks []model.Subtask) string {
	steps := "This task had no sub-steps."
	if len(subtasks) > 0 {
		lines := make([]string, 0, len(subtasks))
		for _, st := range subtasks {
			lines = append(lines, "- "+st.Text)
		}
		steps = "The user broke this down into these steps:\n" + strings.Join(lines, "\n")
	}
	return fmt.Sprintf(`You are an encouraging AI assistant for a user with ADHD. Your goal is to provide a specific, creative, and validating message when they complete a task.

The user just completed the following task: %q
%s

Generate a short, uplifting, and encouraging message (under 30 words).
- Be creative and connect the message to the *content* of the task itself.
- If there were sub-tasks, you can acknowledge the great planning. If not, just celebrate the single accomplishment.
- Acknowledge the effort, be positive, and avoid generic platitudes like "Good job!". Make it sound personal and genuine.`, taskText, steps)
}

func subtasksPrompt(taskText string) string {
	return fmt.Sprintf("Break down the following task for someone with ADHD into 3-5 simple, actionable sub-tasks. Return ONLY a JSON array of strings. Task: %q", taskText)
}
