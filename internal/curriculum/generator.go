// Package curriculum turns a topic into a validated course outline using a
// language model.
package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/ai"
	"github.com/p-n-ai/pai-course-creator/internal/platform/metrics"
)

const (
	defaultTimeout         = 60 * time.Second
	defaultMaxOutputTokens = 16000
)

var (
	// ErrEmptyTopic is returned when the topic is blank after normalisation.
	ErrEmptyTopic = errors.New("topic is required")
	// ErrGenerationFailure covers timeouts, upstream errors and unusable output.
	ErrGenerationFailure = errors.New("course generation failed")
)

// GeneratorConfig holds dependencies for the curriculum generator.
type GeneratorConfig struct {
	AI              ai.Completer
	Budget          ai.BudgetChecker
	Blueprint       Blueprint
	Timeout         time.Duration // wall-clock budget for the model call (default 60s)
	MaxOutputTokens int           // output ceiling (default 16000)
}

// Generator issues a single completion per request and validates the result.
type Generator struct {
	ai              ai.Completer
	budget          ai.BudgetChecker
	blueprint       Blueprint
	timeout         time.Duration
	maxOutputTokens int
}

// NewGenerator creates a new curriculum generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	budget := cfg.Budget
	if budget == nil {
		budget = ai.NoBudget{}
	}
	bp := cfg.Blueprint
	if bp.Modules == 0 {
		bp = DefaultBlueprint()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	return &Generator{
		ai:              cfg.AI,
		budget:          budget,
		blueprint:       bp,
		timeout:         timeout,
		maxOutputTokens: maxTokens,
	}
}

// Blueprint returns the blueprint the generator renders prompts from.
func (g *Generator) Blueprint() Blueprint {
	return g.blueprint
}

// Generate produces a course for topic on behalf of userID. The topic must
// already be normalised. Budget exhaustion is reported as ai.ErrBudgetExceeded;
// every other failure wraps ErrGenerationFailure.
func (g *Generator) Generate(ctx context.Context, userID, topic string) (Course, error) {
	if topic == "" {
		return Course{}, ErrEmptyTopic
	}

	if err := g.budget.Check(ctx, userID); err != nil {
		if errors.Is(err, ai.ErrBudgetExceeded) {
			metrics.Generations.WithLabelValues("budget_exceeded").Inc()
			return Course{}, err
		}
		// A broken budget store should not block generation.
		slog.Warn("token budget check failed", "user_id", userID, "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages:  BuildMessages(g.blueprint, topic),
		MaxTokens: g.maxOutputTokens,
		JSONMode:  true,
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Generations.WithLabelValues("generation_failed").Inc()
		return Course{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	metrics.AITokens.WithLabelValues("input").Add(float64(resp.InputTokens))
	metrics.AITokens.WithLabelValues("output").Add(float64(resp.OutputTokens))
	if err := g.budget.Record(ctx, userID, resp.TotalTokens()); err != nil {
		slog.Warn("recording token usage failed", "user_id", userID, "error", err)
	}

	course, err := Parse(resp.Content)
	if err != nil {
		metrics.Generations.WithLabelValues("generation_failed").Inc()
		slog.Warn("model output rejected",
			"provider", resp.Provider,
			"model", resp.Model,
			"error", err,
		)
		return Course{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	slog.Info("curriculum generated",
		"user_id", userID,
		"provider", resp.Provider,
		"modules", len(course.Modules),
		"lessons", course.LessonCount(),
		"duration", time.Since(start),
	)
	return course, nil
}
