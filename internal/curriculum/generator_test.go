package curriculum_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/ai"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum/curriculumtest"
)

func TestBuildMessages(t *testing.T) {
	msgs := curriculum.BuildMessages(curriculum.DefaultBlueprint(), "React Basics")

	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v, want system + user", msgs)
	}
	if !strings.Contains(msgs[0].Content, `"moduleProject"`) {
		t.Error("system prompt should embed the JSON schema")
	}

	user := msgs[1].Content
	for _, want := range []string{
		`"React Basics"`,
		"8-week",
		"Create 4 modules (2 weeks per module)",
		"4-5 detailed lessons",
		"quiz with 5 questions",
		"comprehensive test (10 questions)",
		"portfolio project",
		"function components and hooks",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildMessages_NoGuide(t *testing.T) {
	msgs := curriculum.BuildMessages(curriculum.DefaultBlueprint(), "Kubernetes")
	if strings.Contains(msgs[1].Content, "Topic guidance") {
		t.Error("unmatched topic should not get guidance")
	}
}

func TestGenerator_Generate(t *testing.T) {
	mock := ai.NewMockProvider(curriculumtest.JSON(curriculumtest.Course("React Basics", 4, 5)))
	gen := curriculum.NewGenerator(curriculum.GeneratorConfig{AI: mock})

	course, err := gen.Generate(context.Background(), "user-1", "React Basics")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(course.Modules) != 4 || course.LessonCount() != 20 {
		t.Errorf("modules/lessons = %d/%d, want 4/20", len(course.Modules), course.LessonCount())
	}

	req := mock.LastRequest
	if req == nil {
		t.Fatal("provider was not called")
	}
	if !req.JSONMode {
		t.Error("request should use JSON mode")
	}
	if req.MaxTokens != 16000 {
		t.Errorf("MaxTokens = %d, want 16000", req.MaxTokens)
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want exactly one completion", mock.Calls())
	}
}

func TestGenerator_EmptyTopic(t *testing.T) {
	mock := ai.NewMockProvider("{}")
	gen := curriculum.NewGenerator(curriculum.GeneratorConfig{AI: mock})

	_, err := gen.Generate(context.Background(), "user-1", "")
	if !errors.Is(err, curriculum.ErrEmptyTopic) {
		t.Fatalf("Generate() error = %v, want ErrEmptyTopic", err)
	}
	if mock.Calls() != 0 {
		t.Error("provider should not be called for an empty topic")
	}
}

func TestGenerator_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *ai.MockProvider
		wantWrap error
	}{
		{"upstream error", &ai.MockProvider{Err: errors.New("503 from provider")}, nil},
		{"malformed output", ai.NewMockProvider("I cannot help with that"), curriculum.ErrSchemaMismatch},
		{"schema mismatch", ai.NewMockProvider(`{"title":"x","description":"y","difficultyLevel":"beginner","modules":[]}`), curriculum.ErrSchemaMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := curriculum.NewGenerator(curriculum.GeneratorConfig{AI: tt.provider})
			_, err := gen.Generate(context.Background(), "user-1", "Go")
			if !errors.Is(err, curriculum.ErrGenerationFailure) {
				t.Fatalf("Generate() error = %v, want ErrGenerationFailure", err)
			}
			if tt.wantWrap != nil && !errors.Is(err, tt.wantWrap) {
				t.Errorf("Generate() error = %v, want it to wrap %v", err, tt.wantWrap)
			}
			if tt.provider.Calls() != 1 {
				t.Errorf("Calls() = %d, want 1 (no retry)", tt.provider.Calls())
			}
		})
	}
}

type slowProvider struct{}

func (slowProvider) Complete(ctx context.Context, _ ai.CompletionRequest) (ai.CompletionResponse, error) {
	<-ctx.Done()
	return ai.CompletionResponse{}, ctx.Err()
}

func TestGenerator_Timeout(t *testing.T) {
	gen := curriculum.NewGenerator(curriculum.GeneratorConfig{
		AI:      slowProvider{},
		Timeout: 20 * time.Millisecond,
	})

	_, err := gen.Generate(context.Background(), "user-1", "Go")
	if !errors.Is(err, curriculum.ErrGenerationFailure) {
		t.Fatalf("Generate() error = %v, want ErrGenerationFailure", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want it to wrap DeadlineExceeded", err)
	}
}

func TestGenerator_Budget(t *testing.T) {
	mock := ai.NewMockProvider(curriculumtest.JSON(curriculumtest.Course("Go", 1, 1)))
	budget := ai.NewInMemoryBudget(1)
	gen := curriculum.NewGenerator(curriculum.GeneratorConfig{AI: mock, Budget: budget})

	if _, err := gen.Generate(context.Background(), "user-1", "Go"); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	if used, _ := budget.Usage("user-1"); used == 0 {
		t.Error("token usage was not recorded")
	}

	_, err := gen.Generate(context.Background(), "user-1", "Go")
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Fatalf("second Generate() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", mock.Calls())
	}
}
