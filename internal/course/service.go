package course

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
	"github.com/p-n-ai/pai-course-creator/internal/events"
	"github.com/p-n-ai/pai-course-creator/internal/platform/metrics"
)

// Generator produces a validated curriculum for a topic.
type Generator interface {
	Generate(ctx context.Context, userID, topic string) (curriculum.Course, error)
}

// ServiceConfig holds dependencies for the course service.
type ServiceConfig struct {
	Store     Store
	Generator Generator
	Events    events.Logger
	// Settings defaults to the generator's blueprint when it exposes one.
	Settings Settings
}

// Service generates and stores courses.
type Service struct {
	store     Store
	generator Generator
	events    events.Logger
	settings  Settings
}

// NewService creates a new course service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := cfg.Events
	if logger == nil {
		logger = events.NopLogger{}
	}
	settings := cfg.Settings
	if bp, ok := cfg.Generator.(interface{ Blueprint() curriculum.Blueprint }); ok && settings == (Settings{}) {
		settings = SettingsFromBlueprint(bp.Blueprint())
	}
	return &Service{
		store:     store,
		generator: cfg.Generator,
		events:    logger,
		settings:  settings,
	}
}

// GenerateCourse generates a course on topic for userID and stores it.
func (s *Service) GenerateCourse(ctx context.Context, userID, topic string) (string, curriculum.Course, error) {
	topic = curriculum.NormalizeTopic(topic)
	if topic == "" {
		return "", curriculum.Course{}, curriculum.ErrEmptyTopic
	}

	slog.Info("generating course", "user_id", userID, "topic", topic)

	generated, err := s.generator.Generate(ctx, userID, topic)
	if err != nil {
		return "", curriculum.Course{}, err
	}

	courseID, err := s.settings.Persist(ctx, s.store, userID, topic, generated)
	if err != nil {
		metrics.Generations.WithLabelValues("storage_failed").Inc()
		return "", curriculum.Course{}, fmt.Errorf("save course: %w", err)
	}
	metrics.Generations.WithLabelValues("success").Inc()

	events.Log(ctx, s.events, events.Event{
		UserID:    userID,
		EventType: events.CourseGenerated,
		Data: map[string]any{
			"course_id": courseID,
			"topic":     topic,
			"modules":   len(generated.Modules),
			"lessons":   generated.LessonCount(),
		},
	})

	slog.Info("course saved", "user_id", userID, "course_id", courseID)
	return courseID, generated, nil
}
