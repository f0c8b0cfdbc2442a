package course_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-course-creator/internal/ai"
	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum/curriculumtest"
	"github.com/p-n-ai/pai-course-creator/internal/events"
)

func newService(t *testing.T, provider ai.Provider) (*course.Service, *course.MemoryStore, *events.MemoryLogger) {
	t.Helper()
	router := ai.NewRouter()
	router.Register("mock", provider)

	store := course.NewMemoryStore()
	logger := events.NewMemoryLogger()
	svc := course.NewService(course.ServiceConfig{
		Store:     store,
		Generator: curriculum.NewGenerator(curriculum.GeneratorConfig{AI: router}),
		Events:    logger,
	})
	return svc, store, logger
}

func TestService_GenerateCourse(t *testing.T) {
	mock := ai.NewMockProvider(curriculumtest.JSON(curriculumtest.Course("React Basics", 4, 5)))
	svc, store, logger := newService(t, mock)

	id, generated, err := svc.GenerateCourse(context.Background(), "user-1", "  React Basics ")
	if err != nil {
		t.Fatalf("GenerateCourse() error = %v", err)
	}
	if generated.Title != "React Basics" {
		t.Errorf("Title = %q", generated.Title)
	}

	c, err := store.GetCourse(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCourse() error = %v", err)
	}
	if c.Topic != "React Basics" {
		t.Errorf("Topic = %q, want trimmed topic", c.Topic)
	}

	counts := store.Counts()
	if counts[course.TableModules] != 4 || counts[course.TableLessons] != 20 {
		t.Errorf("counts = %v", counts)
	}

	evts := logger.OfType(events.CourseGenerated)
	if len(evts) != 1 {
		t.Fatalf("course_generated events = %d, want 1", len(evts))
	}
	if evts[0].Data["course_id"] != id {
		t.Errorf("event course_id = %v, want %q", evts[0].Data["course_id"], id)
	}
}

func TestService_GenerateCourse_EmptyTopic(t *testing.T) {
	mock := ai.NewMockProvider("{}")
	svc, store, _ := newService(t, mock)

	for _, topic := range []string{"", "   ", "\n\t"} {
		_, _, err := svc.GenerateCourse(context.Background(), "user-1", topic)
		if !errors.Is(err, curriculum.ErrEmptyTopic) {
			t.Errorf("GenerateCourse(%q) error = %v, want ErrEmptyTopic", topic, err)
		}
	}
	if mock.Calls() != 0 {
		t.Errorf("provider called %d times, want 0", mock.Calls())
	}
	for table, n := range store.Counts() {
		if n != 0 {
			t.Errorf("%s rows = %d, want 0", table, n)
		}
	}
}

func TestService_GenerateCourse_GenerationFailure(t *testing.T) {
	svc, store, logger := newService(t, ai.NewMockProvider("not json"))

	_, _, err := svc.GenerateCourse(context.Background(), "user-1", "Go")
	if !errors.Is(err, curriculum.ErrGenerationFailure) {
		t.Fatalf("GenerateCourse() error = %v, want ErrGenerationFailure", err)
	}
	if store.Counts()[course.TableCourses] != 0 {
		t.Error("no course should be stored when generation fails")
	}
	if len(logger.Events()) != 0 {
		t.Error("no event should be logged when generation fails")
	}
}

func TestService_GenerateCourse_StorageFailure(t *testing.T) {
	mock := ai.NewMockProvider(curriculumtest.JSON(curriculumtest.Course("Go", 2, 2)))
	svc, store, _ := newService(t, mock)
	store.FailOn(course.TableLessons, 3, errors.New("disk full"))

	_, _, err := svc.GenerateCourse(context.Background(), "user-1", "Go")
	if err == nil {
		t.Fatal("GenerateCourse() should fail")
	}
	for table, n := range store.Counts() {
		if n != 0 {
			t.Errorf("%s rows = %d after failed save, want 0", table, n)
		}
	}
}

func TestService_GenerateCourse_BlueprintSettings(t *testing.T) {
	bp := curriculum.DefaultBlueprint()
	bp.DurationWeeks = 12
	bp.PassingScore = 85

	router := ai.NewRouter()
	router.Register("mock", ai.NewMockProvider(curriculumtest.JSON(curriculumtest.Course("Go", 2, 2))))
	store := course.NewMemoryStore()
	svc := course.NewService(course.ServiceConfig{
		Store:     store,
		Generator: curriculum.NewGenerator(curriculum.GeneratorConfig{AI: router, Blueprint: bp}),
	})

	id, _, err := svc.GenerateCourse(context.Background(), "user-1", "Go")
	if err != nil {
		t.Fatalf("GenerateCourse() error = %v", err)
	}
	c, err := store.GetCourse(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCourse() error = %v", err)
	}
	if c.DurationWeeks != 12 {
		t.Errorf("DurationWeeks = %d, want 12", c.DurationWeeks)
	}
	quizzes, err := store.ListQuizzes(context.Background(), id)
	if err != nil {
		t.Fatalf("ListQuizzes() error = %v", err)
	}
	for _, q := range quizzes {
		if q.PassingScore != 85 {
			t.Errorf("quiz %q PassingScore = %d, want 85", q.Title, q.PassingScore)
		}
	}
}
