package course

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
)

// Settings are the fixed values stamped onto every stored course.
type Settings struct {
	DurationWeeks int
	PassingScore  int
}

// SettingsFromBlueprint takes the course length and passing score from bp.
func SettingsFromBlueprint(bp curriculum.Blueprint) Settings {
	return Settings{DurationWeeks: bp.DurationWeeks, PassingScore: bp.PassingScore}
}

func (st Settings) withDefaults() Settings {
	if st.DurationWeeks <= 0 {
		st.DurationWeeks = DefaultDurationWeeks
	}
	if st.PassingScore <= 0 {
		st.PassingScore = DefaultPassingScore
	}
	return st
}

// Persist writes a generated curriculum with the default settings and returns
// the new course id.
func Persist(ctx context.Context, store Store, userID, topic string, c curriculum.Course) (string, error) {
	return Settings{}.Persist(ctx, store, userID, topic, c)
}

// Persist writes a generated curriculum and returns the new course id.
// Rows are inserted parent first in document order inside one transaction,
// so a failure at any step leaves nothing behind. Zero fields fall back to
// DefaultDurationWeeks and DefaultPassingScore.
func (st Settings) Persist(ctx context.Context, store Store, userID, topic string, c curriculum.Course) (string, error) {
	st = st.withDefaults()
	var courseID string
	err := store.InTx(ctx, func(w Writer) error {
		id, err := w.InsertCourse(ctx, Course{
			UserID:          userID,
			Title:           c.Title,
			Description:     c.Description,
			Topic:           topic,
			DurationWeeks:   st.DurationWeeks,
			DifficultyLevel: c.DifficultyLevel,
		})
		if err != nil {
			return err
		}
		courseID = id

		for mi, m := range c.Modules {
			if err := persistModule(ctx, w, st, courseID, mi, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return courseID, nil
}

func persistModule(ctx context.Context, w Writer, st Settings, courseID string, index int, m curriculum.Module) error {
	moduleID, err := w.InsertModule(ctx, Module{
		CourseID:    courseID,
		Title:       m.Title,
		Description: m.Description,
		OrderIndex:  index,
	})
	if err != nil {
		return err
	}

	for li, l := range m.Lessons {
		lessonID, err := w.InsertLesson(ctx, Lesson{
			ModuleID:                 moduleID,
			Title:                    l.Title,
			Content:                  l.Content,
			OrderIndex:               li,
			EstimatedDurationMinutes: int(math.Round(l.EstimatedDuration)),
		})
		if err != nil {
			return err
		}

		if _, err := w.InsertQuiz(ctx, Quiz{
			Scope:        LessonScope(lessonID),
			Title:        l.Quiz.Title,
			Questions:    l.Quiz.Questions,
			PassingScore: st.PassingScore,
		}); err != nil {
			return err
		}

		instructions, err := json.Marshal(l.Exercise)
		if err != nil {
			return fmt.Errorf("encode exercise: %w", err)
		}
		var starter *string
		if l.Exercise.StarterCode != "" {
			starter = &l.Exercise.StarterCode
		}
		if _, err := w.InsertExercise(ctx, Exercise{
			Scope:            LessonScope(lessonID),
			Title:            l.Exercise.Title,
			Description:      l.Exercise.Description,
			Instructions:     instructions,
			SolutionTemplate: starter,
		}); err != nil {
			return err
		}
	}

	if _, err := w.InsertQuiz(ctx, Quiz{
		Scope:        ModuleScope(moduleID),
		Title:        m.ModuleTest.Title,
		Questions:    m.ModuleTest.Questions,
		PassingScore: st.PassingScore,
	}); err != nil {
		return err
	}

	project, err := json.Marshal(m.ModuleProject)
	if err != nil {
		return fmt.Errorf("encode module project: %w", err)
	}
	_, err = w.InsertExercise(ctx, Exercise{
		Scope:        ModuleScope(moduleID),
		Title:        m.ModuleProject.Title,
		Description:  m.ModuleProject.Description,
		Instructions: project,
	})
	return err
}
