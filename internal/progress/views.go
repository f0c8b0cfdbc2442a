package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-course-creator/internal/course"
)

// Dashboard is the caller's landing view.
type Dashboard struct {
	Profile        course.Profile         `json:"profile"`
	Courses        []CourseSummary        `json:"courses"`
	Certifications []course.Certification `json:"certifications"`
}

// Dashboard returns the caller's profile, courses and certificates. A user
// without a profile row gets an empty profile carrying their id.
func (t *Tracker) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	profile, err := t.store.GetProfile(ctx, userID)
	if errors.Is(err, course.ErrNotFound) {
		profile, err = course.Profile{ID: userID}, nil
	}
	if err != nil {
		return Dashboard{}, fmt.Errorf("get profile: %w", err)
	}

	courses, err := t.Courses(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	certs, err := t.store.ListCertifications(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list certifications: %w", err)
	}
	if certs == nil {
		certs = []course.Certification{}
	}
	return Dashboard{Profile: profile, Courses: courses, Certifications: certs}, nil
}

// LessonDetail is a lesson with its quiz, exercise and the caller's progress.
// A lesson is unlocked when its module is unlocked and the lesson before it
// in the module is completed.
type LessonDetail struct {
	course.Lesson
	Quiz     *course.Quiz     `json:"quiz"`
	Exercise *course.Exercise `json:"exercise"`
	Progress *course.Progress `json:"progress"`
	Unlocked bool             `json:"unlocked"`
}

// ModuleDetail is a module with its lessons, test and project. A module is
// unlocked when every lesson of the module before it is completed.
type ModuleDetail struct {
	course.Module
	Lessons            []LessonDetail   `json:"lessons"`
	ModuleTest         *course.Quiz     `json:"module_test"`
	Project            *course.Exercise `json:"module_project"`
	CompletedLessons   int              `json:"completed_lessons"`
	ProgressPercentage int              `json:"progress_percentage"`
	Unlocked           bool             `json:"unlocked"`
}

// CourseDetail is everything needed to render one course for its owner.
type CourseDetail struct {
	Course             course.Course         `json:"course"`
	Modules            []ModuleDetail        `json:"modules"`
	TotalLessons       int                   `json:"total_lessons"`
	CompletedLessons   int                   `json:"completed_lessons"`
	ProgressPercentage int                   `json:"progress_percentage"`
	State              State                 `json:"state"`
	Certification      *course.Certification `json:"certification"`
}

// CourseDetail assembles a course tree with the caller's progress.
func (t *Tracker) CourseDetail(ctx context.Context, userID, courseID string) (CourseDetail, error) {
	c, err := OwnedCourse(ctx, t.store, userID, courseID)
	if err != nil {
		return CourseDetail{}, err
	}

	modules, err := t.store.ListModules(ctx, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list modules: %w", err)
	}
	lessons, err := t.store.ListLessons(ctx, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list lessons: %w", err)
	}
	quizzes, err := t.store.ListQuizzes(ctx, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list quizzes: %w", err)
	}
	exercises, err := t.store.ListExercises(ctx, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list exercises: %w", err)
	}
	rows, err := t.store.ListProgress(ctx, userID, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list progress: %w", err)
	}

	var cert *course.Certification
	existing, err := t.store.GetCertification(ctx, userID, courseID)
	switch {
	case err == nil:
		cert = &existing
	case !errors.Is(err, course.ErrNotFound):
		return CourseDetail{}, fmt.Errorf("get certification: %w", err)
	}

	quizByScope := make(map[course.Scope]*course.Quiz, len(quizzes))
	for i := range quizzes {
		quizByScope[quizzes[i].Scope] = &quizzes[i]
	}
	exerciseByScope := make(map[course.Scope]*course.Exercise, len(exercises))
	for i := range exercises {
		exerciseByScope[exercises[i].Scope] = &exercises[i]
	}
	progressByLesson := make(map[string]*course.Progress, len(rows))
	for i := range rows {
		progressByLesson[rows[i].LessonID] = &rows[i]
	}

	detail := CourseDetail{
		Course:             c,
		Modules:            make([]ModuleDetail, 0, len(modules)),
		TotalLessons:       len(lessons),
		CompletedLessons:   CompletedLessons(rows),
		ProgressPercentage: Completion(len(lessons), rows),
		Certification:      cert,
	}
	detail.State = CourseState(detail.ProgressPercentage, rows, cert != nil)

	done := func(lessonID string) bool {
		p := progressByLesson[lessonID]
		return p != nil && p.Completed
	}

	// The first module is always open; later ones wait for the previous module.
	previousDone := true
	for _, m := range modules {
		md := ModuleDetail{
			Module:     m,
			Lessons:    []LessonDetail{},
			ModuleTest: quizByScope[course.ModuleScope(m.ID)],
			Project:    exerciseByScope[course.ModuleScope(m.ID)],
			Unlocked:   previousDone,
		}
		for _, l := range lessons {
			if l.ModuleID != m.ID {
				continue
			}
			unlocked := md.Unlocked && (len(md.Lessons) == 0 || done(md.Lessons[len(md.Lessons)-1].ID))
			md.Lessons = append(md.Lessons, LessonDetail{
				Lesson:   l,
				Quiz:     quizByScope[course.LessonScope(l.ID)],
				Exercise: exerciseByScope[course.LessonScope(l.ID)],
				Progress: progressByLesson[l.ID],
				Unlocked: unlocked,
			})
			if done(l.ID) {
				md.CompletedLessons++
			}
		}
		md.ProgressPercentage = percent(md.CompletedLessons, len(md.Lessons))
		previousDone = md.CompletedLessons == len(md.Lessons)
		detail.Modules = append(detail.Modules, md)
	}
	return detail, nil
}
