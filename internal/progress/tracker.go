package progress

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/events"
)

// TrackerConfig holds dependencies for a Tracker.
type TrackerConfig struct {
	Store  course.Store
	Events events.Logger
}

// Tracker records learner activity and computes progress views.
type Tracker struct {
	store  course.Store
	events events.Logger
}

// NewTracker creates a Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	logger := cfg.Events
	if logger == nil {
		logger = events.NopLogger{}
	}
	return &Tracker{store: cfg.Store, events: logger}
}

// CourseGetter loads a course by id.
type CourseGetter interface {
	GetCourse(ctx context.Context, courseID string) (course.Course, error)
}

// OwnedCourse loads a course and hides it from everyone but its owner.
func OwnedCourse(ctx context.Context, store CourseGetter, userID, courseID string) (course.Course, error) {
	c, err := store.GetCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if c.UserID != userID {
		return course.Course{}, fmt.Errorf("course %s: %w", courseID, course.ErrNotFound)
	}
	return c, nil
}

// Update is a progress write for one lesson.
type Update struct {
	CourseID           string
	LessonID           string
	Completed          bool
	ProgressPercentage int
}

// UpdateProgress upserts the caller's row for a lesson. The second write to
// the same lesson replaces the first.
func (t *Tracker) UpdateProgress(ctx context.Context, userID string, u Update) (course.Progress, error) {
	if u.CourseID == "" || u.LessonID == "" {
		return course.Progress{}, fmt.Errorf("%w: courseId and lessonId are required", course.ErrInvalidInput)
	}
	if u.ProgressPercentage < 0 || u.ProgressPercentage > 100 {
		return course.Progress{}, fmt.Errorf("%w: progressPercentage must be between 0 and 100", course.ErrInvalidInput)
	}
	if _, err := OwnedCourse(ctx, t.store, userID, u.CourseID); err != nil {
		return course.Progress{}, err
	}
	lesson, err := t.store.GetLesson(ctx, u.LessonID)
	if err != nil {
		return course.Progress{}, err
	}
	if lesson.CourseID != u.CourseID {
		return course.Progress{}, fmt.Errorf("lesson %s: %w", u.LessonID, course.ErrNotFound)
	}

	p, err := t.store.UpsertProgress(ctx, course.Progress{
		UserID:             userID,
		CourseID:           u.CourseID,
		LessonID:           u.LessonID,
		Completed:          u.Completed,
		ProgressPercentage: u.ProgressPercentage,
	})
	if err != nil {
		return course.Progress{}, fmt.Errorf("update progress: %w", err)
	}

	events.Log(ctx, t.events, events.Event{
		UserID:    userID,
		EventType: events.ProgressUpdated,
		Data: map[string]any{
			"course_id": u.CourseID,
			"lesson_id": u.LessonID,
			"completed": u.Completed,
		},
	})
	return p, nil
}

// QuizSubmission is a learner's answers to a quiz. Score and Passed are the
// client's own figures. Both are required but only compared against the
// server grade.
type QuizSubmission struct {
	QuizID        string
	Answers       map[string]int
	Score         *int
	Passed        *bool
	AttemptNumber int
}

// SubmitQuiz grades the answers against the stored questions and appends an attempt.
func (t *Tracker) SubmitQuiz(ctx context.Context, userID string, sub QuizSubmission) (course.QuizAttempt, error) {
	if sub.QuizID == "" || sub.Answers == nil || sub.Score == nil || sub.Passed == nil {
		return course.QuizAttempt{}, fmt.Errorf("%w: quizId, answers, score and passed are required", course.ErrInvalidInput)
	}
	quiz, err := t.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return course.QuizAttempt{}, err
	}
	if _, err := OwnedCourse(ctx, t.store, userID, quiz.CourseID); err != nil {
		return course.QuizAttempt{}, err
	}

	score, passed := Grade(quiz.Questions, sub.Answers, quiz.PassingScore)
	if score != *sub.Score || passed != *sub.Passed {
		slog.Warn("client quiz score differs from server grade",
			"user_id", userID,
			"quiz_id", sub.QuizID,
			"client_score", *sub.Score,
			"score", score,
		)
	}

	attemptNumber := sub.AttemptNumber
	if attemptNumber <= 0 {
		attemptNumber = 1
	}

	attempt, err := t.store.InsertQuizAttempt(ctx, course.QuizAttempt{
		UserID:        userID,
		QuizID:        sub.QuizID,
		Score:         score,
		Answers:       sub.Answers,
		Passed:        passed,
		AttemptNumber: attemptNumber,
	})
	if err != nil {
		return course.QuizAttempt{}, fmt.Errorf("save quiz attempt: %w", err)
	}

	events.Log(ctx, t.events, events.Event{
		UserID:    userID,
		EventType: events.QuizSubmitted,
		Data: map[string]any{
			"quiz_id": sub.QuizID,
			"score":   score,
			"passed":  passed,
			"attempt": attemptNumber,
		},
	})
	return attempt, nil
}

// ExerciseSubmission is submitted work for an exercise or project.
type ExerciseSubmission struct {
	ExerciseID        string
	SubmissionContent string
	Completed         bool
}

// SubmitExercise appends a submission for an exercise in one of the caller's courses.
func (t *Tracker) SubmitExercise(ctx context.Context, userID string, sub ExerciseSubmission) (course.ExerciseSubmission, error) {
	if sub.ExerciseID == "" || sub.SubmissionContent == "" {
		return course.ExerciseSubmission{}, fmt.Errorf("%w: exerciseId and submissionContent are required", course.ErrInvalidInput)
	}
	exercise, err := t.store.GetExercise(ctx, sub.ExerciseID)
	if err != nil {
		return course.ExerciseSubmission{}, err
	}
	if _, err := OwnedCourse(ctx, t.store, userID, exercise.CourseID); err != nil {
		return course.ExerciseSubmission{}, err
	}

	saved, err := t.store.InsertExerciseSubmission(ctx, course.ExerciseSubmission{
		UserID:            userID,
		ExerciseID:        sub.ExerciseID,
		SubmissionContent: sub.SubmissionContent,
		Completed:         sub.Completed,
	})
	if err != nil {
		return course.ExerciseSubmission{}, fmt.Errorf("save exercise submission: %w", err)
	}

	events.Log(ctx, t.events, events.Event{
		UserID:    userID,
		EventType: events.ExerciseSubmitted,
		Data: map[string]any{
			"exercise_id": sub.ExerciseID,
			"completed":   sub.Completed,
		},
	})
	return saved, nil
}

// CourseProgress is the progress summary for one course.
type CourseProgress struct {
	CourseID           string            `json:"courseId"`
	TotalLessons       int               `json:"totalLessons"`
	CompletedLessons   int               `json:"completedLessons"`
	ProgressPercentage int               `json:"progressPercentage"`
	Progress           []course.Progress `json:"progress"`
}

// CourseProgress summarises the caller's progress on one of their courses.
func (t *Tracker) CourseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error) {
	if _, err := OwnedCourse(ctx, t.store, userID, courseID); err != nil {
		return CourseProgress{}, err
	}
	return t.courseProgress(ctx, userID, courseID)
}

func (t *Tracker) courseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error) {
	lessons, err := t.store.ListLessons(ctx, courseID)
	if err != nil {
		return CourseProgress{}, fmt.Errorf("list lessons: %w", err)
	}
	rows, err := t.store.ListProgress(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, fmt.Errorf("list progress: %w", err)
	}
	if rows == nil {
		rows = []course.Progress{}
	}
	return CourseProgress{
		CourseID:           courseID,
		TotalLessons:       len(lessons),
		CompletedLessons:   CompletedLessons(rows),
		ProgressPercentage: Completion(len(lessons), rows),
		Progress:           rows,
	}, nil
}

// CourseSummary is a course with the caller's completion figures.
type CourseSummary struct {
	course.Course
	TotalLessons       int   `json:"total_lessons"`
	CompletedLessons   int   `json:"completed_lessons"`
	ProgressPercentage int   `json:"progress_percentage"`
	State              State `json:"state"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Overview rolls up a learner's activity across all of their courses.
type Overview struct {
	Courses            []CourseSummary `json:"courses"`
	TotalLessons       int             `json:"total_lessons"`
	CompletedLessons   int             `json:"completed_lessons"`
	OverallProgress    int             `json:"overall_progress"`
	QuizzesTaken       int             `json:"quizzes_taken"`
	QuizzesPassed      int             `json:"quizzes_passed"`
	AverageQuizScore   int             `json:"average_quiz_score"`
	ExercisesSubmitted int             `json:"exercises_submitted"`
	ExercisesCompleted int             `json:"exercises_completed"`
	Certifications     int             `json:"certifications"`
	RecentActivity     []Activity      `json:"recent_activity"`
}

const recentActivityLimit = 10

// Overview computes the caller's progress across every course they own.
func (t *Tracker) Overview(ctx context.Context, userID string) (Overview, error) {
	summaries, err := t.Courses(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	attempts, err := t.store.ListQuizAttempts(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list quiz attempts: %w", err)
	}
	submissions, err := t.store.ListExerciseSubmissions(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list exercise submissions: %w", err)
	}
	certs, err := t.store.ListCertifications(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list certifications: %w", err)
	}
	rows, err := t.store.ListProgress(ctx, userID, "")
	if err != nil {
		return Overview{}, fmt.Errorf("list progress: %w", err)
	}

	o := Overview{
		Courses:            summaries,
		QuizzesTaken:       len(attempts),
		AverageQuizScore:   AverageScore(attempts),
		ExercisesSubmitted: len(submissions),
		Certifications:     len(certs),
	}
	for _, s := range summaries {
		o.TotalLessons += s.TotalLessons
		o.CompletedLessons += s.CompletedLessons
	}
	o.OverallProgress = percent(o.CompletedLessons, o.TotalLessons)
	for _, a := range attempts {
		if a.Passed {
			o.QuizzesPassed++
		}
	}
	for _, s := range submissions {
		if s.Completed {
			o.ExercisesCompleted++
		}
	}
	o.RecentActivity = recentActivity(rows, attempts)
	return o, nil
}

// Courses lists the caller's courses with per-course completion.
func (t *Tracker) Courses(ctx context.Context, userID string) ([]CourseSummary, error) {
	courses, err := t.store.ListCourses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	certs, err := t.store.ListCertifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	certified := make(map[string]bool, len(certs))
	for _, c := range certs {
		certified[c.CourseID] = true
	}

	summaries := make([]CourseSummary, 0, len(courses))
	for _, c := range courses {
		cp, err := t.courseProgress(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, CourseSummary{
			Course:             c,
			TotalLessons:       cp.TotalLessons,
			CompletedLessons:   cp.CompletedLessons,
			ProgressPercentage: cp.ProgressPercentage,
			State:              CourseState(cp.ProgressPercentage, cp.Progress, certified[c.ID]),
		})
	}
	return summaries, nil
}

func recentActivity(rows []course.Progress, attempts []course.QuizAttempt) []Activity {
	var out []Activity
	for _, r := range rows {
		if r.Completed {
			out = append(out, Activity{Type: "lesson", Date: r.LastAccessed, Description: "Completed a lesson"})
		}
	}
	for _, a := range attempts {
		verb := "attempted"
		if a.Passed {
			verb = "passed"
		}
		out = append(out, Activity{
			Type:        "quiz",
			Date:        a.CreatedAt,
			Description: fmt.Sprintf("Quiz %s (%d%%)", verb, a.Score),
		})
	}
	slices.SortStableFunc(out, func(a, b Activity) int { return b.Date.Compare(a.Date) })
	if len(out) > recentActivityLimit {
		out = out[:recentActivityLimit]
	}
	return out
}
