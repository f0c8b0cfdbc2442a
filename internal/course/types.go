// Package course stores generated courses and the learner activity recorded
// against them.
package course

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
)

// Fixed values applied to every generated course.
const (
	DefaultDurationWeeks = 8
	DefaultPassingScore  = 70
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCertified is returned when the user already holds a certificate for the course.
	ErrAlreadyCertified = errors.New("certificate already exists for this course")
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCourseIncomplete is returned when a certificate is requested before every lesson is complete.
	ErrCourseIncomplete = errors.New("course is not complete")
)

// ScopeKind tells whether a quiz or exercise belongs to a lesson or a module.
type ScopeKind string

const (
	ScopeLesson ScopeKind = "lesson"
	ScopeModule ScopeKind = "module"
)

// Scope owns a quiz or exercise. Lesson-scoped rows are lesson quizzes and
// exercises; module-scoped rows are module tests and projects.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

// LessonScope scopes a row to a lesson.
func LessonScope(lessonID string) Scope { return Scope{Kind: ScopeLesson, ID: lessonID} }

// ModuleScope scopes a row to a module.
func ModuleScope(moduleID string) Scope { return Scope{Kind: ScopeModule, ID: moduleID} }

// Valid reports whether the scope names exactly one owner.
func (s Scope) Valid() bool {
	return s.ID != "" && (s.Kind == ScopeLesson || s.Kind == ScopeModule)
}

// Course is a persisted course header.
type Course struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Topic           string    `json:"topic"`
	DurationWeeks   int       `json:"duration_weeks"`
	DifficultyLevel string    `json:"difficulty_level"`
	CreatedAt       time.Time `json:"created_at"`
}

// Module is an ordered section of a course.
type Module struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lesson is an ordered unit inside a module. CourseID is resolved through the
// module on reads.
type Lesson struct {
	ID                       string                   `json:"id"`
	ModuleID                 string                   `json:"module_id"`
	CourseID                 string                   `json:"course_id,omitempty"`
	Title                    string                   `json:"title"`
	Content                  curriculum.LessonContent `json:"content"`
	OrderIndex               int                      `json:"order_index"`
	EstimatedDurationMinutes int                      `json:"estimated_duration_minutes"`
	CreatedAt                time.Time                `json:"created_at"`
}

// Quiz is a lesson quiz or a module test.
type Quiz struct {
	ID           string                `json:"id"`
	Scope        Scope                 `json:"scope"`
	CourseID     string                `json:"course_id,omitempty"`
	Title        string                `json:"title"`
	Questions    []curriculum.Question `json:"questions"`
	PassingScore int                   `json:"passing_score"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Exercise is a lesson exercise or a module project. Instructions holds the
// full generated object.
type Exercise struct {
	ID               string          `json:"id"`
	Scope            Scope           `json:"scope"`
	CourseID         string          `json:"course_id,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Instructions     json.RawMessage `json:"instructions"`
	SolutionTemplate *string         `json:"solution_template"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Progress is one learner's state on one lesson.
type Progress struct {
	UserID             string    `json:"user_id"`
	CourseID           string    `json:"course_id"`
	LessonID           string    `json:"lesson_id"`
	Completed          bool      `json:"completed"`
	ProgressPercentage int       `json:"progress_percentage"`
	LastAccessed       time.Time `json:"last_accessed"`
}

// QuizAttempt is an append-only record of one quiz submission. Answers maps
// question index to chosen option index.
type QuizAttempt struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	QuizID        string         `json:"quiz_id"`
	Score         int            `json:"score"`
	Answers       map[string]int `json:"answers"`
	Passed        bool           `json:"passed"`
	AttemptNumber int            `json:"attempt_number"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ExerciseSubmission is an append-only record of submitted exercise work.
type ExerciseSubmission struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ExerciseID        string    `json:"exercise_id"`
	SubmissionContent string    `json:"submission_content"`
	Completed         bool      `json:"completed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Certification records a completed course. At most one per user and course.
type Certification struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	CourseID             string    `json:"course_id"`
	CertificateNumber    string    `json:"certificate_number"`
	CompletionPercentage int       `json:"completion_percentage"`
	FinalScore           int       `json:"final_score"`
	IssuedAt             time.Time `json:"issued_at"`
}

// Profile holds display details for a user.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
