// Package certificate issues course completion certificates. Completion and
// final score are always recomputed from stored activity.
package certificate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/events"
	"github.com/p-n-ai/pai-course-creator/internal/platform/metrics"
	"github.com/p-n-ai/pai-course-creator/internal/progress"
)

// NumberPattern matches every issued certificate number.
var NumberPattern = regexp.MustCompile(`^CERT-\d+-[0-9A-F]{8}$`)

// Store is the subset of course.Store the issuer reads and writes.
type Store interface {
	GetCourse(ctx context.Context, courseID string) (course.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]course.Lesson, error)
	ListProgress(ctx context.Context, userID, courseID string) ([]course.Progress, error)
	ListLessonQuizAttempts(ctx context.Context, userID, courseID string) ([]course.QuizAttempt, error)
	GetCertification(ctx context.Context, userID, courseID string) (course.Certification, error)
	InsertCertification(ctx context.Context, c course.Certification) (course.Certification, error)
}

// IssuerConfig holds dependencies for an Issuer. Now and Random default to
// the wall clock and crypto/rand.
type IssuerConfig struct {
	Store  Store
	Events events.Logger
	Now    func() time.Time
	Random io.Reader
}

// Issuer issues certificates.
type Issuer struct {
	store  Store
	events events.Logger
	now    func() time.Time
	random io.Reader
}

// NewIssuer creates an Issuer.
func NewIssuer(cfg IssuerConfig) *Issuer {
	i := &Issuer{
		store:  cfg.Store,
		events: cfg.Events,
		now:    cfg.Now,
		random: cfg.Random,
	}
	if i.events == nil {
		i.events = events.NopLogger{}
	}
	if i.now == nil {
		i.now = time.Now
	}
	if i.random == nil {
		i.random = rand.Reader
	}
	return i
}

// Request asks for a certificate. The percentages are what the client
// believes; they are logged when they disagree and never stored.
type Request struct {
	CourseID             string
	CompletionPercentage *int
	FinalScore           *int
}

// Issue certifies userID for a course they own once every lesson is complete.
func (i *Issuer) Issue(ctx context.Context, userID string, req Request) (course.Certification, error) {
	if req.CourseID == "" {
		return course.Certification{}, fmt.Errorf("%w: courseId is required", course.ErrInvalidInput)
	}
	if _, err := progress.OwnedCourse(ctx, i.store, userID, req.CourseID); err != nil {
		return course.Certification{}, err
	}

	_, err := i.store.GetCertification(ctx, userID, req.CourseID)
	switch {
	case err == nil:
		return course.Certification{}, course.ErrAlreadyCertified
	case !errors.Is(err, course.ErrNotFound):
		return course.Certification{}, fmt.Errorf("check existing certificate: %w", err)
	}

	lessons, err := i.store.ListLessons(ctx, req.CourseID)
	if err != nil {
		return course.Certification{}, fmt.Errorf("list lessons: %w", err)
	}
	rows, err := i.store.ListProgress(ctx, userID, req.CourseID)
	if err != nil {
		return course.Certification{}, fmt.Errorf("list progress: %w", err)
	}
	completion := progress.Completion(len(lessons), rows)
	if completion < 100 {
		return course.Certification{}, fmt.Errorf("%w: %d%% of lessons completed", course.ErrCourseIncomplete, completion)
	}

	attempts, err := i.store.ListLessonQuizAttempts(ctx, userID, req.CourseID)
	if err != nil {
		return course.Certification{}, fmt.Errorf("list quiz attempts: %w", err)
	}
	score := progress.AverageScore(attempts)

	if differs(req.CompletionPercentage, completion) || differs(req.FinalScore, score) {
		slog.Warn("client certificate figures differ from recorded activity",
			"user_id", userID,
			"course_id", req.CourseID,
			"completion", completion,
			"final_score", score,
		)
	}

	now := i.now()
	number, err := Number(now, i.random)
	if err != nil {
		return course.Certification{}, err
	}

	cert, err := i.store.InsertCertification(ctx, course.Certification{
		UserID:               userID,
		CourseID:             req.CourseID,
		CertificateNumber:    number,
		CompletionPercentage: completion,
		FinalScore:           score,
		IssuedAt:             now,
	})
	if err != nil {
		if errors.Is(err, course.ErrAlreadyCertified) {
			return course.Certification{}, err
		}
		return course.Certification{}, fmt.Errorf("save certificate: %w", err)
	}

	metrics.CertificatesIssued.Inc()
	events.Log(ctx, i.events, events.Event{
		UserID:    userID,
		EventType: events.CertificateIssued,
		Data: map[string]any{
			"course_id":          req.CourseID,
			"certificate_number": number,
			"final_score":        score,
		},
	})
	slog.Info("certificate issued", "user_id", userID, "course_id", req.CourseID, "number", number)
	return cert, nil
}

// Number formats a certificate number from a timestamp and four random bytes.
func Number(now time.Time, random io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(random, b[:]); err != nil {
		return "", fmt.Errorf("generate certificate number: %w", err)
	}
	return fmt.Sprintf("CERT-%d-%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}

func differs(claimed *int, actual int) bool {
	return claimed != nil && *claimed != actual
}
