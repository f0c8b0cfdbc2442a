package certificate_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/certificate"
	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum/curriculumtest"
	"github.com/p-n-ai/pai-course-creator/internal/events"
)

func TestNumber(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	got, err := certificate.Number(now, bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}))
	if err != nil {
		t.Fatalf("Number() error = %v", err)
	}
	if want := "CERT-1718000000123-DEADBEEF"; got != want {
		t.Errorf("Number() = %q, want %q", got, want)
	}
	if !certificate.NumberPattern.MatchString(got) {
		t.Errorf("%q does not match %s", got, certificate.NumberPattern)
	}
}

func TestNumber_Random(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		n, err := certificate.Number(time.Now(), rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		if !certificate.NumberPattern.MatchString(n) {
			t.Fatalf("%q does not match pattern", n)
		}
		seen[n] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct numbers out of 50", len(seen))
	}
}

func TestNumber_ShortRead(t *testing.T) {
	if _, err := certificate.Number(time.Now(), strings.NewReader("ab")); err == nil {
		t.Error("Number() should fail when randomness runs out")
	}
}

type fixture struct {
	store    *course.MemoryStore
	events   *events.MemoryLogger
	issuer   *certificate.Issuer
	courseID string
	lessons  []course.Lesson
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := course.NewMemoryStore()
	logger := events.NewMemoryLogger()

	id, err := course.Persist(ctx, store, "user-1", "Go", curriculumtest.Course("Go", 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	lessons, err := store.ListLessons(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		store:    store,
		events:   logger,
		issuer:   certificate.NewIssuer(certificate.IssuerConfig{Store: store, Events: logger}),
		courseID: id,
		lessons:  lessons,
	}
}

func (f *fixture) completeAll(t *testing.T) {
	t.Helper()
	for _, l := range f.lessons {
		if _, err := f.store.UpsertProgress(context.Background(), course.Progress{
			UserID: "user-1", CourseID: f.courseID, LessonID: l.ID, Completed: true, ProgressPercentage: 100,
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) attempt(t *testing.T, score int) {
	t.Helper()
	quizzes, err := f.store.ListQuizzes(context.Background(), f.courseID)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range quizzes {
		if q.Scope.Kind != course.ScopeLesson {
			continue
		}
		if _, err := f.store.InsertQuizAttempt(context.Background(), course.QuizAttempt{
			UserID: "user-1", QuizID: q.ID, Score: score, Passed: score >= 70, AttemptNumber: 1,
		}); err != nil {
			t.Fatal(err)
		}
		return
	}
}

func TestIssuer_Issue(t *testing.T) {
	f := newFixture(t)
	f.completeAll(t)
	f.attempt(t, 80)
	f.attempt(t, 90)

	claimed := 12
	cert, err := f.issuer.Issue(context.Background(), "user-1", certificate.Request{
		CourseID:             f.courseID,
		CompletionPercentage: &claimed,
		FinalScore:           &claimed,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if cert.CompletionPercentage != 100 || cert.FinalScore != 85 {
		t.Errorf("cert = %d%%/%d, want recomputed 100%%/85", cert.CompletionPercentage, cert.FinalScore)
	}
	if !certificate.NumberPattern.MatchString(cert.CertificateNumber) {
		t.Errorf("CertificateNumber = %q does not match pattern", cert.CertificateNumber)
	}
	if len(f.events.OfType(events.CertificateIssued)) != 1 {
		t.Error("certificate_issued event not logged")
	}

	_, err = f.issuer.Issue(context.Background(), "user-1", certificate.Request{CourseID: f.courseID})
	if !errors.Is(err, course.ErrAlreadyCertified) {
		t.Errorf("second Issue() error = %v, want ErrAlreadyCertified", err)
	}
}

func TestIssuer_Issue_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		userID string
		req    certificate.Request
		want   error
	}{
		{"missing course id", "user-1", certificate.Request{}, course.ErrInvalidInput},
		{"unknown course", "user-1", certificate.Request{CourseID: "nope"}, course.ErrNotFound},
		{"someone else's course", "user-2", certificate.Request{CourseID: f.courseID}, course.ErrNotFound},
		{"incomplete", "user-1", certificate.Request{CourseID: f.courseID}, course.ErrCourseIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.issuer.Issue(context.Background(), tt.userID, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Issue() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIssuer_Issue_PartialProgress(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.UpsertProgress(context.Background(), course.Progress{
		UserID: "user-1", CourseID: f.courseID, LessonID: f.lessons[0].ID, Completed: true,
	}); err != nil {
		t.Fatal(err)
	}

	hundred := 100
	_, err := f.issuer.Issue(context.Background(), "user-1", certificate.Request{
		CourseID:             f.courseID,
		CompletionPercentage: &hundred,
	})
	if !errors.Is(err, course.ErrCourseIncomplete) {
		t.Errorf("Issue() error = %v, want ErrCourseIncomplete despite client claim", err)
	}
}

func TestIssuer_Issue_NoAttempts(t *testing.T) {
	f := newFixture(t)
	f.completeAll(t)

	cert, err := f.issuer.Issue(context.Background(), "user-1", certificate.Request{CourseID: f.courseID})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if cert.FinalScore != 0 {
		t.Errorf("FinalScore = %d, want 0 without attempts", cert.FinalScore)
	}
}
