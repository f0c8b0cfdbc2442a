// Package httpapi exposes the course creator over JSON HTTP endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/auth"
	"github.com/p-n-ai/pai-course-creator/internal/certificate"
	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/platform/metrics"
	"github.com/p-n-ai/pai-course-creator/internal/progress"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Config wires the handlers to their services.
type Config struct {
	Courses  *course.Service
	Tracker  *progress.Tracker
	Issuer   *certificate.Issuer
	Verifier *auth.Verifier
	// LoginURL is where sign-out redirects.
	LoginURL string
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check
	Now    func() time.Time
}

// Server holds handler dependencies.
type Server struct {
	courses  *course.Service
	tracker  *progress.Tracker
	issuer   *certificate.Issuer
	verifier *auth.Verifier
	loginURL string
	checks   map[string]Check
	now      func() time.Time
}

// New builds the HTTP handler with every route and middleware attached.
func New(cfg Config) http.Handler {
	s := &Server{
		courses:  cfg.Courses,
		tracker:  cfg.Tracker,
		issuer:   cfg.Issuer,
		verifier: cfg.Verifier,
		loginURL: cfg.LoginURL,
		checks:   cfg.Checks,
		now:      cfg.Now,
	}
	if s.loginURL == "" {
		s.loginURL = "/login"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return instrument(s.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/generate-course", s.requireAuth(s.handleGenerateCourse))
	mux.Handle("POST /api/certification/generate", s.requireAuth(s.handleGenerateCertificate))
	mux.Handle("POST /api/exercise/submit", s.requireAuth(s.handleSubmitExercise))
	mux.Handle("POST /api/quiz/submit", s.requireAuth(s.handleSubmitQuiz))
	mux.Handle("POST /api/progress/update", s.requireAuth(s.handleUpdateProgress))
	mux.Handle("GET /api/progress", s.requireAuth(s.handleOverview))
	mux.Handle("GET /api/progress/export", s.requireAuth(s.handleExportProgress))
	mux.Handle("GET /api/progress/{courseId}", s.requireAuth(s.handleCourseProgress))
	mux.Handle("GET /api/dashboard", s.requireAuth(s.handleDashboard))
	mux.Handle("GET /api/courses/{courseId}", s.requireAuth(s.handleCourseDetail))
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
