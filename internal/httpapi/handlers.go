package httpapi

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-course-creator/internal/auth"
	"github.com/p-n-ai/pai-course-creator/internal/certificate"
	"github.com/p-n-ai/pai-course-creator/internal/progress"
	"github.com/p-n-ai/pai-course-creator/internal/report"
)

type generateCourseRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleGenerateCourse(w http.ResponseWriter, r *http.Request) {
	var req generateCourseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	courseID, generated, err := s.courses.GenerateCourse(r.Context(), auth.UserID(r.Context()), req.Topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"courseId": courseID,
		"course":   generated,
	})
}

type certificateRequest struct {
	CourseID             string `json:"courseId"`
	CompletionPercentage *int   `json:"completionPercentage"`
	FinalScore           *int   `json:"finalScore"`
}

func (s *Server) handleGenerateCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireID("courseId", req.CourseID); err != nil {
		writeError(w, r, err)
		return
	}

	cert, err := s.issuer.Issue(r.Context(), auth.UserID(r.Context()), certificate.Request{
		CourseID:             req.CourseID,
		CompletionPercentage: req.CompletionPercentage,
		FinalScore:           req.FinalScore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "certification": cert})
}

type exerciseRequest struct {
	ExerciseID        string `json:"exerciseId"`
	SubmissionContent string `json:"submissionContent"`
	Completed         bool   `json:"completed"`
}

func (s *Server) handleSubmitExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireID("exerciseId", req.ExerciseID); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := s.tracker.SubmitExercise(r.Context(), auth.UserID(r.Context()), progress.ExerciseSubmission{
		ExerciseID:        req.ExerciseID,
		SubmissionContent: req.SubmissionContent,
		Completed:         req.Completed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "submission": sub})
}

type quizRequest struct {
	QuizID        string         `json:"quizId"`
	Answers       map[string]int `json:"answers"`
	Score         *int           `json:"score"`
	Passed        *bool          `json:"passed"`
	AttemptNumber int            `json:"attemptNumber"`
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireID("quizId", req.QuizID); err != nil {
		writeError(w, r, err)
		return
	}

	attempt, err := s.tracker.SubmitQuiz(r.Context(), auth.UserID(r.Context()), progress.QuizSubmission{
		QuizID:        req.QuizID,
		Answers:       req.Answers,
		Score:         req.Score,
		Passed:        req.Passed,
		AttemptNumber: req.AttemptNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "attempt": attempt})
}

type progressRequest struct {
	CourseID           string `json:"courseId"`
	LessonID           string `json:"lessonId"`
	Completed          bool   `json:"completed"`
	ProgressPercentage int    `json:"progressPercentage"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireID("courseId", req.CourseID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireID("lessonId", req.LessonID); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.tracker.UpdateProgress(r.Context(), auth.UserID(r.Context()), progress.Update{
		CourseID:           req.CourseID,
		LessonID:           req.LessonID,
		Completed:          req.Completed,
		ProgressPercentage: req.ProgressPercentage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "progress": p})
}

func (s *Server) handleCourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseId")
	if err := requireID("courseId", courseID); err != nil {
		writeError(w, r, err)
		return
	}
	cp, err := s.tracker.CourseProgress(r.Context(), auth.UserID(r.Context()), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.tracker.Overview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	o, err := s.tracker.Overview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, o, now); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.tracker.Dashboard(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseId")
	if err := requireID("courseId", courseID); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.tracker.CourseDetail(r.Context(), auth.UserID(r.Context()), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleSignOut revokes the caller's token if it is still valid, clears the
// session cookie and sends the browser to the login page.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := s.verifier.TokenFromRequest(r)
	if claims, err := s.verifier.Verify(r.Context(), token); err == nil {
		if err := s.verifier.SignOut(r.Context(), claims, token); err != nil {
			slog.Warn("failed to revoke token on sign-out", "user_id", claims.Subject, "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.verifier.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.loginURL, http.StatusSeeOther)
}

