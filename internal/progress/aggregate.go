// Package progress tracks learner activity on generated courses and rolls it
// up into completion and score figures.
package progress

import (
	"math"
	"strconv"

	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
)

// Completion returns the share of lessons completed as a whole percentage.
// Each lesson counts once no matter how many rows mention it.
func Completion(totalLessons int, rows []course.Progress) int {
	if totalLessons <= 0 {
		return 0
	}
	return percent(CompletedLessons(rows), totalLessons)
}

// CompletedLessons counts distinct completed lessons.
func CompletedLessons(rows []course.Progress) int {
	done := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Completed {
			done[r.LessonID] = true
		}
	}
	return len(done)
}

// AverageScore returns the rounded mean score, or 0 when there are no attempts.
func AverageScore(attempts []course.QuizAttempt) int {
	if len(attempts) == 0 {
		return 0
	}
	var sum int
	for _, a := range attempts {
		sum += a.Score
	}
	return int(math.Round(float64(sum) / float64(len(attempts))))
}

// Grade scores answers against the stored questions. Answers are keyed by
// question index; missing or out-of-range answers count as wrong.
func Grade(questions []curriculum.Question, answers map[string]int, passingScore int) (score int, passed bool) {
	if len(questions) == 0 {
		return 0, false
	}
	var correct int
	for i, q := range questions {
		if got, ok := answers[strconv.Itoa(i)]; ok && got == q.CorrectAnswer {
			correct++
		}
	}
	score = int(math.Round(100 * float64(correct) / float64(len(questions))))
	return score, score >= passingScore
}

// State is the derived lifecycle of a course for one learner.
type State string

const (
	StateCreated    State = "created"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
	StateCertified  State = "certified"
)

// CourseState derives the lifecycle state from what has been recorded. A
// course is in progress once any lesson is completed; rows that only track
// partial progress leave it in StateCreated.
func CourseState(completion int, rows []course.Progress, certified bool) State {
	switch {
	case certified:
		return StateCertified
	case completion >= 100:
		return StateComplete
	case CompletedLessons(rows) > 0:
		return StateInProgress
	default:
		return StateCreated
	}
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return clamp(int(math.Round(100*float64(part)/float64(total))), 0, 100)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
