// Package report renders learner progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-course-creator/internal/progress"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	CoursesSheet = "Courses"
)

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var courseHeader = []any{"Course", "Topic", "Difficulty", "Lessons", "Completed", "Progress %", "State", "Created"}

// WriteProgress writes a two-sheet workbook: overall figures and one row per course.
func WriteProgress(w io.Writer, o progress.Overview, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CoursesSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	summary := [][]any{
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
		{"Courses", len(o.Courses)},
		{"Lessons completed", fmt.Sprintf("%d of %d", o.CompletedLessons, o.TotalLessons)},
		{"Overall progress %", o.OverallProgress},
		{"Quizzes passed", fmt.Sprintf("%d of %d", o.QuizzesPassed, o.QuizzesTaken)},
		{"Average quiz score", o.AverageQuizScore},
		{"Exercises completed", fmt.Sprintf("%d of %d", o.ExercisesCompleted, o.ExercisesSubmitted)},
		{"Certifications", o.Certifications},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 24); err != nil {
		return fmt.Errorf("size summary: %w", err)
	}

	if err := setRow(f, CoursesSheet, 1, courseHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(CoursesSheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, c := range o.Courses {
		row := []any{
			c.Title,
			c.Topic,
			label(c.DifficultyLevel),
			c.TotalLessons,
			c.CompletedLessons,
			c.ProgressPercentage,
			label(string(c.State)),
			c.CreatedAt.UTC().Format(time.DateOnly),
		}
		if err := setRow(f, CoursesSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(CoursesSheet, "A", "B", 36); err != nil {
		return fmt.Errorf("size courses: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName names the download for a date.
func FileName(generatedAt time.Time) string {
	return "progress-" + generatedAt.UTC().Format(time.DateOnly) + ".xlsx"
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// label turns a stored value like "in_progress" into "In Progress".
func label(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
