package curriculum

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-course-creator/internal/ai"
)

const systemPrompt = `You are an expert curriculum designer who writes certification courses.
Respond with a single JSON object and nothing else. The object must satisfy this JSON Schema:

%s`

// BuildMessages renders the generation prompt for topic.
func BuildMessages(bp Blueprint, topic string) []ai.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a comprehensive, %s certification course on %q.\n\n", audienceLevel(bp), topic)
	fmt.Fprintf(&b, "This is a %d-week intensive program designed to take students from foundational knowledge to career-ready skills.\n\n", bp.DurationWeeks)

	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Create %d modules (%s per module)\n", bp.Modules, weeksPerModule(bp))
	fmt.Fprintf(&b, "- Each module should have %s detailed lessons\n", lessonRange(bp.LessonsPerModule))
	b.WriteString("- Each lesson must include:\n")
	for _, req := range bp.LessonRequirements {
		fmt.Fprintf(&b, "  * %s\n", req)
	}
	fmt.Fprintf(&b, "- Each lesson must have a quiz with %d questions to test understanding\n", bp.QuizQuestions)
	b.WriteString("- Each lesson must have a hands-on exercise with clear instructions\n")
	fmt.Fprintf(&b, "- Each module must have a comprehensive test (%d questions)\n", bp.ModuleTestQuestions)
	b.WriteString("- Each module must have a portfolio project that integrates all lesson exercises\n")
	b.WriteString("- Every question needs at least two options; correctAnswer is the zero-based index of the right option\n")
	b.WriteString("- estimatedDuration is the lesson length in minutes\n")

	if bp.Focus != "" {
		b.WriteString("\n")
		b.WriteString(bp.Focus)
		b.WriteString("\n")
	}
	if notes, ok := bp.GuideFor(topic); ok {
		b.WriteString("\nTopic guidance:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}

	return []ai.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, Schema())},
		{Role: "user", Content: b.String()},
	}
}

func audienceLevel(bp Blueprint) string {
	if bp.Level == "" {
		return "college-level"
	}
	return bp.Level
}

func weeksPerModule(bp Blueprint) string {
	if bp.DurationWeeks%bp.Modules != 0 {
		return fmt.Sprintf("about %d weeks", bp.DurationWeeks/bp.Modules)
	}
	if w := bp.DurationWeeks / bp.Modules; w != 1 {
		return fmt.Sprintf("%d weeks", w)
	}
	return "1 week"
}

func lessonRange(r Range) string {
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
