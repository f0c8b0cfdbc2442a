// Package curriculumtest builds valid curricula for tests.
package curriculumtest

import (
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
)

// Course returns a schema-valid course on title with the given number of
// modules and lessons per module. Each quiz has two questions whose correct
// answer is option 1.
func Course(title string, modules, lessons int) curriculum.Course {
	c := curriculum.Course{
		Title:           title,
		Description:     "A course about " + title,
		DifficultyLevel: "beginner",
	}
	for m := range modules {
		mod := curriculum.Module{
			Title:       fmt.Sprintf("Module %d", m+1),
			Description: fmt.Sprintf("Module %d of %s", m+1, title),
			ModuleTest: curriculum.Assessment{
				Title:     fmt.Sprintf("Module %d Test", m+1),
				Questions: Questions(2),
			},
			ModuleProject: curriculum.Project{
				Title:        fmt.Sprintf("Module %d Project", m+1),
				Description:  "Build something",
				Instructions: []string{"Plan", "Build"},
				Objectives:   []string{"Apply the module"},
			},
		}
		for l := range lessons {
			mod.Lessons = append(mod.Lessons, curriculum.Lesson{
				Title: fmt.Sprintf("Lesson %d.%d", m+1, l+1),
				Content: curriculum.LessonContent{Sections: []curriculum.Section{
					{Type: curriculum.SectionConcept, Title: "Idea", Content: "Explanation"},
					{Type: curriculum.SectionExample, Title: "Example", Content: "Walkthrough", CodeExample: "fmt.Println(1)"},
				}},
				EstimatedDuration: 45,
				Quiz: curriculum.Assessment{
					Title:     fmt.Sprintf("Quiz %d.%d", m+1, l+1),
					Questions: Questions(2),
				},
				Exercise: curriculum.Exercise{
					Title:        fmt.Sprintf("Exercise %d.%d", m+1, l+1),
					Description:  "Practice",
					Instructions: []string{"Do it"},
					StarterCode:  "// start here",
					Hints:        []string{"Think"},
				},
			})
		}
		c.Modules = append(c.Modules, mod)
	}
	return c
}

// Questions returns n questions with three options each, answer index 1.
func Questions(n int) []curriculum.Question {
	qs := make([]curriculum.Question, n)
	for i := range qs {
		qs[i] = curriculum.Question{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: 1,
			Explanation:   "B is right",
		}
	}
	return qs
}

// JSON encodes c the way a model would return it.
func JSON(c curriculum.Course) string {
	b, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	return string(b)
}
