package curriculum

// Course is a generated curriculum as emitted by the language model.
type Course struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DifficultyLevel string   `json:"difficultyLevel"`
	Modules         []Module `json:"modules"`
}

// Module groups lessons and closes with a test and a project.
type Module struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Lessons       []Lesson   `json:"lessons"`
	ModuleTest    Assessment `json:"moduleTest"`
	ModuleProject Project    `json:"moduleProject"`
}

// Lesson is one unit of instruction with its own quiz and exercise.
type Lesson struct {
	Title             string        `json:"title"`
	Content           LessonContent `json:"content"`
	EstimatedDuration float64       `json:"estimatedDuration"`
	Quiz              Assessment    `json:"quiz"`
	Exercise          Exercise      `json:"exercise"`
}

// LessonContent is stored verbatim as the lesson body.
type LessonContent struct {
	Sections []Section `json:"sections"`
}

// Section types.
const (
	SectionConcept  = "concept"
	SectionExample  = "example"
	SectionExercise = "exercise"
	SectionSummary  = "summary"
)

// Section is a titled block of lesson content.
type Section struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	CodeExample string `json:"codeExample,omitempty"`
}

// Assessment is a lesson quiz or a module test.
type Assessment struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Question is a multiple-choice question. CorrectAnswer indexes Options.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Exercise is a hands-on lesson task.
type Exercise struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions []string `json:"instructions"`
	StarterCode  string   `json:"starterCode,omitempty"`
	Hints        []string `json:"hints"`
}

// Project is the portfolio project closing a module.
type Project struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions []string `json:"instructions"`
	Objectives   []string `json:"objectives"`
}

// LessonCount returns the total number of lessons across all modules.
func (c Course) LessonCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}
