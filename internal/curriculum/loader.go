package curriculum

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed blueprint.yaml
var defaultBlueprint []byte

// Blueprint fixes the shape of every generated course.
type Blueprint struct {
	DurationWeeks       int      `yaml:"duration_weeks"`
	Modules             int      `yaml:"modules"`
	LessonsPerModule    Range    `yaml:"lessons_per_module"`
	QuizQuestions       int      `yaml:"quiz_questions"`
	ModuleTestQuestions int      `yaml:"module_test_questions"`
	PassingScore        int      `yaml:"passing_score"`
	Level               string   `yaml:"level"`
	LessonRequirements  []string `yaml:"lesson_requirements"`
	Focus               string   `yaml:"focus"`
	Guides              []Guide  `yaml:"guides"`
}

// Range is an inclusive integer range.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Guide adds topic-specific notes to the prompt.
type Guide struct {
	Topic string `yaml:"topic"`
	Notes string `yaml:"notes"`
}

// DefaultBlueprint returns the embedded blueprint.
func DefaultBlueprint() Blueprint {
	bp, err := parseBlueprint(defaultBlueprint)
	if err != nil {
		panic(fmt.Sprintf("embedded blueprint is invalid: %v", err))
	}
	return bp
}

// LoadBlueprint reads a blueprint from path, or returns the embedded one when
// path is empty.
func LoadBlueprint(path string) (Blueprint, error) {
	if path == "" {
		return DefaultBlueprint(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Blueprint{}, fmt.Errorf("reading blueprint: %w", err)
	}
	bp, err := parseBlueprint(data)
	if err != nil {
		return Blueprint{}, fmt.Errorf("loading blueprint %s: %w", path, err)
	}

	slog.Info("curriculum blueprint loaded", "path", path, "guides", len(bp.Guides))
	return bp, nil
}

func parseBlueprint(data []byte) (Blueprint, error) {
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, fmt.Errorf("parsing blueprint YAML: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return Blueprint{}, err
	}
	return bp, nil
}

// Validate checks that the blueprint describes a buildable course.
func (bp Blueprint) Validate() error {
	switch {
	case bp.DurationWeeks <= 0:
		return fmt.Errorf("duration_weeks must be positive")
	case bp.Modules <= 0:
		return fmt.Errorf("modules must be positive")
	case bp.LessonsPerModule.Min <= 0 || bp.LessonsPerModule.Max < bp.LessonsPerModule.Min:
		return fmt.Errorf("lessons_per_module must satisfy 0 < min <= max")
	case bp.QuizQuestions <= 0 || bp.ModuleTestQuestions <= 0:
		return fmt.Errorf("question counts must be positive")
	case bp.PassingScore < 0 || bp.PassingScore > 100:
		return fmt.Errorf("passing_score must be within 0..100")
	}
	return nil
}

// GuideFor returns the notes for topic, if any guide matches it.
func (bp Blueprint) GuideFor(topic string) (string, bool) {
	key := foldTopic(topic)
	for _, g := range bp.Guides {
		if foldTopic(g.Topic) == key {
			return g.Notes, true
		}
	}
	return "", false
}

// NormalizeTopic trims the topic and converts it to Unicode NFC so that
// visually identical input is stored identically.
func NormalizeTopic(topic string) string {
	return strings.TrimSpace(norm.NFC.String(topic))
}

func foldTopic(topic string) string {
	return cases.Fold().String(strings.Join(strings.Fields(NormalizeTopic(topic)), " "))
}
