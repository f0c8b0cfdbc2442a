package curriculum

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// maxReportedViolations caps how many schema errors end up in one message.
const maxReportedViolations = 3

//go:embed schema.json
var schemaJSON string

// ErrSchemaMismatch means the model output is not a usable curriculum.
var ErrSchemaMismatch = errors.New("curriculum does not match schema")

var courseSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// Schema returns the JSON Schema the model output must satisfy.
func Schema() string {
	return schemaJSON
}

// Parse decodes raw model output into a Course. It tolerates a Markdown code
// fence around the JSON and the "difficulty" alias for "difficultyLevel".
// Structural and semantic violations wrap ErrSchemaMismatch.
func Parse(raw string) (Course, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(stripFence(raw)), &doc); err != nil {
		return Course{}, fmt.Errorf("%w: output is not a JSON object: %v", ErrSchemaMismatch, err)
	}

	if _, ok := doc["difficultyLevel"]; !ok {
		if d, ok := doc["difficulty"]; ok {
			doc["difficultyLevel"] = d
			delete(doc, "difficulty")
		}
	}

	if err := Validate(doc); err != nil {
		return Course{}, err
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return Course{}, fmt.Errorf("re-encoding curriculum: %w", err)
	}
	var course Course
	if err := json.Unmarshal(normalized, &course); err != nil {
		return Course{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	if err := checkSemantics(course); err != nil {
		return Course{}, err
	}
	return course, nil
}

// Validate checks a decoded JSON document against the curriculum schema.
func Validate(doc any) error {
	schema, err := courseSchema()
	if err != nil {
		return fmt.Errorf("loading curriculum schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for i, e := range result.Errors() {
		if i == maxReportedViolations {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(result.Errors())-i))
			break
		}
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(msgs, "; "))
}

// checkSemantics rejects output that is well-formed but unusable: questions
// that cannot be answered and lessons without a positive duration.
func checkSemantics(c Course) error {
	for mi, m := range c.Modules {
		for li, l := range m.Lessons {
			path := fmt.Sprintf("modules[%d].lessons[%d]", mi, li)
			if l.EstimatedDuration <= 0 {
				return fmt.Errorf("%w: %s.estimatedDuration must be positive", ErrSchemaMismatch, path)
			}
			if err := checkQuestions(path+".quiz", l.Quiz.Questions); err != nil {
				return err
			}
		}
		if err := checkQuestions(fmt.Sprintf("modules[%d].moduleTest", mi), m.ModuleTest.Questions); err != nil {
			return err
		}
	}
	return nil
}

func checkQuestions(path string, questions []Question) error {
	for qi, q := range questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: %s.questions[%d] has %d options, need at least 2", ErrSchemaMismatch, path, qi, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("%w: %s.questions[%d].correctAnswer %d out of range [0,%d)", ErrSchemaMismatch, path, qi, q.CorrectAnswer, len(q.Options))
		}
	}
	return nil
}

// stripFence removes a surrounding ```json ... ``` block if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
