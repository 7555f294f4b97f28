package gemini

import (
	"strings"

	"github.com/phrazzld/scry-import/internal/domain"
)

// promptData represents the data passed to the prompt template
type promptData struct {
	Filename string
	Kinds    []domain.ExerciseKind
	Scale    int
}

// ResponseSchema represents the expected JSON structure of an extraction.
type ResponseSchema struct {
	Title        string           `json:"title"`
	Instructions string           `json:"instructions,omitempty"`
	Kind         string           `json:"kind"`
	Subject      string           `json:"subject,omitempty"`
	Questions    []QuestionSchema `json:"questions"`
	Tags         []string         `json:"tags,omitempty"`
	// Box is [ymin, xmin, ymax, xmax] on a 0-1000 grid.
	Box []int `json:"box_2d,omitempty"`
}

// QuestionSchema represents a single question in the API response
type QuestionSchema struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// toExercise converts the response into a domain exercise. A box that does not
// have exactly four coordinates is ignored and the whole image is used.
func (r *ResponseSchema) toExercise() *domain.Exercise {
	ex := &domain.Exercise{
		Title:        strings.TrimSpace(r.Title),
		Instructions: strings.TrimSpace(r.Instructions),
		Kind:         domain.ExerciseKind(strings.ToLower(strings.TrimSpace(r.Kind))),
		Subject:      strings.TrimSpace(r.Subject),
		Tags:         r.Tags,
		Questions:    make([]domain.Question, 0, len(r.Questions)),
	}
	for _, q := range r.Questions {
		ex.Questions = append(ex.Questions, domain.Question{
			Prompt:  strings.TrimSpace(q.Prompt),
			Options: q.Options,
			Answer:  strings.TrimSpace(q.Answer),
		})
	}
	if len(r.Box) == 4 {
		ex.Region = &domain.Region{YMin: r.Box[0], XMin: r.Box[1], YMax: r.Box[2], XMax: r.Box[3]}
	}
	return ex
}
