package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Exercise-specific validation errors
var (
	// ErrExerciseTitleEmpty is returned when an exercise has no title.
	ErrExerciseTitleEmpty = errors.New("exercise title cannot be empty")

	// ErrExerciseNoQuestions is returned when an exercise carries no questions.
	ErrExerciseNoQuestions = errors.New("exercise must contain at least one question")

	// ErrQuestionPromptEmpty is returned when a question has an empty prompt.
	ErrQuestionPromptEmpty = errors.New("question prompt cannot be empty")
)

// ExerciseKind identifies the interaction style of an exercise.
type ExerciseKind string

const (
	KindMultipleChoice ExerciseKind = "multiple_choice"
	KindFillBlank      ExerciseKind = "fill_blank"
	KindShortAnswer    ExerciseKind = "short_answer"
	KindMatching       ExerciseKind = "matching"
	KindOpen           ExerciseKind = "open"
)

// ExerciseKinds lists every supported kind in a stable order.
var ExerciseKinds = []ExerciseKind{
	KindMultipleChoice,
	KindFillBlank,
	KindShortAnswer,
	KindMatching,
	KindOpen,
}

// Valid reports whether k is one of the supported kinds.
func (k ExerciseKind) Valid() bool {
	for _, known := range ExerciseKinds {
		if k == known {
			return true
		}
	}
	return false
}

// RegionScale is the upper bound of the normalised coordinate grid used for regions.
const RegionScale = 1000

// Region is a bounding box on a 0..RegionScale grid, independent of the source
// image resolution. YMin/XMin are the top-left corner.
type Region struct {
	YMin int `json:"ymin"`
	XMin int `json:"xmin"`
	YMax int `json:"ymax"`
	XMax int `json:"xmax"`
}

// Validate checks that the region lies on the grid and has a positive area.
func (r Region) Validate() error {
	for _, v := range []int{r.YMin, r.XMin, r.YMax, r.XMax} {
		if v < 0 || v > RegionScale {
			return fmt.Errorf("%w: coordinate %d outside 0-%d", ErrInvalidRegion, v, RegionScale)
		}
	}
	if r.YMax <= r.YMin || r.XMax <= r.XMin {
		return fmt.Errorf("%w: empty area", ErrInvalidRegion)
	}
	return nil
}

// Question is a single prompt inside an exercise.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// Exercise is the structured representation extracted from one submitted image.
type Exercise struct {
	Title        string       `json:"title"`
	Instructions string       `json:"instructions,omitempty"`
	Kind         ExerciseKind `json:"kind"`
	Subject      string       `json:"subject,omitempty"`
	Questions    []Question   `json:"questions"`
	Tags         []string     `json:"tags,omitempty"`
	// Region locates the exercise on the source image; nil means the whole image.
	Region *Region `json:"region,omitempty"`
}

// Validate checks if the Exercise has valid data.
// Returns an error if any field fails validation.
func (e *Exercise) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrExerciseTitleEmpty
	}

	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExerciseKind, e.Kind)
	}

	if len(e.Questions) == 0 {
		return ErrExerciseNoQuestions
	}

	for i, q := range e.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %d", ErrQuestionPromptEmpty, i)
		}
	}

	if e.Region != nil {
		if err := e.Region.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Clone returns a deep copy of the exercise.
func (e *Exercise) Clone() *Exercise {
	if e == nil {
		return nil
	}
	c := *e
	c.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	c.Tags = append([]string(nil), e.Tags...)
	if e.Region != nil {
		r := *e.Region
		c.Region = &r
	}
	return &c
}

// Result is what a successful analysis yields for one queue item: the structured
// exercise plus a reference to the rendered media that accompanies it.
type Result struct {
	Exercise *Exercise `json:"exercise"`
	MediaRef string    `json:"media_ref"`
}

// Complete reports whether the result carries both an exercise and a media reference.
func (r *Result) Complete() bool {
	return r != nil && r.Exercise != nil && r.MediaRef != ""
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	return &Result{Exercise: r.Exercise.Clone(), MediaRef: r.MediaRef}
}
