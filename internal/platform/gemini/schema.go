package gemini

import (
	"github.com/phrazzld/scry-import/internal/domain"
	"google.golang.org/genai"
)

// responseSchema describes ResponseSchema to the model so that it answers
// with parseable JSON.
func responseSchema() *genai.Schema {
	kinds := make([]string, len(domain.ExerciseKinds))
	for i, k := range domain.ExerciseKinds {
		kinds[i] = string(k)
	}

	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":        str("Short title of the exercise"),
			"instructions": str("Instructions given to the student"),
			"kind": {
				Type: genai.TypeString,
				Enum: kinds,
			},
			"subject": str("School subject"),
			"questions": {
				Type:     genai.TypeArray,
				MinItems: genai.Ptr[int64](1),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"prompt":  str("The question as shown"),
						"options": {Type: genai.TypeArray, Items: str("")},
						"answer":  str("The printed answer, if any"),
					},
					Required: []string{"prompt"},
				},
			},
			"tags": {Type: genai.TypeArray, Items: str("")},
			"box_2d": {
				Type:        genai.TypeArray,
				Description: "Bounding box [ymin, xmin, ymax, xmax] normalised to 0-1000",
				Items:       &genai.Schema{Type: genai.TypeInteger},
				MinItems:    genai.Ptr[int64](4),
				MaxItems:    genai.Ptr[int64](4),
			},
		},
		Required:         []string{"title", "kind", "questions"},
		PropertyOrdering: []string{"title", "instructions", "kind", "subject", "questions", "tags", "box_2d"},
	}
}
