package grading

import "github.com/google/generative-ai-go/genai"

// ResponseSchema is the fixed reply contract sent with every grading call.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"grade":         {Type: genai.TypeString, Description: "The letter grade (e.g., A*, A, B, C, D, E, F)"},
			"totalMarks":    {Type: genai.TypeNumber, Description: "Total marks available for the assessment"},
			"marksObtained": {Type: genai.TypeNumber, Description: "Total marks obtained by the student"},
			"feedback":      {Type: genai.TypeString, Description: "Overall feedback on the student's performance"},
			"questions": {
				Type:        genai.TypeArray,
				Description: "Breakdown of each question with marks",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question":       {Type: genai.TypeString, Description: "The question identifier (e.g., 'Q3 (b)')"},
						"marksAvailable": {Type: genai.TypeNumber, Description: "Marks available for this question"},
						"marksAwarded":   {Type: genai.TypeNumber, Description: "Marks awarded to the student for this question"},
						"explanation":    {Type: genai.TypeString, Description: "Explanation of the answer, any mistakes, or why marks were given/deducted"},
					},
					Required: []string{"question", "marksAvailable", "marksAwarded", "explanation"},
				},
			},
			"tips": {
				Type:        genai.TypeArray,
				Description: "Tips for improving performance",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"grade", "totalMarks", "marksObtained", "feedback", "questions", "tips"},
	}
}
