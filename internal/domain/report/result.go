package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// GradingResult is the structured reply the grading model must produce.
type GradingResult struct {
	Grade         string              `json:"grade"`
	TotalMarks    float64             `json:"totalMarks"`
	MarksObtained float64             `json:"marksObtained"`
	Feedback      string              `json:"feedback"`
	Questions     []QuestionBreakdown `json:"questions"`
	Tips          []string            `json:"tips"`
}

type QuestionBreakdown struct {
	Question       string  `json:"question"`
	MarksAvailable float64 `json:"marksAvailable"`
	MarksAwarded   float64 `json:"marksAwarded"`
	Explanation    string  `json:"explanation"`
}

var ErrResultSchema = errors.New("grading result does not match schema")

var requiredResultKeys = []string{"grade", "totalMarks", "marksObtained", "feedback", "questions", "tips"}

var requiredQuestionKeys = []string{"question", "marksAvailable", "marksAwarded", "explanation"}

// DecodeGradingResult parses raw model output: every schema key is required
// and numbers must be finite and non-negative. Keys outside the schema are
// dropped, so they never reach the stored result.
func DecodeGradingResult(raw []byte) (*GradingResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrResultSchema)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultSchema, err)
	}
	if err := requireKeys(keys, requiredResultKeys, ""); err != nil {
		return nil, err
	}
	var questions []map[string]json.RawMessage
	if err := json.Unmarshal(keys["questions"], &questions); err != nil {
		return nil, fmt.Errorf("%w: questions: %v", ErrResultSchema, err)
	}
	for i, q := range questions {
		if err := requireKeys(q, requiredQuestionKeys, fmt.Sprintf("questions[%d].", i)); err != nil {
			return nil, err
		}
	}

	var out GradingResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultSchema, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func requireKeys(obj map[string]json.RawMessage, keys []string, prefix string) error {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || strings.TrimSpace(string(v)) == "null" {
			return fmt.Errorf("%w: missing %s%s", ErrResultSchema, prefix, k)
		}
	}
	return nil
}

// Validate checks numeric ranges and array presence. Grade and feedback are
// free text; an empty string is a valid value.
func (g *GradingResult) Validate() error {
	if err := checkMark("totalMarks", g.TotalMarks); err != nil {
		return err
	}
	if err := checkMark("marksObtained", g.MarksObtained); err != nil {
		return err
	}
	if g.Questions == nil {
		return fmt.Errorf("%w: questions must be an array", ErrResultSchema)
	}
	if g.Tips == nil {
		return fmt.Errorf("%w: tips must be an array", ErrResultSchema)
	}
	for i, q := range g.Questions {
		if err := checkMark(fmt.Sprintf("questions[%d].marksAvailable", i), q.MarksAvailable); err != nil {
			return err
		}
		if err := checkMark(fmt.Sprintf("questions[%d].marksAwarded", i), q.MarksAwarded); err != nil {
			return err
		}
	}
	return nil
}

func checkMark(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrResultSchema, field)
	}
	return nil
}
