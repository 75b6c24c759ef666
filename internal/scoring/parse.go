package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/frymyresume/interviewd/internal/ai"
)

var (
	// ErrNoJSON is returned when the model output holds no JSON object.
	ErrNoJSON = errors.New("model output contains no JSON object")
	// ErrMissingOverallScore is returned when the JSON object lacks overall_score.
	ErrMissingOverallScore = errors.New("model output has no overall_score")
)

// defaultProfessionalism is assumed for answers the model did not rate.
const defaultProfessionalism = 5

// STAR holds the situation/task/action/result sub-scores of one answer.
type STAR struct {
	Situation int `json:"s"`
	Task      int `json:"t"`
	Action    int `json:"a"`
	Result    int `json:"r"`
}

// AnswerScore is the model's rubric for a single answer.
type AnswerScore struct {
	Index           int  `json:"answer_index"`
	STAR            STAR `json:"star"`
	Communication   int  `json:"communication"`
	Relevance       int  `json:"relevance"`
	Professionalism *int `json:"professionalism"`
	Score           int  `json:"score_0_100"`
}

// ModelScore is the structured reply of the scoring model.
type ModelScore struct {
	OverallScore *float64      `json:"overall_score"`
	Flags        ai.Flags      `json:"flags"`
	PerAnswer    []AnswerScore `json:"per_answer"`
}

// Overall returns overall_score rounded and clamped to 0..100.
func (m ModelScore) Overall() int {
	if m.OverallScore == nil {
		return 0
	}
	return clamp(int(*m.OverallScore + 0.5))
}

// MinProfessionalism returns the lowest per-answer professionalism rating.
func (m ModelScore) MinProfessionalism() int {
	lowest := defaultProfessionalism
	for _, answer := range m.PerAnswer {
		value := defaultProfessionalism
		if answer.Professionalism != nil {
			value = *answer.Professionalism
		}
		lowest = min(lowest, value)
	}
	return lowest
}

// ParseModelScore decodes the scoring model reply. It first tries the whole
// reply as JSON and then the outermost object embedded in surrounding text.
func ParseModelScore(raw string) (*ModelScore, error) {
	data, err := decodeObject(extractJSON(raw))
	if err != nil {
		return nil, err
	}

	if _, ok := data["overall_score"]; !ok {
		return nil, ErrMissingOverallScore
	}

	var score ModelScore
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &score,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode model score: %w", err)
	}
	if score.OverallScore == nil {
		return nil, ErrMissingOverallScore
	}

	return &score, nil
}

func decodeObject(text string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err == nil && data != nil {
		return data, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, ErrNoJSON
	}

	data = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil || data == nil {
		return nil, ErrNoJSON
	}
	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clamp(score int) int {
	return max(0, min(100, score))
}
