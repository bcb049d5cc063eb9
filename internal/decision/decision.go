// Package decision turns free-form model output into routing decisions.
//
// Parsing never fails. A structured JSON decision is preferred; when the
// text does not contain one, a keyword heuristic picks a stage so the
// workflow always has somewhere to go.
package decision

import (
	"encoding/json"
	"strings"

	"github.com/ShayCichocki/referee/pkg/models"
)

// Source tells how a Decision was obtained.
type Source int

const (
	// Structured means the text held a JSON object with a next_stage key.
	Structured Source = iota
	// Heuristic means the keyword fallback chose the stage.
	Heuristic
)

// String returns a human-readable representation of the source.
func (s Source) String() string {
	switch s {
	case Structured:
		return "structured"
	case Heuristic:
		return "heuristic"
	default:
		return "unknown"
	}
}

// DefaultPriority is used when the decision omits one.
const DefaultPriority = "medium"

// maxHeuristicReasoning bounds the reasoning kept from unstructured text.
const maxHeuristicReasoning = 200

// Decision is a routing decision.
type Decision struct {
	// Next is the stage to run. It may be an unknown kind when the model
	// names something outside the workflow; callers check Next.Valid().
	Next models.StageKind
	// Reasoning is the model's explanation.
	Reasoning string
	// Priority is high, medium or low.
	Priority string
	// Source records which parse tier produced the decision.
	Source Source
}

// rawDecision mirrors the JSON object the supervisor prompt asks for.
type rawDecision struct {
	Reasoning string `json:"reasoning"`
	NextStage string `json:"next_stage"`
	Priority  string `json:"priority"`
}

// Parse converts model output into a Decision.
func Parse(text string) Decision {
	if d, ok := parseStructured(text); ok {
		return d
	}
	return parseHeuristic(text)
}

// parseStructured reads the JSON object between the first '{' and the last '}'.
func parseStructured(text string) (Decision, bool) {
	body, ok := ExtractObject(text)
	if !ok {
		return Decision{}, false
	}

	// Decode twice: once to check the key exists, once into the typed struct.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return Decision{}, false
	}
	if _, ok := keys["next_stage"]; !ok {
		return Decision{}, false
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Decision{}, false
	}

	priority := strings.ToLower(strings.TrimSpace(raw.Priority))
	if priority == "" {
		priority = DefaultPriority
	}

	return Decision{
		Next:      models.ParseStageKind(raw.NextStage),
		Reasoning: strings.TrimSpace(raw.Reasoning),
		Priority:  priority,
		Source:    Structured,
	}, true
}

// parseHeuristic applies the ordered keyword rules.
func parseHeuristic(text string) Decision {
	lower := strings.ToLower(text)
	has := func(s string) bool { return strings.Contains(lower, s) }

	var next models.StageKind
	switch {
	case has("literature") && has("review"):
		next = models.StageLiterature
	case has("technical") && has("analy"):
		next = models.StageTechnical
	case has("critical") || has("review"):
		next = models.StageCritical
	case has("synthesis") || has("final"):
		next = models.StageSynthesis
	case has("finish") || has("complete"):
		next = models.StageFinish
	default:
		// Always make forward progress rather than stall.
		next = models.StageLiterature
	}

	return Decision{
		Next:      next,
		Reasoning: Clip(text, maxHeuristicReasoning),
		Priority:  DefaultPriority,
		Source:    Heuristic,
	}
}

// ExtractObject returns the substring from the first '{' to the last '}'.
func ExtractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// Clip truncates s to at most n runes.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
