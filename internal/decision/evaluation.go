package decision

import (
	"encoding/json"
	"strings"

	"github.com/ShayCichocki/referee/pkg/models"
)

// Quality is a grade the critical reviewer assigns to an analysis.
type Quality string

const (
	QualityExcellent        Quality = "EXCELLENT"
	QualityGood             Quality = "GOOD"
	QualityAcceptable       Quality = "ACCEPTABLE"
	QualityNeedsImprovement Quality = "NEEDS_IMPROVEMENT"
)

// Valid returns true if the grade is a known value.
func (q Quality) Valid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityAcceptable, QualityNeedsImprovement:
		return true
	default:
		return false
	}
}

// Evaluation is the structured verdict of the critical reviewer.
type Evaluation struct {
	LiteratureQuality    Quality  `json:"literature_quality"`
	LiteratureAssessment string   `json:"literature_assessment"`
	TechnicalQuality     Quality  `json:"technical_quality"`
	TechnicalAssessment  string   `json:"technical_assessment"`
	Reasoning            string   `json:"reasoning"`
	NeedsRerun           []string `json:"needs_rerun"`

	// Raw is the JSON object the evaluation was decoded from.
	Raw string `json:"-"`
}

// ParseEvaluation decodes the critical reviewer's JSON verdict.
// The second return value is false when the text holds no usable object.
func ParseEvaluation(text string) (Evaluation, bool) {
	body, ok := ExtractObject(text)
	if !ok {
		return Evaluation{}, false
	}
	body = stripLineComments(body)

	var ev Evaluation
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return Evaluation{}, false
	}
	ev.LiteratureQuality = Quality(strings.ToUpper(strings.TrimSpace(string(ev.LiteratureQuality))))
	ev.TechnicalQuality = Quality(strings.ToUpper(strings.TrimSpace(string(ev.TechnicalQuality))))
	ev.Raw = body
	return ev, true
}

// RerunRequests splits needs_rerun into accepted stages (deduplicated, in
// canonical order) and rejected names.
func (e Evaluation) RerunRequests() (accepted []models.StageKind, rejected []string) {
	seen := make(map[models.StageKind]bool)
	for _, name := range e.NeedsRerun {
		kind := models.ParseStageKind(name)
		if !kind.Rerunnable() {
			rejected = append(rejected, name)
			continue
		}
		seen[kind] = true
	}
	for _, kind := range models.CanonicalOrder {
		if seen[kind] {
			accepted = append(accepted, kind)
		}
	}
	return accepted, rejected
}

// stripLineComments drops `//` comments that sit outside JSON strings.
// Models copy them from the example format in the prompt.
func stripLineComments(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
