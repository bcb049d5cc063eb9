package models

import "strings"

// StageKind identifies a node in the review workflow.
type StageKind string

const (
	// StageSupervisor is the coordinator that decides which stage runs next.
	StageSupervisor StageKind = "supervisor"
	// StageLiterature extracts research context and related work.
	StageLiterature StageKind = "literature_reviewer"
	// StageTechnical evaluates the methodology.
	StageTechnical StageKind = "technical_analyzer"
	// StageCritical assesses the quality of the earlier analyses and may request reruns.
	StageCritical StageKind = "critical_reviewer"
	// StageSynthesis writes the final report.
	StageSynthesis StageKind = "synthesis"
	// StageFinish is the terminal routing token.
	StageFinish StageKind = "FINISH"
)

// CanonicalOrder is the order workers run in when nothing else intervenes.
var CanonicalOrder = []StageKind{StageLiterature, StageTechnical, StageCritical, StageSynthesis}

// Valid returns true if the kind is a known value.
func (k StageKind) Valid() bool {
	switch k {
	case StageSupervisor, StageLiterature, StageTechnical, StageCritical, StageSynthesis, StageFinish:
		return true
	default:
		return false
	}
}

// IsWorker returns true for the four analysis stages.
func (k StageKind) IsWorker() bool {
	switch k {
	case StageLiterature, StageTechnical, StageCritical, StageSynthesis:
		return true
	default:
		return false
	}
}

// Rerunnable returns true for stages the critical reviewer may send back.
func (k StageKind) Rerunnable() bool {
	return k == StageLiterature || k == StageTechnical
}

// DisplayName returns a human-readable stage name.
func (k StageKind) DisplayName() string {
	switch k {
	case StageSupervisor:
		return "Supervisor"
	case StageLiterature:
		return "Literature Reviewer"
	case StageTechnical:
		return "Technical Analyzer"
	case StageCritical:
		return "Critical Reviewer"
	case StageSynthesis:
		return "Synthesis Agent"
	case StageFinish:
		return "Finish"
	default:
		return string(k)
	}
}

// stageAliases maps loose spellings seen in model output to stage kinds.
var stageAliases = map[string]StageKind{
	"supervisor":          StageSupervisor,
	"coordinator":         StageSupervisor,
	"literature":          StageLiterature,
	"literature_review":   StageLiterature,
	"literature_reviewer": StageLiterature,
	"technical":           StageTechnical,
	"technical_analysis":  StageTechnical,
	"technical_analyzer":  StageTechnical,
	"critical":            StageCritical,
	"critic":              StageCritical,
	"critical_review":     StageCritical,
	"critical_reviewer":   StageCritical,
	"evaluation":          StageCritical,
	"synthesis":           StageSynthesis,
	"synthesizer":         StageSynthesis,
	"final":               StageSynthesis,
	"finish":              StageFinish,
	"end":                 StageFinish,
	"done":                StageFinish,
	"complete":            StageFinish,
	"terminal":            StageFinish,
}

// ParseStageKind normalizes a stage name. Unknown names are returned as-is,
// so callers can detect them with Valid.
func ParseStageKind(s string) StageKind {
	trimmed := strings.Trim(strings.TrimSpace(s), `"'`)
	key := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(trimmed, " ", "_"), "-", "_"))
	if kind, ok := stageAliases[key]; ok {
		return kind
	}
	return StageKind(trimmed)
}

// ResultSlot names a slot in SharedState.Results.
type ResultSlot string

const (
	SlotLiterature ResultSlot = "literature"
	SlotTechnical  ResultSlot = "technical"
	SlotCritical   ResultSlot = "critical"
	SlotEvaluation ResultSlot = "evaluation"
	SlotFinal      ResultSlot = "final"
)

// AllSlots lists every result slot in display order.
var AllSlots = []ResultSlot{SlotLiterature, SlotTechnical, SlotCritical, SlotEvaluation, SlotFinal}

// SlotFor returns the result slot a worker writes to.
func SlotFor(kind StageKind) (ResultSlot, bool) {
	switch kind {
	case StageLiterature:
		return SlotLiterature, true
	case StageTechnical:
		return SlotTechnical, true
	case StageCritical:
		return SlotCritical, true
	case StageSynthesis:
		return SlotFinal, true
	default:
		return "", false
	}
}

// Requires returns the result slots a worker needs before it can run.
func Requires(kind StageKind) []ResultSlot {
	switch kind {
	case StageTechnical:
		return []ResultSlot{SlotLiterature}
	case StageCritical:
		return []ResultSlot{SlotLiterature, SlotTechnical}
	case StageSynthesis:
		return []ResultSlot{SlotLiterature, SlotTechnical, SlotCritical}
	default:
		return nil
	}
}

// StageForSlot is the inverse of SlotFor for the four worker slots.
func StageForSlot(slot ResultSlot) (StageKind, bool) {
	switch slot {
	case SlotLiterature:
		return StageLiterature, true
	case SlotTechnical:
		return StageTechnical, true
	case SlotCritical:
		return StageCritical, true
	case SlotFinal:
		return StageSynthesis, true
	default:
		return "", false
	}
}
