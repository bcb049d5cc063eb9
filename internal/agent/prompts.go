package agent

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/referee/internal/decision"
	"github.com/ShayCichocki/referee/pkg/models"
)

// PromptRenderer builds the system and user prompt for a stage from the current state.
type PromptRenderer interface {
	Render(kind models.StageKind, state models.SharedState) (system, user string, err error)
}

// supervisorHistoryWindow is how many recent history entries the supervisor sees.
const supervisorHistoryWindow = 6

// PromptTemplate is a pair of text/template sources for one stage.
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// PromptOverrides is the on-disk format of a prompt override file.
//
//	prompts:
//	  literature_reviewer:
//	    system: "..."
//	    user: "..."
type PromptOverrides struct {
	Prompts map[string]PromptTemplate `yaml:"prompts"`
}

// PromptData is the value every prompt template is executed against.
type PromptData struct {
	Input      string
	Literature string
	Technical  string
	Critical   string
	Evaluation string
	Final      string
	History    []models.HistoryEntry
	Iteration  int
}

type compiledPrompt struct {
	system *template.Template
	user   *template.Template
}

// TemplateRenderer renders prompts from text/template sources.
type TemplateRenderer struct {
	prompts map[models.StageKind]compiledPrompt
}

var templateFuncs = template.FuncMap{
	"clip":   clipWithEllipsis,
	"status": completeOrPending,
}

// clipWithEllipsis shortens s to n runes and marks the cut.
func clipWithEllipsis(n int, s string) string {
	clipped := decision.Clip(s, n)
	if clipped != s {
		return clipped + "..."
	}
	return s
}

func completeOrPending(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Pending"
	}
	return "Complete"
}

// NewTemplateRenderer compiles the default prompts, replacing any stage named in overrides.
// Override keys accept the same aliases as ParseStageKind.
func NewTemplateRenderer(overrides map[string]PromptTemplate) (*TemplateRenderer, error) {
	sources := DefaultPrompts()
	for name, tmpl := range overrides {
		kind := models.ParseStageKind(name)
		if !kind.Valid() || kind == models.StageFinish {
			return nil, fmt.Errorf("prompt override for unknown stage %q", name)
		}
		merged := sources[kind]
		if strings.TrimSpace(tmpl.System) != "" {
			merged.System = tmpl.System
		}
		if strings.TrimSpace(tmpl.User) != "" {
			merged.User = tmpl.User
		}
		sources[kind] = merged
	}

	r := &TemplateRenderer{prompts: make(map[models.StageKind]compiledPrompt, len(sources))}
	for kind, src := range sources {
		sys, err := template.New(string(kind) + ".system").Funcs(templateFuncs).Parse(src.System)
		if err != nil {
			return nil, fmt.Errorf("parse %s system prompt: %w", kind, err)
		}
		usr, err := template.New(string(kind) + ".user").Funcs(templateFuncs).Parse(src.User)
		if err != nil {
			return nil, fmt.Errorf("parse %s user prompt: %w", kind, err)
		}
		r.prompts[kind] = compiledPrompt{system: sys, user: usr}
	}
	return r, nil
}

// LoadPromptOverrides reads a YAML prompt override file.
func LoadPromptOverrides(path string) (map[string]PromptTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt overrides: %w", err)
	}
	var file PromptOverrides
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt overrides %s: %w", path, err)
	}
	return file.Prompts, nil
}

// MarshalPromptOverrides renders the default prompts as an override file template.
func MarshalPromptOverrides() ([]byte, error) {
	file := PromptOverrides{Prompts: make(map[string]PromptTemplate)}
	for kind, tmpl := range DefaultPrompts() {
		file.Prompts[string(kind)] = tmpl
	}
	return yaml.Marshal(file)
}

// Render executes the templates for kind against state.
func (r *TemplateRenderer) Render(kind models.StageKind, state models.SharedState) (string, string, error) {
	p, ok := r.prompts[kind]
	if !ok {
		return "", "", fmt.Errorf("no prompt for stage %q", kind)
	}

	data := PromptData{
		Input:      state.Input,
		Literature: state.Result(models.SlotLiterature),
		Technical:  state.Result(models.SlotTechnical),
		Critical:   state.Result(models.SlotCritical),
		Evaluation: state.Result(models.SlotEvaluation),
		Final:      state.Result(models.SlotFinal),
		History:    state.RecentHistory(supervisorHistoryWindow),
		Iteration:  state.Iteration,
	}

	var sys, usr bytes.Buffer
	if err := p.system.Execute(&sys, data); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", kind, err)
	}
	if err := p.user.Execute(&usr, data); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", kind, err)
	}
	return sys.String(), usr.String(), nil
}

// DefaultPrompts returns the built-in prompt sources for every stage.
func DefaultPrompts() map[models.StageKind]PromptTemplate {
	return map[models.StageKind]PromptTemplate{
		models.StageSupervisor: {
			System: SupervisorPrompt,
			User:   "Analyze the current state and decide the next stage to execute. Provide your response in the JSON format specified.",
		},
		models.StageLiterature: {
			System: LiteraturePrompt,
			User:   "Provide your literature review analysis following the specified format.",
		},
		models.StageTechnical: {
			System: TechnicalPrompt,
			User:   "Provide your technical analysis following the specified format.",
		},
		models.StageCritical: {
			System: CriticalPrompt,
			User:   "Provide your critical review following the specified format. Consider both literature and technical perspectives.",
		},
		models.StageSynthesis: {
			System: SynthesisPrompt,
			User:   "Synthesize all analyses into the final review report following the specified format.",
		},
	}
}

// SupervisorPrompt drives the routing decision.
const SupervisorPrompt = `You are the Supervisor in a multi-stage research paper review workflow.

ROLE: You coordinate the workflow by:
1. Analyzing the current state of the review
2. Deciding which specialized stage should run next
3. Determining when the review is complete

AVAILABLE STAGES:
- literature_reviewer: identifies related work and research context
- technical_analyzer: evaluates methodology and technical soundness (needs the literature review)
- critical_reviewer: grades both analyses and may request reruns
- synthesis: combines all findings into the final report
- FINISH: end the workflow

CURRENT STATE:
Paper Abstract: {{clip 400 .Input}}

Previous Actions:
{{if .History}}{{range .History}}- {{.Actor}}: {{.Action}} | {{clip 80 .Summary}}
{{end}}{{else}}No previous actions yet.
{{end}}
Progress (iteration {{.Iteration}}):
- Literature Review: {{status .Literature}}
- Technical Analysis: {{status .Technical}}
- Critical Review: {{status .Critical}}
- Final Report: {{status .Final}}

GUIDELINES:
- If the literature review is pending: route to literature_reviewer
- If the technical analysis is pending and the literature review is complete: route to technical_analyzer
- If both analyses are complete but the critical review is pending: route to critical_reviewer
- If the critical review is complete and the final report is pending: route to synthesis
- If everything is complete: route to FINISH
- Never skip the critical_reviewer step

OUTPUT FORMAT (JSON):
{
    "reasoning": "Your step-by-step thought process (2-3 sentences)",
    "next_stage": "literature_reviewer|technical_analyzer|critical_reviewer|synthesis|FINISH",
    "priority": "high|medium|low"
}
`

// LiteraturePrompt asks for the research context of the input.
const LiteraturePrompt = `You are the Literature Reviewer in a multi-stage research paper review workflow.

ROLE: Understand the research context:
1. Extract key concepts and terminology
2. Identify the research domain and relevant subfields
3. Note related work areas and methodologies mentioned
4. Assess what makes this work novel

Analyze this research paper abstract:

{{.Input}}

OUTPUT FORMAT:

KEY CONCEPTS:
[Main concepts, methods, or techniques]

RESEARCH CONTEXT:
[Primary field and related areas]

RELATED WORK NOTES:
[Prior work or comparisons mentioned]

NOVELTY ASSESSMENT:
[What gap or improvement this work addresses]

RECOMMENDATION FOR TECHNICAL ANALYSIS:
[What technical aspects should be examined closely]

Keep your analysis under 400 words. Be specific and analytical.
`

// TechnicalPrompt asks for a methodology assessment.
const TechnicalPrompt = `You are the Technical Analyzer in a multi-stage research paper review workflow.

ROLE: Evaluate the research methodology:
1. Assess the technical approach described
2. Evaluate the soundness of the methodology
3. Identify technical strengths
4. Note technical details that need clarification

Analyze this research paper abstract:

{{.Input}}

CONTEXT FROM LITERATURE REVIEW:
{{clip 300 .Literature}}

OUTPUT FORMAT:

METHODOLOGY OVERVIEW:
[Summary of the technical approach]

TECHNICAL STRENGTHS:
[What is technically sound or innovative]

METHODOLOGY ASSESSMENT:
[Is the approach appropriate for the problem?]

TECHNICAL CONCERNS:
[Methodological gaps or unclear aspects]

RECOMMENDATION FOR CRITICAL REVIEW:
[What should be examined critically]

Keep your analysis under 400 words. Be technically precise.
`

// CriticalPrompt asks for graded assessments and rerun requests as JSON.
const CriticalPrompt = `You are the Critical Reviewer in a multi-stage research paper review workflow.

ROLE: You are the quality gate. Grade the literature review and the technical analysis,
then decide whether either must be run again before synthesis.

RERUN RULES:
- Request "literature_reviewer" if coverage is incomplete, key related work is missing, or novelty is not established.
- Request "technical_analyzer" if the methodology evaluation is shallow or key technical issues were missed.
- Request none if both analyses are thorough enough for synthesis.
- Only request reruns for genuine quality issues, not minor improvements.

PAPER ABSTRACT:
{{clip 500 .Input}}

LITERATURE REVIEW:
{{clip 400 .Literature}}

TECHNICAL ANALYSIS:
{{clip 400 .Technical}}

OUTPUT FORMAT (ONLY JSON, NO EXTRA TEXT):
{
    "literature_quality": "EXCELLENT|GOOD|ACCEPTABLE|NEEDS_IMPROVEMENT",
    "literature_assessment": "1-2 sentence assessment of the literature review",
    "technical_quality": "EXCELLENT|GOOD|ACCEPTABLE|NEEDS_IMPROVEMENT",
    "technical_assessment": "1-2 sentence assessment of the technical analysis",
    "reasoning": "Explanation of the grades and the rerun decision",
    "needs_rerun": []
}

"needs_rerun" must be empty or contain "literature_reviewer" and/or "technical_analyzer".
`

// SynthesisPrompt asks for the final report.
const SynthesisPrompt = `You are the Synthesis stage in a multi-stage research paper review workflow.

ROLE: Integrate every previous analysis into one coherent, balanced review report.

PAPER ABSTRACT:
{{.Input}}

LITERATURE REVIEW:
{{.Literature}}

TECHNICAL ANALYSIS:
{{.Technical}}

CRITICAL REVIEW:
{{.Critical}}

OUTPUT FORMAT:

--- RESEARCH PAPER REVIEW REPORT ---

EXECUTIVE SUMMARY:
[2-3 sentence overview of the work and key verdict]

STRENGTHS:
[Major positive aspects]

TECHNICAL ASSESSMENT:
[Methodology evaluation and soundness]

LIMITATIONS AND CONCERNS:
[Critical issues and weaknesses]

RECOMMENDATIONS:
[Specific suggestions for improvement]

OVERALL VERDICT:
[Strong Accept / Accept / Revise / Reject with reasoning]

CONFIDENCE LEVEL:
[High/Medium/Low and why]

Keep the report under 600 words. Be professional and balanced.
`
