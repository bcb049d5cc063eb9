package orchestrator

import (
	"context"

	"github.com/ShayCichocki/referee/internal/agent"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/pkg/models"
)

// RevisionRecorder stores each state the engine produces.
type RevisionRecorder interface {
	Record(stage models.StageKind, s models.SharedState) error
}

// StepHook is called after every stage with the state it returned.
// It may block, e.g. to wait for the user in step mode.
type StepHook func(ctx context.Context, stage models.StageKind, s models.SharedState)

// Option configures an Engine or RunWorkflow. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional configuration.
type engineOptions struct {
	emitter  *EventEmitter
	recorder RevisionRecorder
	logger   *DebugLogger
	stepHook StepHook

	// Only used by RunWorkflow.
	generator llm.TextGenerator
	prompts   agent.PromptRenderer
	initial   *models.SharedState
}

func applyOptions(opts []Option) *engineOptions {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	return o
}

// WithEmitter sets the emitter that receives workflow events.
func WithEmitter(e *EventEmitter) Option {
	return func(o *engineOptions) { o.emitter = e }
}

// WithRecorder sets where state revisions are stored.
func WithRecorder(r RevisionRecorder) Option {
	return func(o *engineOptions) { o.recorder = r }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithStepHook sets a function called after every stage.
func WithStepHook(h StepHook) Option {
	return func(o *engineOptions) { o.stepHook = h }
}

// WithGenerator makes RunWorkflow use gen instead of building a backend from config.
func WithGenerator(gen llm.TextGenerator) Option {
	return func(o *engineOptions) { o.generator = gen }
}

// WithPromptRenderer makes RunWorkflow use r instead of the configured templates.
func WithPromptRenderer(r agent.PromptRenderer) Option {
	return func(o *engineOptions) { o.prompts = r }
}

// WithInitialState makes RunWorkflow continue from s instead of a fresh state.
func WithInitialState(s models.SharedState) Option {
	return func(o *engineOptions) { o.initial = &s }
}
