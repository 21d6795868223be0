package agent

import (
	"time"

	"github.com/dexterhq/dexter/internal/observability"
)

// RuntimeOptions configures NewRuntime. Only Model is required; everything
// else has a sane default, following the teacher's sanitize-then-construct
// pattern (see sanitizeDriverConfig).
type RuntimeOptions struct {
	// Model is the default Model capability (C11). Required.
	Model ModelCapability

	// FastModel serves per-result summaries and context selection; defaults
	// to Model when unset.
	FastModel ModelCapability

	// ScratchpadDir, when non-empty, gives each run's scratchpad a journal
	// file at ScratchpadDir/<query_id>.jsonl.
	ScratchpadDir string

	// MaxIterations bounds the reasoning loop per run.
	MaxIterations int

	// MemorySearchLimit caps how many memory snippets are loaded per run.
	MemorySearchLimit int

	// ToolTimeout, ToolMaxAttempts, ToolRetryBackoff configure the tool
	// executor (C5's sequential timeout/retry wrapper).
	ToolTimeout     time.Duration
	ToolMaxAttempts int
	ToolRetryBackoff time.Duration

	Logger *observability.Logger
}

func sanitizeRuntimeOptions(opts RuntimeOptions) RuntimeOptions {
	if opts.FastModel == nil {
		opts.FastModel = opts.Model
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.MemorySearchLimit <= 0 {
		opts.MemorySearchLimit = defaultMemorySearchLimit
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return opts
}
