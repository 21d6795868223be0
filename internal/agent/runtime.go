package agent

import (
	"context"

	ctxstore "github.com/dexterhq/dexter/internal/context"
	"github.com/dexterhq/dexter/internal/memory"
	"github.com/dexterhq/dexter/internal/sessions"
	"github.com/dexterhq/dexter/pkg/models"
)

// Runtime wires a concrete Driver from RuntimeOptions plus the persistence
// trio (C1/C2/C3), and owns the tool registry callers populate via
// RegisterTool before the first Process call. It deliberately does not
// import any concrete tool package: tool construction (files, exec, web
// search, browser, skills) belongs to the process entry point (C15), which
// sits above both agent and the tool packages in the import graph.
type Runtime struct {
	driver *Driver
	tools  *ToolRegistry
}

// NewRuntime constructs a Runtime. sessionStore, toolCtxStore, and
// memoryStore may be nil, in which case the corresponding persistence is
// skipped (history is not loaded/saved, tool-context pointers are not
// written, memory is neither searched nor updated).
func NewRuntime(
	opts RuntimeOptions,
	sessionStore sessions.Store,
	toolCtxStore *ctxstore.Store,
	memoryStore memory.Store,
	sink EventSink,
) *Runtime {
	opts = sanitizeRuntimeOptions(opts)

	tools := NewToolRegistry()
	execConfig := DefaultToolExecConfig()
	if opts.ToolTimeout > 0 {
		execConfig.PerToolTimeout = opts.ToolTimeout
	}
	if opts.ToolMaxAttempts > 0 {
		execConfig.MaxAttempts = opts.ToolMaxAttempts
	}
	if opts.ToolRetryBackoff > 0 {
		execConfig.RetryBackoff = opts.ToolRetryBackoff
	}
	executor := NewToolExecutor(tools, execConfig)

	if sink == nil {
		sink = NopSink{}
	}

	driver := NewDriver(
		opts.Model, opts.FastModel, tools, executor,
		sessionStore, toolCtxStore, memoryStore,
		sink, opts.Logger,
		DriverConfig{
			MaxIterations:     opts.MaxIterations,
			ScratchpadDir:     opts.ScratchpadDir,
			MemorySearchLimit: opts.MemorySearchLimit,
		},
	)

	return &Runtime{driver: driver, tools: tools}
}

// RegisterTool adds a tool to the runtime's registry. Call this for every
// built-in and skill-provided tool before the first Process call.
func (r *Runtime) RegisterTool(tool Tool) {
	r.tools.Register(tool)
}

// Tools exposes the registry so callers can inspect it (e.g. Len, AsTools)
// without reaching into the driver.
func (r *Runtime) Tools() *ToolRegistry {
	return r.tools
}

// Process runs one query through the iteration driver. See Driver.Run.
func (r *Runtime) Process(ctx context.Context, query, sessionKey string) (<-chan models.AgentEvent, <-chan error) {
	return r.driver.Run(ctx, query, sessionKey)
}
