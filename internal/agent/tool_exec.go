package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ToolExecConfig configures tool execution timeouts and retry behaviour.
// Dispatch is always sequential: one tool call runs to completion before
// the next begins, matching the reason/act loop's single-decision-per-step
// contract.
type ToolExecConfig struct {
	// PerToolTimeout bounds a single execution attempt. Default: 30s.
	PerToolTimeout time.Duration

	// MaxAttempts is the number of attempts per tool call. Default: 1
	// (no retry).
	MaxAttempts int

	// RetryBackoff waits between attempts when MaxAttempts > 1.
	RetryBackoff time.Duration
}

// DefaultToolExecConfig returns sensible defaults: a single attempt with a
// 30 second timeout and no retry.
func DefaultToolExecConfig() ToolExecConfig {
	return ToolExecConfig{
		PerToolTimeout: 30 * time.Second,
		MaxAttempts:    1,
	}
}

// ToolExecutor runs one tool call at a time against a ToolRegistry,
// enforcing a per-call timeout and an optional retry policy.
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
}

// NewToolExecutor creates an executor over registry. Zero-valued config
// fields fall back to DefaultToolExecConfig.
func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &ToolExecutor{registry: registry, config: config}
}

// Execute runs a single named tool call with the configured timeout and
// retry policy, returning once it succeeds, exhausts its attempts, or ctx
// is done. It never returns a Go error for an ordinary tool failure — that
// comes back as an error ToolResult so the driver can journal it and keep
// the loop going; a Go error return means the call could not be attempted
// at all (e.g. ctx already done).
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, time.Duration, error) {
	start := time.Now()
	var result *ToolResult
	var err error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		result, err = e.attempt(ctx, name, args)
		if err != nil {
			return nil, time.Since(start), err
		}
		if !result.IsError {
			break
		}
		if attempt < e.config.MaxAttempts {
			if waitErr := e.wait(ctx); waitErr != nil {
				return result, time.Since(start), nil
			}
		}
	}

	return result, time.Since(start), nil
}

func (e *ToolExecutor) attempt(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
	defer cancel()

	type outcome struct {
		result *ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := e.registry.Execute(toolCtx, name, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-toolCtx.Done():
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			return &ToolResult{
				Content: fmt.Sprintf("tool %s timed out after %v", name, e.config.PerToolTimeout),
				IsError: true,
			}, nil
		}
		return nil, toolCtx.Err()
	case o := <-done:
		if o.err != nil {
			return &ToolResult{Content: o.err.Error(), IsError: true}, nil
		}
		return o.result, nil
	}
}

func (e *ToolExecutor) wait(ctx context.Context) error {
	if e.config.RetryBackoff <= 0 {
		return nil
	}
	select {
	case <-time.After(e.config.RetryBackoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
