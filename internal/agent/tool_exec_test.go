package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// testExecTool implements Tool for testing tool execution.
type testExecTool struct {
	name     string
	execFunc func(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

func (m *testExecTool) Name() string            { return m.name }
func (m *testExecTool) Description() string     { return "test exec tool" }
func (m *testExecTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (m *testExecTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return m.execFunc(ctx, params)
}

func TestToolExecutor_Execute_Success(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&testExecTool{
		name: "echo",
		execFunc: func(_ context.Context, params json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Content: string(params)}, nil
		},
	})

	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	result, _, err := executor.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.IsError {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Content != `{"a":1}` {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestToolExecutor_Execute_ToolNotFound(t *testing.T) {
	executor := NewToolExecutor(NewToolRegistry(), DefaultToolExecConfig())
	result, _, err := executor.Execute(context.Background(), "missing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError=true for missing tool")
	}
}

func TestToolExecutor_Execute_TimesOut(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&testExecTool{
		name: "slow",
		execFunc: func(ctx context.Context, _ json.RawMessage) (*ToolResult, error) {
			select {
			case <-time.After(500 * time.Millisecond):
				return &ToolResult{Content: "too slow"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	executor := NewToolExecutor(registry, ToolExecConfig{PerToolTimeout: 20 * time.Millisecond, MaxAttempts: 1})
	result, duration, err := executor.Execute(context.Background(), "slow", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.IsError {
		t.Error("expected timeout to produce an error result")
	}
	if duration > 200*time.Millisecond {
		t.Errorf("duration = %v, want close to the 20ms timeout", duration)
	}
}

func TestToolExecutor_Execute_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	registry := NewToolRegistry()
	registry.Register(&testExecTool{
		name: "flaky",
		execFunc: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			attempts++
			if attempts < 3 {
				return &ToolResult{Content: "transient failure", IsError: true}, nil
			}
			return &ToolResult{Content: "ok"}, nil
		},
	})

	executor := NewToolExecutor(registry, ToolExecConfig{
		PerToolTimeout: time.Second,
		MaxAttempts:    3,
		RetryBackoff:   time.Millisecond,
	})
	result, _, err := executor.Execute(context.Background(), "flaky", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.IsError || result.Content != "ok" {
		t.Errorf("result = %+v, want success after retries", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestToolExecutor_Execute_ToolErrorWrapped(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&testExecTool{
		name: "failing",
		execFunc: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return nil, errors.New("permission denied")
		},
	})

	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	result, _, err := executor.Execute(context.Background(), "failing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.IsError || result.Content != "permission denied" {
		t.Errorf("result = %+v, want error result wrapping the tool error", result)
	}
}
