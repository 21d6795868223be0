package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dexterhq/dexter/internal/agent"
)

// NavigateTool is the single-purpose "browser.navigate" built-in, a thinner
// front door onto the same Pool that BrowserTool's "navigate" action uses.
type NavigateTool struct {
	pool *Pool
}

// NewNavigateTool creates the browser.navigate tool.
func NewNavigateTool(pool *Pool) *NavigateTool {
	return &NavigateTool{pool: pool}
}

// Name returns the tool name.
func (t *NavigateTool) Name() string { return "browser.navigate" }

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate the headless browser to a URL."
}

// Schema returns the JSON schema for the tool parameters.
func (t *NavigateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"url": {"type": "string", "description": "URL to navigate to."}},
		"required": ["url"]
	}`)
}

// Execute navigates the pooled page to the requested URL.
func (t *NavigateTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	instance, err := t.pool.Acquire(ctx)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("failed to acquire browser instance: %v", err), IsError: true}, nil
	}
	defer t.pool.Release(instance)

	b := &BrowserTool{pool: t.pool}
	return b.handleNavigate(ctx, instance, params)
}

// ReadTool is the single-purpose "browser.read" built-in: extract the
// visible text content of the current page (or a selector within it).
type ReadTool struct {
	pool *Pool
}

// NewReadTool creates the browser.read tool.
func NewReadTool(pool *Pool) *ReadTool {
	return &ReadTool{pool: pool}
}

// Name returns the tool name.
func (t *ReadTool) Name() string { return "browser.read" }

// Description returns the tool description.
func (t *ReadTool) Description() string {
	return "Read the visible text content of the current page, optionally scoped to a selector."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"selector": {"type": "string", "description": "Optional CSS selector to scope extraction to."}}
	}`)
}

// Execute reads text content from the current page.
func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	instance, err := t.pool.Acquire(ctx)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("failed to acquire browser instance: %v", err), IsError: true}, nil
	}
	defer t.pool.Release(instance)

	b := &BrowserTool{pool: t.pool}
	return b.handleExtractText(ctx, instance, params)
}
