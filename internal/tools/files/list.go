package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dexterhq/dexter/internal/agent"
)

// ListDirTool lists the entries of a workspace directory.
type ListDirTool struct {
	resolver Resolver
}

// NewListDirTool creates a directory listing tool scoped to the workspace.
func NewListDirTool(cfg Config) *ListDirTool {
	return &ListDirTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *ListDirTool) Name() string {
	return "list_dir"
}

// Description returns the tool description.
func (t *ListDirTool) Description() string {
	return "List the entries of a directory in the workspace."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ListDirTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (relative to workspace).",
			},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute lists a directory's entries, one per line, directories suffixed
// with "/".
func (t *ListDirTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read dir: %v", err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return &agent.ToolResult{Content: "(empty directory)"}, nil
	}
	return &agent.ToolResult{Content: strings.Join(names, "\n")}, nil
}
