package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dexterhq/dexter/internal/agent"
)

const maxGrepMatches = 500

// GrepTool searches a file or directory tree for lines matching a pattern.
type GrepTool struct {
	resolver Resolver
}

// NewGrepTool creates a grep tool scoped to the workspace.
func NewGrepTool(cfg Config) *GrepTool {
	return &GrepTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *GrepTool) Name() string {
	return "grep"
}

// Description returns the tool description.
func (t *GrepTool) Description() string {
	return "Search a file or directory tree for lines matching a pattern."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GrepTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Text or regular expression to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File or directory to search (relative to workspace).",
			},
			"regex": map[string]interface{}{
				"type":        "boolean",
				"description": "Treat pattern as a regular expression (default: false, literal substring).",
			},
		},
		"required": []string{"pattern", "path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute walks path (a file or a directory tree) and returns newline-joined
// "path:line:content" matches, capped at maxGrepMatches.
func (t *GrepTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Regex   bool   `json:"regex"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	var matcher func(line string) bool
	if input.Regex {
		re, err := regexp.Compile(input.Pattern)
		if err != nil {
			return toolError(fmt.Sprintf("invalid regex: %v", err)), nil
		}
		matcher = re.MatchString
	} else {
		matcher = func(line string) bool { return strings.Contains(line, input.Pattern) }
	}

	var matches []string
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || len(matches) >= maxGrepMatches {
			return nil
		}
		display := input.Path
		if rel, relErr := filepath.Rel(resolved, path); relErr == nil && rel != "." {
			display = filepath.Join(input.Path, rel)
		}
		matches = append(matches, grepFile(path, display, matcher, maxGrepMatches-len(matches))...)
		return nil
	})
	if walkErr != nil {
		return toolError(fmt.Sprintf("search: %v", walkErr)), nil
	}

	if len(matches) == 0 {
		return &agent.ToolResult{Content: "(no matches)"}, nil
	}
	return &agent.ToolResult{Content: strings.Join(matches, "\n")}, nil
}

func grepFile(absPath, displayPath string, matcher func(string) bool, limit int) []string {
	f, err := os.Open(absPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	lineNum := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() && len(out) < limit {
		lineNum++
		line := scanner.Text()
		if matcher(line) {
			out = append(out, fmt.Sprintf("%s:%d:%s", displayPath, lineNum, line))
		}
	}
	return out
}
