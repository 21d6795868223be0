package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dexterhq/dexter/internal/agent"
)

// MetaTool is the single "skill" built-in tool the iteration driver invokes
// to pull a skill's instructions into context. Unlike BuildSkillTools, which
// turns a skill's declared sub-tools into executable commands, MetaTool is
// a lookup: given {skill, args?} it returns the skill's body content,
// optionally prefixed by args, so the model can follow it as instructions.
type MetaTool struct {
	manager *Manager
}

// NewMetaTool creates the skill meta-tool backed by manager.
func NewMetaTool(manager *Manager) *MetaTool {
	return &MetaTool{manager: manager}
}

// Name returns the tool name.
func (t *MetaTool) Name() string {
	return "skill"
}

// Description returns the tool description.
func (t *MetaTool) Description() string {
	return "Load a skill's instructions by name."
}

// Schema returns the JSON schema for the tool parameters.
func (t *MetaTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"skill": map[string]interface{}{
				"type":        "string",
				"description": "Name of the skill to load.",
			},
			"args": map[string]interface{}{
				"type":        "string",
				"description": "Optional arguments to prefix the skill's instructions with.",
			},
		},
		"required": []string{"skill"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute looks up the named skill and returns its instructions.
func (t *MetaTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Skill string `json:"skill"`
		Args  string `json:"args"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(input.Skill) == "" {
		return &agent.ToolResult{Content: "skill is required", IsError: true}, nil
	}
	if t.manager == nil {
		return &agent.ToolResult{Content: "skill registry unavailable", IsError: true}, nil
	}

	content, err := t.manager.LoadContent(input.Skill)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("load skill %q: %v", input.Skill, err), IsError: true}, nil
	}

	if strings.TrimSpace(input.Args) != "" {
		content = input.Args + "\n\n" + content
	}
	return &agent.ToolResult{Content: content}, nil
}
