package models

import (
	"encoding/json"
	"fmt"
)

// Role indicates the message author type. The runtime only ever persists
// user and assistant turns; system prompts are a construction-time concern
// of the iteration driver, not a stored role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlockType enumerates the block kinds a Message's content can carry
// when it is not a plain string.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
)

// ContentBlock is one element of an ordered content sequence. Only the
// fields relevant to its Type are populated.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// Text holds the block's text for Type == ContentText.
	Text string `json:"text,omitempty"`

	// ToolUseID, ToolName, ToolInput describe a tool_use block.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// ToolResultFor, ToolResultText, ToolResultError describe a tool_result block.
	ToolResultFor   string `json:"tool_result_for,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	ToolResultError bool   `json:"tool_result_error,omitempty"`
}

// MessageContent is either a plain string or an ordered list of content
// blocks. It preserves whichever shape it was constructed or decoded with,
// so round-tripping through JSON never changes a string into a
// single-element block list.
type MessageContent struct {
	text   string
	blocks []ContentBlock
	isText bool
}

// NewTextContent wraps a plain string as message content.
func NewTextContent(text string) MessageContent {
	return MessageContent{text: text, isText: true}
}

// NewBlockContent wraps an ordered block sequence as message content.
func NewBlockContent(blocks []ContentBlock) MessageContent {
	return MessageContent{blocks: blocks}
}

// IsText reports whether the content is a plain string.
func (c MessageContent) IsText() bool { return c.isText }

// Text returns the string form of the content: the raw string when IsText,
// or the concatenation of any text blocks otherwise.
func (c MessageContent) Text() string {
	if c.isText {
		return c.text
	}
	out := ""
	for _, b := range c.blocks {
		if b.Type == ContentText {
			out += b.Text
		}
	}
	return out
}

// Blocks returns the content as a block sequence, synthesising a single
// text block when the content is a plain string.
func (c MessageContent) Blocks() []ContentBlock {
	if !c.isText {
		return c.blocks
	}
	return []ContentBlock{{Type: ContentText, Text: c.text}}
}

// MarshalJSON preserves the original shape: a bare JSON string for text
// content, an array for block content.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}
	return json.Marshal(c.blocks)
}

// UnmarshalJSON accepts either a JSON string or a JSON array of blocks.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.text = s
		c.blocks = nil
		c.isText = true
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message content is neither a string nor a block array: %w", err)
	}
	c.blocks = blocks
	c.text = ""
	c.isText = false
	return nil
}

// Message is one turn of a session's append-only conversational log.
type Message struct {
	Role        Role           `json:"role"`
	Content     MessageContent `json:"content"`
	TimestampMS int64          `json:"timestamp_ms"`
}

// ToolCall represents the model's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of one tool execution, keyed back to the
// ToolCall that produced it.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Session is the metadata record for one conversational key; the messages
// themselves live in the Store's JSONL file (or row set, for the Postgres
// backend), not on this struct.
type Session struct {
	Key       string `json:"key"`
	AgentID   string `json:"agent_id"`
	CreatedAt int64  `json:"created_at_ms"`
	UpdatedAt int64  `json:"updated_at_ms"`
}
