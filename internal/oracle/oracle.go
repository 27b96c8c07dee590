// Package oracle is the boundary to the external language-model service.
// The rest of the system treats the oracle as opaque: it sends a message
// history plus a tool schema and receives either a final message or a
// batch of tool calls.
//
// Tool-call arguments cross this boundary as raw JSON text and are
// treated as untrusted input. Parsing and validation happen on the
// caller's side so a malformed payload stays a contained per-call error.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// ToolCall is one tool invocation requested by the oracle. Arguments is
// the raw JSON argument text, untouched.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the outcome of one tool call, fed back into the history.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Message is one turn in the conversation history.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall   // set on model messages that requested tools
	ToolResults []ToolResult // set on tool messages
}

// Schema is a minimal JSON schema for tool parameters. Type is one of
// object, string, number, integer, boolean, array.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
}

// ToolDef describes one callable tool to the oracle.
type ToolDef struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Response is what one oracle round-trip yields: either a final text
// message (no tool calls) or one or more tool calls.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Oracle is the opaque request/response boundary.
type Oracle interface {
	// Chat sends the history plus tool schema and returns the next
	// model response. The context carries cancellation into the
	// in-flight network call.
	Chat(ctx context.Context, system string, history []Message, tools []ToolDef) (*Response, error)

	// CompleteJSON runs a single-shot generation constrained to JSON
	// output. Used by actions that need a structured intent rather than
	// a conversation.
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// Error wraps a transport or service failure at the oracle boundary.
// There is no retry policy in the core: an Error is terminal for the
// current turn.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
