package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini implements Oracle on the Google Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGemini creates a Gemini-backed oracle.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger.Named("oracle.gemini"),
	}, nil
}

// Chat implements Oracle.
func (g *Gemini) Chat(ctx context.Context, system string, history []Message, tools []ToolDef) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := historyToContents(history)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toolsToDeclarations(tools)}}
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, &Error{Op: "chat", Err: err}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, &Error{Op: "chat", Err: fmt.Errorf("no candidates returned")}
	}

	resp := &Response{}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			resp.Text += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				// Keep the call; the orchestrator reports the bad
				// payload as a per-call error.
				args = []byte("")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	g.logger.Debug("chat round-trip complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("history_len", len(history)),
		zap.Int("tool_calls", len(resp.ToolCalls)))
	return resp, nil
}

// CompleteJSON implements Oracle.
func (g *Gemini) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", &Error{Op: "complete", Err: err}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", &Error{Op: "complete", Err: fmt.Errorf("no candidates returned")}
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", &Error{Op: "complete", Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

// historyToContents maps the provider-neutral history onto genai
// contents. Tool results travel back as function-response parts on a
// user-role content, per the Gemini function-calling protocol.
func historyToContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
		case RoleModel:
			var parts []*genai.Part
			if m.Text != "" {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal(tc.Arguments, &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: args,
				}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case RoleTool:
			var parts []*genai.Part
			for _, tr := range m.ToolResults {
				payload := map[string]any{"result": tr.Content}
				if tr.IsError {
					payload = map[string]any{"error": tr.Content}
				}
				parts = append(parts, genai.NewPartFromFunctionResponse(tr.Name, payload))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}
	return contents
}

func toolsToDeclarations(tools []ToolDef) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaToGenai(t.Parameters),
		}
	}
	return decls
}

func schemaToGenai(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       schemaToGenai(s.Items),
	}
	if len(s.Enum) > 0 {
		out.Enum = s.Enum
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = schemaToGenai(prop)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
