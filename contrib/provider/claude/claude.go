// Package claude adapts the official Anthropic Go SDK to the agent.LLMClient
// interface. System messages are lifted out of the transcript into the
// request's system field, as the Messages API requires.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/message"
)

// Config holds Claude provider configuration.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns the provider defaults for the given credentials.
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Provider implements agent.LLMClient on top of the official Anthropic SDK.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New builds a provider from the given configuration.
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithAuthToken(""),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Generate sends the conversation to the Messages API and converts the
// response content blocks back into a message with any tool calls.
func (p *Provider) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	system, conversation := splitTranscript(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  conversation,
		MaxTokens: p.config.MaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	for _, tool := range req.Tools {
		toolParam, err := convertTool(tool)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: toolParam})
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	return decodeResponse(apiMessage)
}

// splitTranscript separates system prompt text from the conversation turns.
// Manager messages travel as assistant turns; tool results become user-role
// tool result blocks per the Messages API contract.
func splitTranscript(msgs []*message.Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	conversation := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			conversation = append(conversation,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant, message.RoleManager:
			if blocks := assistantBlocks(msg); len(blocks) > 0 {
				conversation = append(conversation, anthropic.NewAssistantMessage(blocks...))
			}
		case message.RoleTool:
			conversation = append(conversation,
				anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolID, msg.Content, false)))
		}
	}

	return strings.Join(systemPrompts, "\n"), conversation
}

func assistantBlocks(msg *message.Message) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
	if msg.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: args,
			},
		})
	}
	return blocks
}

func decodeResponse(apiMessage *anthropic.Message) (*agent.GenerateResponse, error) {
	var responseText string
	var toolCalls []message.ToolCall

	for _, content := range apiMessage.Content {
		switch content.Type {
		case "text":
			responseText = content.Text
		case "tool_use":
			var args map[string]any
			if err := json.Unmarshal(content.Input, &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, message.ToolCall{
				ID:   content.ID,
				Name: content.Name,
				Args: args,
			})
		}
	}

	responseMsg := message.NewMessage(message.RoleAssistant, responseText)
	responseMsg.ToolCalls = toolCalls
	return &agent.GenerateResponse{Message: responseMsg}, nil
}

// SetTemperature updates the sampling temperature.
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = temp
}

// SetMaxTokens updates the completion token limit.
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = max
}

// SetModel switches the model.
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}

// convertTool maps the registry's {"type":"function","function":{...}}
// schema onto Anthropic's tool shape.
func convertTool(tool map[string]any) (*anthropic.ToolParam, error) {
	fn, ok := tool["function"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tool schema missing function object")
	}
	name, _ := fn["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("tool schema missing function name")
	}

	toolParam := &anthropic.ToolParam{Name: name}
	if desc, ok := fn["description"].(string); ok && desc != "" {
		toolParam.Description = param.NewOpt(desc)
	}
	if parameters, ok := fn["parameters"].(map[string]any); ok {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := parameters["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := parameters["required"].([]string); ok {
			schema.Required = required
		}
		toolParam.InputSchema = schema
	}
	return toolParam, nil
}
