// Package openai adapts the official OpenAI Go SDK to the agent.LLMClient
// interface, mapping conversation messages and tool schemas both ways.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/datatalk-ai/datatalk/agent"
	"github.com/datatalk-ai/datatalk/message"
)

const defaultModel = "gpt-4o-mini"

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// WithBaseURL sets the API base URL, for proxies and compatible endpoints.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey sets the API key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel sets the chat model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:       defaultModel,
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// Provider implements agent.LLMClient on top of the official OpenAI SDK.
type Provider struct {
	config *Config
	client openai.Client
}

// New builds a provider from the given configuration.
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = defaultModel
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(options...),
	}
}

// Generate sends the conversation to the chat completions API and converts
// the first choice back into a message, including any requested tool calls.
func (p *Provider) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	responseMsg, err := decodeChoice(completion.Choices[0])
	if err != nil {
		return nil, err
	}
	return &agent.GenerateResponse{Message: responseMsg}, nil
}

func (p *Provider) buildParams(req *agent.GenerateRequest) (openai.ChatCompletionNewParams, error) {
	converted, err := convertMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	model := p.config.Model
	if model == "" {
		model = defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Messages: converted,
		Model:    openai.ChatModel(model),
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}

	for _, tool := range req.Tools {
		def, err := functionDefinition(tool)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(def))
	}
	return params, nil
}

// convertMessages maps the internal transcript onto the SDK's message union.
// Manager messages travel as assistant turns.
func convertMessages(msgs []*message.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case message.RoleUser:
			out = append(out, openai.UserMessage(msg.Text()))
		case message.RoleAssistant, message.RoleManager:
			assistantMsg := openai.AssistantMessage(msg.Text())
			if len(msg.ToolCalls) > 0 {
				toolCalls, err := encodeToolCalls(msg.ToolCalls)
				if err != nil {
					return nil, fmt.Errorf("failed to encode tool calls: %w", err)
				}
				if assistantMsg.OfAssistant != nil {
					assistantMsg.OfAssistant.ToolCalls = toolCalls
				}
			}
			out = append(out, assistantMsg)
		case message.RoleTool:
			out = append(out, openai.ToolMessage(msg.Text(), msg.ToolID))
		}
	}
	return out, nil
}

func decodeChoice(choice openai.ChatCompletionChoice) (*message.Message, error) {
	responseMsg := message.NewMessage(message.RoleAssistant, choice.Message.Content)

	if len(choice.Message.ToolCalls) == 0 {
		return responseMsg, nil
	}

	toolCalls := make([]message.ToolCall, len(choice.Message.ToolCalls))
	for i, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
		toolCalls[i] = message.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
	}
	responseMsg.ToolCalls = toolCalls
	return responseMsg, nil
}

// SetTemperature updates the sampling temperature.
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = temp
}

// SetMaxTokens updates the completion token limit.
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = max
}

// SetModel switches the chat model.
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}

// functionDefinition converts the registry's JSON schema shape
// {"type":"function","function":{...}} into the SDK's definition param.
func functionDefinition(tool map[string]any) (shared.FunctionDefinitionParam, error) {
	fn, ok := tool["function"].(map[string]any)
	if !ok {
		return shared.FunctionDefinitionParam{}, fmt.Errorf("tool schema missing function object")
	}
	name, _ := fn["name"].(string)
	if name == "" {
		return shared.FunctionDefinitionParam{}, fmt.Errorf("tool schema missing function name")
	}

	def := shared.FunctionDefinitionParam{Name: name}
	if desc, ok := fn["description"].(string); ok && desc != "" {
		def.Description = param.NewOpt(desc)
	}
	if parameters, ok := fn["parameters"].(map[string]any); ok {
		def.Parameters = shared.FunctionParameters(parameters)
	}
	return def, nil
}

func encodeToolCalls(calls []message.ToolCall) ([]openai.ChatCompletionMessageToolCallUnionParam, error) {
	params := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		args := tc.Args
		if args == nil {
			args = make(map[string]any)
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		params = append(params, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(raw),
				},
			},
		})
	}
	return params, nil
}
