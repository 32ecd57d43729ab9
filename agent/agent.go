package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	agentContext "github.com/datatalk-ai/datatalk/context"
	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/middleware"
	"github.com/datatalk-ai/datatalk/pkg/logging"
	"github.com/datatalk-ai/datatalk/prompt"
	"github.com/datatalk-ai/datatalk/tool"
)

// LLMClient is the surface an agent needs from a model provider.
type LLMClient interface {
	// Generate produces the next assistant message for the given request.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// SetTemperature updates the sampling temperature.
	SetTemperature(temp float64)

	// SetMaxTokens updates the completion token limit.
	SetMaxTokens(max int64)

	// SetModel switches the underlying model.
	SetModel(model string)
}

// TokenCounter counts tokens in text for prompt-size accounting.
type TokenCounter interface {
	CountTokens(text string) int
}

// Action describes a single tool invocation requested by the LLM.
type Action struct {
	Tool      string         `json:"tool"`
	ToolInput map[string]any `json:"tool_input"`
}

// Step pairs a tool action with the observation its execution produced.
// Steps are recorded in invocation order.
type Step struct {
	Action      Action `json:"action"`
	Observation string `json:"observation"`
}

// Result is the outcome of one agent run: the final text plus the ordered
// execution trace accumulated along the way.
type Result struct {
	Output       string
	Steps        []Step
	LastMessage  *message.Message
	Elapsed      time.Duration
	PromptTokens int
}

// providerState tracks one tool provider's lifecycle: whether its tools
// have been merged into the registry, and the cancel func for its watcher.
type providerState struct {
	loaded bool
	cancel context.CancelFunc
}

// Agent runs a model in a loop, executing requested tool calls until the
// model produces a plain answer or the iteration budget runs out.
type Agent struct {
	name          string
	systemPrompt  string
	maxIterations int
	temperature   float64
	enableTools   bool
	llm           LLMClient
	tools         *tool.Registry
	promptManager *prompt.Manager
	ctx           *agentContext.Context
	middlewares   *middleware.MiddlewareChain
	tokenCounter  TokenCounter
	logger        *slog.Logger

	providerMu    sync.Mutex
	toolProviders []tool.Provider
	providers     map[tool.Provider]*providerState
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithName names the agent; the name appears in logs and routing decisions.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithSystemPrompt sets the role prompt installed as the first message.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithMaxIterations bounds the tool-calling loop.
func WithMaxIterations(max int) Option {
	return func(a *Agent) { a.maxIterations = max }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(a *Agent) { a.temperature = temp }
}

// WithTools enables or disables tool usage.
func WithTools(enable bool) Option {
	return func(a *Agent) { a.enableTools = enable }
}

// WithProvider sets the LLM provider.
func WithProvider(provider LLMClient) Option {
	return func(a *Agent) { a.llm = provider }
}

// WithTokenCounter attaches a token counter used for prompt-size accounting.
func WithTokenCounter(counter TokenCounter) Option {
	return func(a *Agent) { a.tokenCounter = counter }
}

// WithToolProvider registers a tool provider whose tools are loaded lazily
// on the first Run and refreshed when the provider signals a change.
func WithToolProvider(provider tool.Provider) Option {
	return func(a *Agent) {
		if provider == nil {
			return
		}
		a.providerMu.Lock()
		defer a.providerMu.Unlock()
		a.toolProviders = append(a.toolProviders, provider)
	}
}

// WithMiddleware appends one middleware to the agent's chain.
func WithMiddleware(m middleware.Middleware) Option {
	return func(a *Agent) { a.middlewares.Add(m) }
}

// WithMiddlewares replaces the middleware chain.
func WithMiddlewares(middlewares ...middleware.Middleware) Option {
	return func(a *Agent) { a.middlewares = middleware.NewChain(middlewares...) }
}

// New creates an agent with sensible defaults, then applies the options.
func New(opts ...Option) *Agent {
	agent := &Agent{
		name:          "Agent",
		systemPrompt:  "You are a helpful AI assistant.",
		maxIterations: 10,
		temperature:   0.7,
		enableTools:   true,
		tools:         tool.NewRegistry(),
		promptManager: prompt.NewManager(),
		ctx:           agentContext.New(),
		middlewares:   middleware.NewChain(),
		logger:        logging.WithComponent("agent"),
		providers:     make(map[tool.Provider]*providerState),
	}

	for _, opt := range opts {
		opt(agent)
	}

	if agent.systemPrompt != "" {
		agent.ctx.AddMessage(message.NewMessage(message.RoleSystem, agent.systemPrompt))
	}

	return agent
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// RegisterTool adds a tool to the agent's registry.
func (a *Agent) RegisterTool(t *tool.Tool) error {
	return a.tools.Register(t)
}

// RegisterPrompt registers a named prompt template.
func (a *Agent) RegisterPrompt(name, content string) error {
	return a.promptManager.RegisterString(name, content)
}

// AddMiddleware appends a middleware, rejecting nil.
func (a *Agent) AddMiddleware(m middleware.Middleware) error {
	if m == nil {
		return fmt.Errorf("middleware cannot be nil")
	}
	a.middlewares.Add(m)
	return nil
}

// GetMiddlewareChain returns the middleware chain.
func (a *Agent) GetMiddlewareChain() *middleware.MiddlewareChain {
	return a.middlewares
}

// AddMessage appends a message to the conversation.
func (a *Agent) AddMessage(msg *message.Message) {
	a.ctx.AddMessage(msg)
}

// GetMessages returns the conversation so far.
func (a *Agent) GetMessages() []*message.Message {
	return a.ctx.GetMessages()
}

// RestoreMessages seeds the conversation with prior history, replacing any
// accumulated non-system messages. The system prompt stays first.
func (a *Agent) RestoreMessages(history []*message.Message) {
	a.ctx.Clear()
	if a.systemPrompt != "" {
		a.ctx.AddMessage(message.NewMessage(message.RoleSystem, a.systemPrompt))
	}
	for _, msg := range history {
		if msg == nil || msg.Role == message.RoleSystem {
			continue
		}
		a.ctx.AddMessage(message.Clone(msg))
	}
}

// ClearMessages drops the conversation, keeping only the system prompt.
func (a *Agent) ClearMessages() {
	a.ctx.Clear()
	if a.systemPrompt != "" {
		a.ctx.AddMessage(message.NewMessage(message.RoleSystem, a.systemPrompt))
	}
}

// snapshotProviders returns the providers not yet loaded.
func (a *Agent) snapshotProviders() []tool.Provider {
	a.providerMu.Lock()
	defer a.providerMu.Unlock()

	var pending []tool.Provider
	for _, p := range a.toolProviders {
		if p == nil {
			continue
		}
		if st := a.providers[p]; st != nil && st.loaded {
			continue
		}
		pending = append(pending, p)
	}
	return pending
}

// loadToolProviders merges every pending provider's tools into the registry
// and arms a watcher per provider so later ToolsChanged signals trigger a
// refresh.
func (a *Agent) loadToolProviders(ctx context.Context) error {
	if !a.enableTools {
		return nil
	}

	for _, provider := range a.snapshotProviders() {
		if err := a.mergeProviderTools(ctx, provider); err != nil {
			return err
		}
		a.armWatcher(provider)
	}
	return nil
}

func (a *Agent) mergeProviderTools(ctx context.Context, provider tool.Provider) error {
	tools, err := provider.Tools(ctx)
	if err != nil {
		return fmt.Errorf("load tools from provider: %w", err)
	}

	for _, t := range tools {
		if t == nil || t.Name == "" {
			continue
		}
		if err := a.tools.Upsert(t); err != nil {
			return err
		}
	}
	return nil
}

// armWatcher marks the provider loaded and starts its change watcher once.
func (a *Agent) armWatcher(provider tool.Provider) {
	a.providerMu.Lock()
	st := a.providers[provider]
	if st == nil {
		st = &providerState{}
		a.providers[provider] = st
	}
	st.loaded = true
	if st.cancel != nil {
		a.providerMu.Unlock()
		return
	}

	ch := provider.ToolsChanged()
	if ch == nil {
		a.providerMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	a.providerMu.Unlock()

	go func() {
		defer a.disarmWatcher(provider)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := a.mergeProviderTools(ctx, provider); err != nil {
					a.logger.Warn("failed to refresh provider tools", "agent", a.name, "error", err)
				}
			}
		}
	}()
}

func (a *Agent) disarmWatcher(provider tool.Provider) {
	a.providerMu.Lock()
	defer a.providerMu.Unlock()
	if st := a.providers[provider]; st != nil && st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
}

// Run executes the agent with the given input and returns the final text
// together with the ordered tool-execution trace.
//
// The internal loop is bounded by maxIterations. Exhausting the budget is not
// an error: it is reported as the Output text so callers can show it to the
// supervising agent. Tool failures are likewise folded into the observation
// string and the loop continues.
func (a *Agent) Run(ctx context.Context, input string) (*Result, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("agent %s: no LLM provider configured", a.name)
	}
	if err := a.loadToolProviders(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{}

	mwCtx := middleware.NewContext(ctx)
	mwCtx.Input = input

	err := a.middlewares.Execute(mwCtx, func(mwCtx *middleware.Context) error {
		a.AddMessage(message.NewMessage(message.RoleUser, input))
		mwCtx.Messages = a.GetMessages()

		if a.tokenCounter != nil {
			result.PromptTokens = a.countPromptTokens()
			a.logger.Debug("prompt token count", "agent", a.name, "tokens", result.PromptTokens)
		}

		for i := 0; i < a.maxIterations; i++ {
			var toolSchemas []map[string]any
			if a.enableTools {
				toolSchemas = a.tools.ToJSONSchemas()
			}

			resp, err := a.llm.Generate(mwCtx.Context(), &GenerateRequest{
				Messages: a.ctx.GetMessages(),
				Tools:    toolSchemas,
			})
			if err != nil {
				return fmt.Errorf("LLM generation failed: %w", err)
			}
			response := resp.Message

			a.AddMessage(response)
			mwCtx.Response = response

			// No tool calls means the model produced its final answer.
			if len(response.ToolCalls) == 0 {
				result.Output = response.Text()
				result.LastMessage = response
				return nil
			}

			a.runToolCalls(mwCtx.Context(), response.ToolCalls, result)
		}

		// Budget exhausted: surface the fact as output text, not as an error.
		result.Output = fmt.Sprintf("Agent stopped after reaching the maximum of %d iterations.", a.maxIterations)
		result.LastMessage = mwCtx.Response
		a.logger.Warn("iteration budget exhausted", "agent", a.name, "max_iterations", a.maxIterations)
		return nil
	})

	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// runToolCalls executes each requested tool in order, recording the trace
// and feeding observations back into the conversation. Execution errors
// become observation text so the model can react to them.
func (a *Agent) runToolCalls(ctx context.Context, calls []message.ToolCall, result *Result) {
	for _, call := range calls {
		observation, err := a.tools.Execute(ctx, call.Name, call.Args)
		if err != nil {
			observation = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
		}

		result.Steps = append(result.Steps, Step{
			Action:      Action{Tool: call.Name, ToolInput: call.Args},
			Observation: observation,
		})

		a.AddMessage(message.NewToolResponseMessage(call.ID, observation))
	}
}

func (a *Agent) countPromptTokens() int {
	total := 0
	for _, msg := range a.ctx.GetMessages() {
		total += a.tokenCounter.CountTokens(msg.Text())
	}
	return total
}

// Clone returns a fresh agent with the same configuration, tools, prompt
// manager, middleware chain, and tool providers, but an empty conversation.
func (a *Agent) Clone() *Agent {
	cloned := New(
		WithName(a.name),
		WithSystemPrompt(a.systemPrompt),
		WithMaxIterations(a.maxIterations),
		WithTemperature(a.temperature),
		WithProvider(a.llm),
		WithTools(a.enableTools),
		WithTokenCounter(a.tokenCounter),
	)

	for _, t := range a.tools.List() {
		if t != nil {
			_ = cloned.tools.Register(t)
		}
	}

	if a.promptManager != nil {
		cloned.promptManager = a.promptManager
	}
	if a.middlewares != nil {
		cloned.middlewares = middleware.NewChain(a.middlewares.List()...)
	}
	if len(a.toolProviders) > 0 {
		cloned.toolProviders = append(cloned.toolProviders, a.toolProviders...)
	}

	return cloned
}
