// Package prompt holds the system prompts handed to the role agents and a
// small registry for overriding them per deployment. Templates use
// text/template syntax so prompts can interpolate runtime values such as
// the target database name or the chart output directory.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Template is a named, parsed prompt template.
type Template struct {
	Name    string
	Content string

	parsed *template.Template
}

// NewTemplate parses content as a text/template and returns the template.
func NewTemplate(name, content string) (*Template, error) {
	parsed, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Template{Name: name, Content: content, parsed: parsed}, nil
}

// Render executes the template with the given variables.
func (t *Template) Render(vars map[string]any) (string, error) {
	var buf strings.Builder
	if err := t.parsed.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// Manager is a thread-safe registry of prompt templates keyed by name.
// Names registered once cannot be overwritten; callers that want a custom
// prompt register it under a new name or build the manager themselves.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewManager returns an empty prompt registry.
func NewManager() *Manager {
	return &Manager{templates: make(map[string]*Template)}
}

// Register adds a parsed template. Registering a name twice is an error.
func (m *Manager) Register(tmpl *Template) error {
	if tmpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.templates[tmpl.Name]; exists {
		return fmt.Errorf("template %s already registered", tmpl.Name)
	}
	m.templates[tmpl.Name] = tmpl
	return nil
}

// RegisterString parses content and registers it under name.
func (m *Manager) RegisterString(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}
	return m.Register(tmpl)
}

// Get returns the template registered under name.
func (m *Manager) Get(name string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return tmpl, nil
}

// Render looks up a template by name and renders it with vars.
func (m *Manager) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}

// List returns the registered template names in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builder assembles a prompt from ordered parts. Useful for composing a
// base role prompt with deployment-specific sections.
type Builder struct {
	parts []string
}

// NewBuilder returns an empty prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a raw part.
func (b *Builder) Add(part string) *Builder {
	b.parts = append(b.parts, part)
	return b
}

// AddFormat appends a fmt.Sprintf-formatted part.
func (b *Builder) AddFormat(format string, args ...any) *Builder {
	b.parts = append(b.parts, fmt.Sprintf(format, args...))
	return b
}

// AddLine appends a part followed by a newline.
func (b *Builder) AddLine(part string) *Builder {
	b.parts = append(b.parts, part+"\n")
	return b
}

// AddSection appends a markdown section with a title and body.
func (b *Builder) AddSection(title, content string) *Builder {
	b.parts = append(b.parts, fmt.Sprintf("## %s\n%s\n", title, content))
	return b
}

// Build joins the parts into the final prompt.
func (b *Builder) Build() string {
	return strings.Join(b.parts, "")
}

// Reset discards all parts.
func (b *Builder) Reset() *Builder {
	b.parts = nil
	return b
}
