package tplengine

import (
	"bytes"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine renders named text templates with the sprig function map.
type TemplateEngine struct {
	mu           sync.RWMutex
	templates    map[string]*template.Template
	globalValues map[string]any
}

// NewEngine creates an empty engine.
func NewEngine() *TemplateEngine {
	return &TemplateEngine{
		templates:    make(map[string]*template.Template),
		globalValues: make(map[string]any),
	}
}

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=zero").Funcs(sprig.TxtFuncMap())
}

// AddTemplate parses and registers a template under name.
func (e *TemplateEngine) AddTemplate(name, templateStr string) error {
	tmpl, err := newTemplate(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	e.mu.Lock()
	e.templates[name] = tmpl
	e.mu.Unlock()
	return nil
}

// LoadFS registers every file matching pattern in fsys, named by base name
// without extension.
func (e *TemplateEngine) LoadFS(fsys fs.FS, pattern string) error {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("failed to glob templates: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no templates match %s", pattern)
	}
	for _, file := range matches {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", file, err)
		}
		name := strings.TrimSuffix(path.Base(file), path.Ext(file))
		if err := e.AddTemplate(name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// HasTemplate returns true if the string contains template markers
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// HasNamed reports whether a template was registered under name.
func (e *TemplateEngine) HasNamed(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[name]
	return ok
}

// AddGlobalValue sets a value visible to every render. Per-call context wins
// over globals with the same key.
func (e *TemplateEngine) AddGlobalValue(key string, value any) {
	e.mu.Lock()
	e.globalValues[key] = value
	e.mu.Unlock()
}

// Render renders a template by name
func (e *TemplateEngine) Render(name string, context map[string]any) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return e.renderTemplate(tmpl, context)
}

// RenderString renders an inline template string
func (e *TemplateEngine) RenderString(templateStr string, context map[string]any) (string, error) {
	if !HasTemplate(templateStr) {
		return templateStr, nil
	}
	tmpl, err := newTemplate("inline").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	return e.renderTemplate(tmpl, context)
}

func (e *TemplateEngine) renderTemplate(tmpl *template.Template, context map[string]any) (string, error) {
	e.mu.RLock()
	data := make(map[string]any, len(e.globalValues)+len(context))
	maps.Copy(data, e.globalValues)
	e.mu.RUnlock()
	maps.Copy(data, context)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}
