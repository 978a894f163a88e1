package http

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// viewEngine backs Context.View: templates resolve relative to a single
// directory, default to the .html extension, and are parsed once and
// cached. The cache holds never-executed templates; every render clones,
// so per-render funcs (the csrf helper) stay isolated.
type viewEngine struct {
	mu    sync.RWMutex
	dir   string
	funcs template.FuncMap
	cache map[string]*template.Template
}

func newViewEngine(dir string) *viewEngine {
	return &viewEngine{
		dir: dir,
		// Parse-time stub; the real token is supplied per render.
		funcs: template.FuncMap{"csrf": func() string { return "" }},
		cache: make(map[string]*template.Template),
	}
}

// SetDir points the engine at a new template directory and drops the cache.
func (v *viewEngine) SetDir(dir string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dir = dir
	v.cache = make(map[string]*template.Template)
}

// AddFuncs registers functions available to every template. Later
// registrations shadow earlier names; the cache is dropped so already
// parsed templates see the new set.
func (v *viewEngine) AddFuncs(funcs template.FuncMap) {
	v.mu.Lock()
	defer v.mu.Unlock()
	merged := make(template.FuncMap, len(v.funcs)+len(funcs))
	for name, fn := range v.funcs {
		merged[name] = fn
	}
	for name, fn := range funcs {
		merged[name] = fn
	}
	v.funcs = merged
	v.cache = make(map[string]*template.Template)
}

// Render executes the named template with data. Funcs in extra shadow
// engine-level ones for this render only.
func (v *viewEngine) Render(w io.Writer, name string, data any, extra template.FuncMap) error {
	tpl, err := v.lookup(name)
	if err != nil {
		return err
	}

	clone, err := tpl.Clone()
	if err != nil {
		return err
	}
	if len(extra) > 0 {
		clone = clone.Funcs(extra)
	}
	return clone.Execute(w, data)
}

func (v *viewEngine) lookup(name string) (*template.Template, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, fmt.Errorf("view: template name is empty")
	case strings.Contains(name, ".."):
		return nil, fmt.Errorf("view: template name %q escapes the views directory", name)
	}
	if filepath.Ext(name) == "" {
		name += ".html"
	}

	v.mu.RLock()
	tpl := v.cache[name]
	dir, funcs := v.dir, v.funcs
	v.mu.RUnlock()
	if tpl != nil {
		return tpl, nil
	}

	parsed, err := template.New(filepath.Base(name)).Funcs(funcs).ParseFiles(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if cached := v.cache[name]; cached != nil {
		return cached, nil
	}
	v.cache[name] = parsed
	return parsed, nil
}
