// internal/view/render.go
//
// View engine: template lookup, func-map injection, and an LRU of parsed
// *template.Template* sets.
//
// Public helpers
// --------------
//   - Renderer.Render  – execute a view into any io.Writer.
//   - Renderer.Page    – render straight into a pipeline.Response.
//
// Lookup
// ------
// A view named "users" is the file users.html.  It is parsed together with
// layout.html and partials/*.html when they exist, so a view can wrap
// itself with {{ template "layout" . }} and define blocks the layout pulls
// in.
//
// execName() chooses the template to execute:
//   – If the set contains "<name>.html", run that.
//   – Else fall back to "<name>" (root template defined via {{ define }}).
//
// Concurrent first requests for the same view share one parse through
// singleflight; later requests hit the LRU.  With Reload set every render
// re-parses, which is what you want while editing templates.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/yanizio/relay/internal/cache"
	"github.com/yanizio/relay/internal/pipeline"
)

// ErrNotFound is returned when no file backs the requested view.
var ErrNotFound = errors.New("view: template not found")

const (
	layoutFile   = "layout.html"
	partialsGlob = "partials/*.html"
)

// Options tune a Renderer.
type Options struct {
	Reload   bool // never cache; re-parse on every render
	Capacity int  // LRU size, 0 means 256
	Funcs    template.FuncMap
}

// Renderer parses and executes views from one file system.
type Renderer struct {
	fsys   fs.FS
	reload bool
	funcs  template.FuncMap
	sets   *cache.LRU[string, *template.Template]
	group  singleflight.Group
}

// New returns a Renderer reading from fsys (typically os.DirFS(dir)).
func New(fsys fs.FS, opts Options) *Renderer {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 256
	}
	fm := buildFuncMap()
	for k, v := range opts.Funcs {
		fm[k] = v
	}
	return &Renderer{
		fsys:   fsys,
		reload: opts.Reload,
		funcs:  fm,
		sets:   cache.New[string, *template.Template](capacity),
	}
}

// Render executes view name with data into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t, err := r.load(name)
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(w, execName(t, name), data)
}

// Page renders into a buffered HTML response.  Nothing is written when
// execution fails, so the caller can still fail the pipeline cleanly.
func (r *Renderer) Page(status int, name string, data any) (pipeline.Response, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return pipeline.Response{}, err
	}
	resp := pipeline.HTML(status, "")
	resp.Body = buf.Bytes()
	return resp, nil
}

// Handle adapts a data loader into a terminal stage rendering view name.
func (r *Renderer) Handle(name string, load func(*pipeline.Request) (any, error)) pipeline.Stage {
	return pipeline.Handle("view-"+name, func(req *pipeline.Request) (pipeline.Response, error) {
		data, err := load(req)
		if err != nil {
			return pipeline.Response{}, err
		}
		resp, err := r.Page(http.StatusOK, name, data)
		if err != nil {
			return pipeline.Response{}, pipeline.Internal(fmt.Errorf("render %s: %w", name, err))
		}
		return resp, nil
	})
}

// load returns the parsed set for name, from cache when allowed.
func (r *Renderer) load(name string) (*template.Template, error) {
	if r.reload {
		return r.parse(name)
	}
	if t, ok := r.sets.Get(name); ok {
		return t, nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		t, err := r.parse(name)
		if err != nil {
			return nil, err
		}
		r.sets.Add(name, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

func (r *Renderer) parse(name string) (*template.Template, error) {
	file := name + ".html"
	if _, err := fs.Stat(r.fsys, file); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
	}

	files := []string{}
	if _, err := fs.Stat(r.fsys, layoutFile); err == nil {
		files = append(files, layoutFile)
	}
	if partials, _ := fs.Glob(r.fsys, partialsGlob); len(partials) > 0 {
		files = append(files, partials...)
	}
	files = append(files, file)

	t, err := template.New(name).Funcs(r.funcs).ParseFS(r.fsys, files...)
	if err != nil {
		return nil, fmt.Errorf("view: parse %s: %w", file, err)
	}
	return t, nil
}

func buildFuncMap() template.FuncMap {
	fm := template.FuncMap{
		"dict": dict,
	}
	for k, v := range uaFuncMap() {
		fm[k] = v
	}
	return fm
}

// execName picks the template name to execute.
//
// Priority:
//  1. If the set has "<name>.html" (file-based template), run that.
//  2. Otherwise, fall back to "<name>" (root template defined in code).
func execName(t *template.Template, name string) string {
	if tmpl := t.Lookup(name + ".html"); tmpl != nil {
		return name + ".html"
	}
	return name
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
