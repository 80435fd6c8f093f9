// internal/routing/table.go
//
// Route table: (method, pattern) → composed pipeline.
//
// Context
// -------
// Components register routes at startup through the Registrar interface.
// Each registration records its stage list; nothing is compiled until
// Handler() is called, at which point every route becomes one immutable
// pipeline of:
//
//   global stages (Use)  →  group guards, outer to inner  →  route stages
//
// and the table freezes.  Registering after that point panics, which keeps
// the route set identical for the life of the process.
//
// Workflow
// --------
//   1. routing.New(errorStage) creates an empty table.
//   2. Use, Register, RegisterGroup, and Mount fill it.
//   3. Handler() compiles into a chi router.  chi matches the path; the
//      adapter copies URL params into the Request and dispatches.
//   4. Unmatched paths and methods run the global stages and then fail
//      with a not-found or method-not-allowed error, so they flow through
//      the same error stage as every other failure.
//
// Notes
// -----
// • Patterns use `:name` segments.  They are translated to chi's `{name}`.
// • Trailing slashes are ignored, so "/admin" and "/admin/" match the same
//   route.
// • Oxford commas, two spaces after periods.

package routing

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/pipeline"
)

// Registrar is the registration surface handed to components.  Both the
// table and its groups satisfy it.
type Registrar interface {
	Register(method, pattern string, stages ...pipeline.Stage)
	RegisterGroup(prefix string, guards []pipeline.Stage, routes func(g *Group))
}

type route struct {
	method  string
	pattern string // table syntax, fully prefixed
	stages  []pipeline.Stage
}

type mount struct {
	pattern string
	handler http.Handler
}

// RouteInfo describes one compiled route.
type RouteInfo struct {
	Method  string
	Pattern string
	Stages  []string
}

// Table collects routes until Handler freezes it.
type Table struct {
	mu      sync.Mutex
	onError pipeline.ErrorStage
	log     *zap.SugaredLogger

	global []pipeline.Stage
	routes []route
	mounts []mount
	seen   map[string]struct{}

	frozen   bool
	handler  http.Handler
	compiled []RouteInfo
}

// Option customizes a Table.
type Option func(*Table)

// WithLogger sets the access logger.  Defaults to zap.S().
func WithLogger(l *zap.SugaredLogger) Option {
	return func(t *Table) { t.log = l }
}

// New returns an empty table whose pipelines all share onError.
func New(onError pipeline.ErrorStage, opts ...Option) *Table {
	if onError == nil {
		panic("routing.New: an error stage is required")
	}
	t := &Table{onError: onError, seen: map[string]struct{}{}}
	for _, o := range opts {
		o(t)
	}
	if t.log == nil {
		t.log = zap.S()
	}
	return t
}

// Use appends stages that run first on every request, matched or not.
func (t *Table) Use(stages ...pipeline.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustBeOpen("Use")
	t.global = append(t.global, stages...)
}

// Register binds method + pattern to stages.
func (t *Table) Register(method, pattern string, stages ...pipeline.Stage) {
	t.add(method, pattern, nil, stages)
}

// RegisterGroup registers the routes added inside fn under prefix.  guards
// run before each route's own stages.
func (t *Table) RegisterGroup(prefix string, guards []pipeline.Stage, routes func(g *Group)) {
	g := &Group{table: t, prefix: joinPath("", prefix), guards: append([]pipeline.Stage(nil), guards...)}
	routes(g)
}

// Mount attaches a plain http.Handler that bypasses the pipeline, for
// platform endpoints such as /metrics.
func (t *Table) Mount(pattern string, h http.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustBeOpen("Mount")
	t.mounts = append(t.mounts, mount{pattern: pattern, handler: h})
}

func (t *Table) add(method, pattern string, guards, stages []pipeline.Stage) {
	method = strings.ToUpper(method)
	if !validMethod(method) {
		panic(fmt.Sprintf("routing: unsupported method %q", method))
	}
	if !strings.HasPrefix(pattern, "/") {
		panic(fmt.Sprintf("routing: pattern %q must start with /", pattern))
	}
	if len(stages) == 0 {
		panic(fmt.Sprintf("routing: %s %s has no stages", method, pattern))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustBeOpen("Register")

	key := method + " " + shapeOf(pattern)
	if _, dup := t.seen[key]; dup {
		panic(fmt.Sprintf("routing: duplicate route %s", key))
	}
	t.seen[key] = struct{}{}

	all := make([]pipeline.Stage, 0, len(guards)+len(stages))
	all = append(all, guards...)
	all = append(all, stages...)
	t.routes = append(t.routes, route{method: method, pattern: pattern, stages: all})
}

func (t *Table) mustBeOpen(op string) {
	if t.frozen {
		panic("routing: " + op + " called after Handler; the route table is frozen")
	}
}

// Handler compiles the table and freezes it.  Later calls return the same
// handler.
func (t *Table) Handler() (http.Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return t.handler, nil
	}

	base, err := pipeline.New(t.onError, t.global...)
	if err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	// HEAD falls back to the GET route unless one was registered for HEAD.
	mux.Use(chimw.StripSlashes, chimw.GetHead)

	for _, m := range t.mounts {
		mux.Handle(m.pattern, m.handler)
	}

	compiled := make([]RouteInfo, 0, len(t.routes))
	for _, rt := range t.routes {
		p, err := base.With(rt.stages...)
		if err != nil {
			return nil, fmt.Errorf("routing: %s %s: %w", rt.method, rt.pattern, err)
		}
		mux.Method(rt.method, chiPattern(rt.pattern), t.serve(rt.pattern, p))
		compiled = append(compiled, RouteInfo{Method: rt.method, Pattern: rt.pattern, Stages: p.Names()})
	}

	notFound, err := base.With(pipeline.Func("not-found", func(req *pipeline.Request) pipeline.Result {
		return pipeline.Fail(pipeline.NotFound(fmt.Sprintf("Cannot %s %s", req.Method, req.Path)))
	}))
	if err != nil {
		return nil, err
	}
	notAllowed, err := base.With(pipeline.Func("method-not-allowed", func(req *pipeline.Request) pipeline.Result {
		return pipeline.Fail(pipeline.Errorf(http.StatusMethodNotAllowed, "Method %s not allowed on %s", req.Method, req.Path))
	}))
	if err != nil {
		return nil, err
	}
	mux.NotFound(t.serve("", notFound))
	mux.MethodNotAllowed(t.serve("", notAllowed))

	t.frozen = true
	t.handler = mux
	t.compiled = compiled
	return mux, nil
}

// Routes lists the compiled routes.  Empty until Handler has run.
func (t *Table) Routes() []RouteInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RouteInfo(nil), t.compiled...)
}

// -----------------------------------------------------------------------------
// Groups
// -----------------------------------------------------------------------------

// Group registers routes under a shared prefix and guard list.
type Group struct {
	table  *Table
	prefix string
	guards []pipeline.Stage
}

// Register adds a route below the group's prefix.
func (g *Group) Register(method, pattern string, stages ...pipeline.Stage) {
	g.table.add(method, joinPath(g.prefix, pattern), g.guards, stages)
}

// RegisterGroup nests another group; its guards run after this group's.
func (g *Group) RegisterGroup(prefix string, guards []pipeline.Stage, routes func(g *Group)) {
	all := make([]pipeline.Stage, 0, len(g.guards)+len(guards))
	all = append(all, g.guards...)
	all = append(all, guards...)
	routes(&Group{table: g.table, prefix: joinPath(g.prefix, prefix), guards: all})
}

var _ Registrar = (*Table)(nil)
var _ Registrar = (*Group)(nil)

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
