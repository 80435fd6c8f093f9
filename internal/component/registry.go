// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  At startup the binary
// blank-imports the components it wants, builds an Env, and calls
// MountAll, which hands every component the route table and, for those
// that implement Initializer, runs Init once before any route is
// registered.

package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/auth"
	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/routing"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/view"
)

// Env carries the shared services components are built from.  Fields a
// component does not use may be nil in tests.
type Env struct {
	Log    *zap.SugaredLogger
	Config *config.Config
	Store  store.Store
	Views  *view.Renderer
	Tokens *auth.Tokens
}

// Initializer is optional.  If a Component implements it, MountAll calls
// Init once before Mount.
type Initializer interface {
	Init(ctx context.Context, env *Env) error
}

// Component contract.
//
// Mount registers the component's routes, e.g.:
//
//	r.Register(http.MethodGet, "/about", pipeline.Handle("about", about))
//	r.RegisterGroup("/admin", guards, func(g *routing.Group) { ... })
type Component interface {
	Name() string
	Mount(r routing.Registrar, env *Env) error
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.  A second
// component with the same name is a programming error.
func Register(c Component) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[c.Name()]; dup {
		panic("component: duplicate registration of " + c.Name())
	}
	registry[c.Name()] = c
}

// All returns every registered component ordered by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// MountAll initializes and mounts every component in name order.
func MountAll(ctx context.Context, r routing.Registrar, env *Env) error {
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(ctx, env); err != nil {
				return fmt.Errorf("component %s: init: %w", c.Name(), err)
			}
		}
		if err := c.Mount(r, env); err != nil {
			return fmt.Errorf("component %s: mount: %w", c.Name(), err)
		}
		if env.Log != nil {
			env.Log.Debugw("component mounted", "component", c.Name())
		}
	}
	return nil
}
