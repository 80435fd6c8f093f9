// components/home/home.go
//
// Home component – landing routes and deliberate failure demos.
//
// Routes
// ------
//   GET /          plain-text welcome
//   GET /about     plain-text about page
//   GET /json      small JSON document
//   GET /search    echoes ?city=, prompts when it is missing
//   GET /slow      answers after a delay, off the request goroutine
//   GET /error     responds 500 directly (no error stage)
//   GET /broken    fails with an explicit 500 (through the error stage)
//
//------------------------------------------------------------------------------

package home

import (
	"context"
	"net/http"
	"time"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Component serves the landing routes.
type Component struct {
	SlowDelay time.Duration
}

// Name returns the canonical component key.
func (c *Component) Name() string { return "home" }

// Register component at program start.
func init() { component.Register(&Component{SlowDelay: time.Second}) }

// Mount registers every route.
func (c *Component) Mount(r routing.Registrar, _ *component.Env) error {
	r.Register(http.MethodGet, "/", text("home", "Welcome to the Home Page!"))
	r.Register(http.MethodGet, "/about", text("about", "This is the About Page."))
	r.Register(http.MethodGet, "/json", pipeline.Handle("json", func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.JSON(http.StatusOK, map[string]string{"message": "This is JSON data"}), nil
	}))
	r.Register(http.MethodGet, "/search", pipeline.Handle("search", search))
	r.Register(http.MethodGet, "/slow", pipeline.HandleAsync("slow", c.slow))
	r.Register(http.MethodGet, "/error", pipeline.Func("error", func(*pipeline.Request) pipeline.Result {
		return pipeline.Respond(pipeline.Text(http.StatusInternalServerError, "Something broke!"))
	}))
	r.Register(http.MethodGet, "/broken", pipeline.Func("broken", func(*pipeline.Request) pipeline.Result {
		return pipeline.Fail(pipeline.Errorf(http.StatusInternalServerError, "This route is intentionally broken!"))
	}))
	return nil
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func text(name, body string) pipeline.Stage {
	return pipeline.Handle(name, func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, body), nil
	})
}

func search(req *pipeline.Request) (pipeline.Response, error) {
	city := req.Query.Get("city")
	if city == "" {
		return pipeline.Text(http.StatusOK, "Please provide a city in the query."), nil
	}
	return pipeline.Text(http.StatusOK, "Searching for results in "+city+"..."), nil
}

func (c *Component) slow(ctx context.Context, _ *pipeline.Request) (pipeline.Response, error) {
	t := time.NewTimer(c.SlowDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return pipeline.Response{}, ctx.Err()
	case <-t.C:
	}
	return pipeline.Text(http.StatusOK, "Sorry I am late!"), nil
}
