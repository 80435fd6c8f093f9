// components/apiv1/apiv1.go
//
// Versioned API component.  Everything lives under /api/v1.
//
// Routes
// ------
//   GET  /api/v1          greeting
//   GET  /api/v1/hello    greeting
//   POST /api/v1/users    validated against rules/users.yaml; echoes the
//                         sanitized body with 201
//   GET  /api/v1/status   async success envelope with a timestamp
//   GET  /api/v1/crash    async failure, answered by the error stage
//
// Validation failures never reach the create handler: the rules run in
// full, then the reject stage answers 400 with every violation.
//
//------------------------------------------------------------------------------

package apiv1

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
	"github.com/yanizio/relay/internal/validation"
)

//go:embed rules/*.yaml
var rulesFS embed.FS

var _ component.Component = (*Component)(nil)

// Component mounts /api/v1.
type Component struct {
	userRules validation.Rules
}

func (c *Component) Name() string { return "apiv1" }

func init() {
	rs := validation.MustLoadFS(rulesFS, "rules/users.yaml")
	component.Register(&Component{userRules: rs.Rules})
}

// Mount registers the versioned group.
func (c *Component) Mount(r routing.Registrar, _ *component.Env) error {
	r.RegisterGroup("/api/v1", nil, func(g *routing.Group) {
		g.Register(http.MethodGet, "/", text("v1-root", "Hello from API v1!"))
		g.Register(http.MethodGet, "/hello", text("v1-hello", "This is the v1 hello endpoint."))

		create := append(validation.Gate(c.userRules), pipeline.Handle("v1-create-user", createUser))
		g.Register(http.MethodPost, "/users", create...)

		g.Register(http.MethodGet, "/status", pipeline.HandleAsync("v1-status", status))
		g.Register(http.MethodGet, "/crash", pipeline.Async("v1-crash", crash))
	})
	return nil
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func text(name, body string) pipeline.Stage {
	return pipeline.Handle(name, func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, body), nil
	})
}

// CreatedUser is the 201 body of POST /users.
type CreatedUser struct {
	Message string         `json:"message"`
	User    map[string]any `json:"user"`
}

func createUser(req *pipeline.Request) (pipeline.Response, error) {
	return pipeline.JSON(http.StatusCreated, CreatedUser{
		Message: "User created successfully!",
		User:    req.Object(),
	}), nil
}

// Status is the body of GET /status.
type Status struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func status(ctx context.Context, _ *pipeline.Request) (pipeline.Response, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Response{}, err
	}
	return pipeline.JSON(http.StatusOK, Status{
		Success:   true,
		Message:   "Welcome to the structured API!",
		Timestamp: time.Now().UTC(),
	}), nil
}

func crash(context.Context, *pipeline.Request) pipeline.Result {
	return pipeline.Fail(errors.New("This is a simulated crash!"))
}
