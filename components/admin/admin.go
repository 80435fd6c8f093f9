// components/admin/admin.go
//
// Admin component – a route group behind the admin password guard.  Every
// route under /admin requires ?password=<auth.admin_password>; anything
// else is answered 403 before the route's own stages run.

package admin

import (
	"errors"
	"net/http"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/guard"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
)

var _ component.Component = (*Component)(nil)

// Component mounts /admin.
type Component struct{}

func (c *Component) Name() string { return "admin" }

func init() { component.Register(&Component{}) }

// Mount registers the guarded group.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	if env.Config == nil {
		return errors.New("admin: config is required")
	}
	guards := []pipeline.Stage{guard.AdminPassword(env.Config.Auth.AdminPassword)}
	r.RegisterGroup("/admin", guards, func(g *routing.Group) {
		g.Register(http.MethodGet, "/", reply("admin-dashboard", "Welcome to the Admin Dashboard!"))
		g.Register(http.MethodGet, "/users", reply("admin-users", "Managing all users."))
	})
	return nil
}

func reply(name, body string) pipeline.Stage {
	return pipeline.Handle(name, func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, body), nil
	})
}
