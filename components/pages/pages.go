// components/pages/pages.go
//
// Pages component – server-rendered HTML views.
//
// Routes
// ------
//   GET /pages/users     users.html with a fixed directory listing
//   GET /pages/contact   contact.html with the contact card
//
// Both views receive the request's client info as .Client so templates can
// use the browser/os helpers.
//
//------------------------------------------------------------------------------

package pages

import (
	"errors"
	"net/http"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/requestinfo"
	"github.com/yanizio/relay/internal/routing"
)

var _ component.Component = (*Component)(nil)

// Component mounts /pages.
type Component struct{}

func (c *Component) Name() string { return "pages" }

func init() { component.Register(&Component{}) }

// Person is one row of the users page.
type Person struct {
	Name  string
	Email string
}

// Contact is the contact page card.
type Contact struct {
	PageTitle string
	Phone     string
	Email     string
}

var directory = []Person{
	{Name: "Alice", Email: "alice@example.com"},
	{Name: "Bob", Email: "bob@example.com"},
	{Name: "Charlie", Email: "charlie@example.com"},
}

// Mount registers the page routes.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	if env.Views == nil {
		return errors.New("pages: view renderer is required")
	}
	r.RegisterGroup("/pages", nil, func(g *routing.Group) {
		g.Register(http.MethodGet, "/users", env.Views.Handle("users", func(req *pipeline.Request) (any, error) {
			return map[string]any{
				"Title":  "Users",
				"Users":  directory,
				"Client": requestinfo.From(req),
			}, nil
		}))
		g.Register(http.MethodGet, "/contact", env.Views.Handle("contact", func(req *pipeline.Request) (any, error) {
			return map[string]any{
				"Title": "Contact Us",
				"Contact": Contact{
					PageTitle: "Contact Us",
					Phone:     "123-456-7890",
					Email:     "info@myserver.com",
				},
				"Client": requestinfo.From(req),
			}, nil
		}))
	})
	return nil
}
