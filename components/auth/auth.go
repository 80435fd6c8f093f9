// components/auth/auth.go
//
// Relay authentication component – login and guarded resources.
//
// Routes
// ------
//   POST /login         JSON {username, password}; issues a signed token
//   GET  /secret-data   requires the X-API-Key header
//   GET  /me            requires "Authorization: Bearer <token>"
//   GET  /me/admin      bearer token whose role is admin
//
//------------------------------------------------------------------------------

package auth

import (
	"errors"
	"net/http"

	iauth "github.com/yanizio/relay/internal/auth"
	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/guard"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// APIKeyHeader carries the shared key for /secret-data.
const APIKeyHeader = "X-API-Key"

// Component encapsulates login functionality.
type Component struct{}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Register component at program start.
func init() { component.Register(&Component{}) }

// Mount registers the login route and the guarded resources.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	if env.Config == nil || env.Tokens == nil {
		return errors.New("auth: config and token service are required")
	}
	creds := iauth.Credentials{
		Username: env.Config.Auth.LoginUser,
		Password: env.Config.Auth.LoginPassword,
		Role:     env.Config.Auth.LoginRole,
	}

	r.Register(http.MethodPost, "/login", pipeline.Handle("login", login(creds, env.Tokens)))
	r.Register(http.MethodGet, "/secret-data",
		guard.APIKey(APIKeyHeader, env.Config.Auth.APIKey),
		pipeline.Handle("secret-data", func(*pipeline.Request) (pipeline.Response, error) {
			return pipeline.JSON(http.StatusOK, map[string]string{"message": "Access granted to secret data!"}), nil
		}),
	)
	r.RegisterGroup("/me", []pipeline.Stage{guard.Bearer(env.Tokens)}, func(g *routing.Group) {
		g.Register(http.MethodGet, "/", pipeline.Handle("me", me))
		g.Register(http.MethodGet, "/admin", guard.RequireRole("admin"), pipeline.Handle("me-admin", me))
	})
	return nil
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

// LoginReply is the success body of POST /login.
type LoginReply struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func login(creds iauth.Credentials, tokens *iauth.Tokens) pipeline.HandlerFunc {
	return func(req *pipeline.Request) (pipeline.Response, error) {
		body := req.Object()
		username, _ := body["username"].(string)
		password, _ := body["password"].(string)

		if !creds.Check(username, password) {
			return pipeline.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"}), nil
		}
		token, err := tokens.Issue(iauth.Identity{Subject: creds.Username, Role: creds.Role})
		if err != nil {
			return pipeline.Response{}, pipeline.Internal(err)
		}
		return pipeline.JSON(http.StatusOK, LoginReply{Message: "Login Successful", Token: token}), nil
	}
}

func me(req *pipeline.Request) (pipeline.Response, error) {
	id, ok := iauth.IdentityFrom(req)
	if !ok {
		return pipeline.Response{}, pipeline.Unauthorized(guard.MsgUnauthorized)
	}
	return pipeline.JSON(http.StatusOK, id), nil
}
