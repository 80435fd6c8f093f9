// components/users/users.go
//
// Users component – document CRUD over the `users` and `posts`
// collections.
//
// Routes
// ------
//   POST   /users             create (name, email required; age optional)
//   GET    /users             list
//   GET    /users/:id         fetch, 404 "User not found"
//   PATCH  /users/:id         partial update of the provided fields
//   DELETE /users/:id         delete, echoing the removed document
//   GET    /users/:id/posts   posts whose author is :id
//   POST   /posts             create (title, content, author id that exists)
//   GET    /posts             list with author expanded to {id, name, email}
//
// Every store call runs in an async stage, so a slow backend never blocks
// the pipeline goroutine and request cancellation reaches the driver.
// Successful replies use the {message, data} envelope.
//
//------------------------------------------------------------------------------

package users

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/validation"
)

// Collection names.
const (
	Users = "users"
	Posts = "posts"
)

const msgUserNotFound = "User not found"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component owns the user and post routes.
type Component struct {
	// Serializes the email uniqueness check with the insert or update.
	emailMu sync.Mutex
}

func (c *Component) Name() string { return "users" }

func init() { component.Register(&Component{}) }

// Init builds lookup indexes when the backend supports them.
func (c *Component) Init(ctx context.Context, env *component.Env) error {
	ix, ok := env.Store.(store.Indexer)
	if !ok {
		return nil
	}
	for _, idx := range [][2]string{{Users, "email"}, {Posts, "author"}} {
		if _, err := ix.EnsureIndex(ctx, idx[0], idx[1]); err != nil {
			return err
		}
	}
	return nil
}

// Mount registers every route.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	if env.Store == nil {
		return errors.New("users: store is required")
	}
	h := &handlers{c: c, users: env.Store.Collection(Users), posts: env.Store.Collection(Posts)}

	r.Register(http.MethodPost, "/users", append(validation.Gate(createRules()), pipeline.HandleAsync("users-create", h.create))...)
	r.Register(http.MethodGet, "/users", pipeline.HandleAsync("users-list", h.list))
	r.Register(http.MethodGet, "/users/:id", pipeline.HandleAsync("users-get", h.get))
	r.Register(http.MethodPatch, "/users/:id", append(validation.Gate(patchRules()), pipeline.HandleAsync("users-update", h.update))...)
	r.Register(http.MethodDelete, "/users/:id", pipeline.HandleAsync("users-delete", h.remove))
	r.Register(http.MethodGet, "/users/:id/posts", pipeline.HandleAsync("users-posts", h.userPosts))

	r.Register(http.MethodPost, "/posts", append(validation.Gate(postRules()), pipeline.HandleAsync("posts-create", h.createPost))...)
	r.Register(http.MethodGet, "/posts", pipeline.HandleAsync("posts-list", h.listPosts))
	return nil
}

/*──────────────────────────── Rules ────────────────────────────────────────*/

func createRules() validation.Rules {
	return validation.Rules{
		validation.Field("name").Trim().NotEmpty("A user must have a name"),
		validation.Field("email").Trim().Lowercase().
			NotEmpty("A user must have an email").Bail().
			IsEmail("Must be a valid email address"),
		validation.Field("age").Optional().IsNumeric("Age must be a number"),
	}
}

func patchRules() validation.Rules {
	return validation.Rules{
		validation.Field("name").Optional().Trim().NotEmpty("A user must have a name"),
		validation.Field("email").Optional().Trim().Lowercase().
			NotEmpty("A user must have an email").Bail().
			IsEmail("Must be a valid email address"),
		validation.Field("age").Optional().IsNumeric("Age must be a number"),
	}
}

func postRules() validation.Rules {
	return validation.Rules{
		validation.Field("title").Trim().NotEmpty("A post must have a title"),
		validation.Field("content").NotEmpty("A post must have content"),
		validation.Field("author").Trim().NotEmpty("A post must have an author"),
	}
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

// Envelope is the success body of every route here.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Author is the expanded author of a listed post.
type Author struct {
	ID    string `json:"id"`
	Name  any    `json:"name"`
	Email any    `json:"email"`
}

type handlers struct {
	c     *Component
	users store.Collection
	posts store.Collection
}

func ok(status int, msg string, data any) pipeline.Response {
	return pipeline.JSON(status, Envelope{Message: msg, Data: data})
}

// notFound maps store.ErrNotFound to a 404 with msg and wraps anything
// else as internal.
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return pipeline.NotFound(msg)
	}
	return pipeline.Internal(err)
}

// pick copies the allowed fields out of the validated body.
func pick(body map[string]any, keys ...string) store.Document {
	d := store.Document{}
	for _, k := range keys {
		v, ok := body[k]
		if !ok {
			continue
		}
		if k == "age" {
			v = number(v)
		}
		d[k] = v
	}
	return d
}

// number turns a numeric string into float64; other values pass through.
func number(v any) any {
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return v
}

func (h *handlers) emailTaken(ctx context.Context, email any, except string) (bool, error) {
	if email == nil {
		return false, nil
	}
	found, err := h.users.Find(ctx, store.Filter{"email": email})
	if err != nil {
		return false, err
	}
	for _, d := range found {
		if d.ID() != except {
			return true, nil
		}
	}
	return false, nil
}

func (h *handlers) create(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	doc := pick(req.Object(), "name", "email", "age")

	h.c.emailMu.Lock()
	defer h.c.emailMu.Unlock()
	taken, err := h.emailTaken(ctx, doc["email"], "")
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	if taken {
		return pipeline.Response{}, pipeline.Errorf(http.StatusConflict, "A user with this email already exists")
	}

	created, err := h.users.Create(ctx, doc)
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	return ok(http.StatusCreated, "User created successfully!", created), nil
}

func (h *handlers) list(ctx context.Context, _ *pipeline.Request) (pipeline.Response, error) {
	all, err := h.users.Find(ctx, nil)
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	return ok(http.StatusOK, "Users retrieved successfully!", all), nil
}

func (h *handlers) get(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	d, err := h.users.FindByID(ctx, req.Param("id"))
	if err != nil {
		return pipeline.Response{}, notFound(err, msgUserNotFound)
	}
	return ok(http.StatusOK, "User found!", d), nil
}

func (h *handlers) update(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	id := req.Param("id")
	patch := pick(req.Object(), "name", "email", "age")

	h.c.emailMu.Lock()
	defer h.c.emailMu.Unlock()
	taken, err := h.emailTaken(ctx, patch["email"], id)
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	if taken {
		return pipeline.Response{}, pipeline.Errorf(http.StatusConflict, "A user with this email already exists")
	}

	d, err := h.users.Update(ctx, id, patch)
	if err != nil {
		return pipeline.Response{}, notFound(err, msgUserNotFound)
	}
	return ok(http.StatusOK, "User updated successfully!", d), nil
}

func (h *handlers) remove(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	d, err := h.users.Delete(ctx, req.Param("id"))
	if err != nil {
		return pipeline.Response{}, notFound(err, msgUserNotFound)
	}
	return ok(http.StatusOK, "User deleted successfully!", d), nil
}

func (h *handlers) userPosts(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	posts, err := h.posts.Find(ctx, store.Filter{"author": req.Param("id")})
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	return ok(http.StatusOK, "Post found!", posts), nil
}

func (h *handlers) createPost(ctx context.Context, req *pipeline.Request) (pipeline.Response, error) {
	doc := pick(req.Object(), "title", "content", "author")
	author, _ := doc["author"].(string)
	if _, err := h.users.FindByID(ctx, author); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return pipeline.Response{}, pipeline.Invalid([]pipeline.FieldError{{
				Field: "author", Message: "Author does not exist", Location: validation.InBody,
			}})
		}
		return pipeline.Response{}, pipeline.Internal(err)
	}

	created, err := h.posts.Create(ctx, doc)
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}
	return ok(http.StatusCreated, "Post created successfully!", created), nil
}

func (h *handlers) listPosts(ctx context.Context, _ *pipeline.Request) (pipeline.Response, error) {
	posts, err := h.posts.Find(ctx, nil)
	if err != nil {
		return pipeline.Response{}, pipeline.Internal(err)
	}

	authors := map[string]*Author{}
	for _, p := range posts {
		id, _ := p["author"].(string)
		a, seen := authors[id]
		if !seen {
			if u, err := h.users.FindByID(ctx, id); err == nil {
				a = &Author{ID: u.ID(), Name: u["name"], Email: u["email"]}
			} else if !errors.Is(err, store.ErrNotFound) {
				return pipeline.Response{}, pipeline.Internal(err)
			}
			authors[id] = a
		}
		if a != nil {
			p["author"] = a
		} else {
			p["author"] = nil
		}
	}
	return ok(http.StatusOK, "Posts retrieved successfully!", posts), nil
}
