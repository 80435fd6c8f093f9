package core

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/store/memory"
	"github.com/yanizio/relay/internal/view"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTP:  config.HTTP{ListenAddr: ":0", MaxBodyBytes: 1 << 20},
		Store: config.Store{Driver: "memory"},
		Auth: config.Auth{
			APIKey:        "supersecret",
			AdminPassword: "1234",
			JWTSecret:     "0123456789abcdef0123",
			LoginUser:     "admin",
			LoginPassword: "123",
			LoginRole:     "admin",
			TokenTTL:      time.Hour,
		},
		Upload: config.Upload{MaxBytes: 1 << 20},
	}
}

func newApp(t *testing.T) *App {
	t.Helper()
	app, err := New(context.Background(), Options{
		Config: testConfig(),
		Log:    zap.NewNop().Sugar(),
		Store:  memory.New(),
		Views:  view.New(os.DirFS("../../views"), view.Options{}),
	})
	require.NoError(t, err)
	return app
}

func do(t *testing.T, h http.Handler, method, target string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestNewRequiresConfigAndStore(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestHomeRoutes(t *testing.T) {
	h := newApp(t).Handler

	rec := do(t, h, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the Home Page!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = do(t, h, http.MethodHead, "/about", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/search?city=Pune", nil, nil)
	assert.Equal(t, "Searching for results in Pune...", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/broken", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "This route is intentionally broken!", decode(t, rec)["error"])
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newApp(t).Handler, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Cannot GET /nowhere", body["error"])
}

func TestAPIv1Validation(t *testing.T) {
	h := newApp(t).Handler

	rec := do(t, h, http.MethodPost, "/api/v1/users", map[string]any{"email": "bad", "password": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs, _ := decode(t, rec)["errors"].([]any)
	assert.Len(t, errs, 2)

	rec = do(t, h, http.MethodPost, "/api/v1/users", map[string]any{"email": "", "password": "ab", "username": ""}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs, _ = decode(t, rec)["errors"].([]any)
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.(map[string]any)["message"].(string))
	}
	assert.Contains(t, msgs, "Email is required")
	assert.Contains(t, msgs, "Password must be at least 6 characters long")
	assert.Contains(t, msgs, "Username is required")

	rec = do(t, h, http.MethodPost, "/api/v1/users", map[string]any{
		"email": "Bob@Example.com", "password": "secret1", "username": " bob ",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user, _ := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "bob", user["username"])
}

func TestUsersLifecycle(t *testing.T) {
	h := newApp(t).Handler

	rec := do(t, h, http.MethodPost, "/users", map[string]any{"name": "Ann", "email": "ann@example.com", "age": 30}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	id, _ := data["id"].(string)
	require.NotEmpty(t, id)

	rec = do(t, h, http.MethodPost, "/users", map[string]any{"name": "Dup", "email": "ann@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPatch, "/users/"+id, map[string]any{"name": "Anna"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Anna", decode(t, rec)["data"].(map[string]any)["name"])

	rec = do(t, h, http.MethodPost, "/posts", map[string]any{"title": "Hi", "content": "First", "author": id}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/posts", nil, nil)
	posts := decode(t, rec)["data"].([]any)
	require.Len(t, posts, 1)
	author := posts[0].(map[string]any)["author"].(map[string]any)
	assert.Equal(t, "Anna", author["name"])

	rec = do(t, h, http.MethodDelete, "/users/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, m := range []string{http.MethodGet, http.MethodDelete} {
		rec = do(t, h, m, "/users/"+id, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, m)
		assert.Equal(t, "User not found", decode(t, rec)["error"])
	}

	rec = do(t, h, http.MethodPost, "/posts", map[string]any{"title": "x", "content": "y", "author": id}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuards(t *testing.T) {
	h := newApp(t).Handler

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/admin", nil, nil).Code)
	rec := do(t, h, http.MethodGet, "/admin/users?password=1234", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Managing all users.", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/secret-data", nil, nil).Code)
	rec = do(t, h, http.MethodGet, "/secret-data", nil, map[string]string{"X-API-Key": "supersecret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginThenMe(t *testing.T) {
	h := newApp(t).Handler

	rec := do(t, h, http.MethodPost, "/login", map[string]any{"username": "admin", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/login", map[string]any{"username": "admin", "password": "123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/me", nil, nil).Code)

	bearer := map[string]string{"Authorization": "Bearer " + token}
	rec = do(t, h, http.MethodGet, "/me/admin", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode(t, rec)["sub"])
}

func TestUpload(t *testing.T) {
	h := newApp(t).Handler

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("myFile", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hello upload"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "notes.txt", body["filename"])
	assert.EqualValues(t, len("hello upload"), body["size_in_bytes"])
}

func TestStatsCities(t *testing.T) {
	app := newApp(t)
	_, err := app.Env.Store.Collection("users").InsertMany(context.Background(), []store.Document{
		{"city": "Delhi", "age": 30.0},
		{"city": "Delhi", "age": 40.0},
		{"city": "London", "age": 50.0},
		{"city": "London", "age": 19.0},
	})
	require.NoError(t, err)

	rec := do(t, app.Handler, http.MethodGet, "/stats/cities?minAge=20", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "Delhi", first["_id"])
	assert.EqualValues(t, 2, first["totalUsers"])
	assert.EqualValues(t, 35, first["avgAge"])

	rec = do(t, app.Handler, http.MethodGet, "/stats/cities?minAge=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPages(t *testing.T) {
	h := newApp(t).Handler

	rec := do(t, h, http.MethodGet, "/pages/users", nil, map[string]string{"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Alice (alice@example.com)")

	rec = do(t, h, http.MethodGet, "/pages/contact", nil, nil)
	assert.Contains(t, rec.Body.String(), "123-456-7890")
}

func TestMetricsMounted(t *testing.T) {
	rec := do(t, newApp(t).Handler, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(context.Background(), config.Store{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(context.Background(), config.Store{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	_, err = OpenStore(context.Background(), config.Store{Driver: "redis"})
	require.Error(t, err)
}
