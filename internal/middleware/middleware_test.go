package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/relay/internal/pipeline"
)

func dispatch(t *testing.T, r *http.Request, stages ...pipeline.Stage) (pipeline.Response, *pipeline.Request) {
	t.Helper()
	req := pipeline.NewRequest(r)
	p := pipeline.Must(pipeline.ErrorHandler(zap.NewNop().Sugar()), stages...)
	return p.Dispatch(req), req
}

func ok() pipeline.Stage {
	return pipeline.Handle("ok", func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, "ok"), nil
	})
}

func TestSecurityHeadersOnSuccessAndFailure(t *testing.T) {
	resp, _ := dispatch(t, httptest.NewRequest(http.MethodGet, "/", nil), Security(), ok())
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	fail := pipeline.Func("fail", func(*pipeline.Request) pipeline.Result {
		return pipeline.Fail(pipeline.NotFound("User not found"))
	})
	resp, _ = dispatch(t, httptest.NewRequest(http.MethodGet, "/", nil), Security(), fail)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestRequestIDGeneratedAndReused(t *testing.T) {
	resp, req := dispatch(t, httptest.NewRequest(http.MethodGet, "/", nil), RequestID(), ok())
	id := resp.Header.Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	got, _ := req.Get(pipeline.RequestIDKey)
	assert.Equal(t, id, got)

	in := httptest.NewRequest(http.MethodGet, "/", nil)
	known := uuid.NewString()
	in.Header.Set(RequestIDHeader, known)
	resp, _ = dispatch(t, in, RequestID(), ok())
	assert.Equal(t, known, resp.Header.Get(RequestIDHeader))

	in = httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	resp, _ = dispatch(t, in, RequestID(), ok())
	assert.NotEqual(t, "not-a-uuid\r\n", resp.Header.Get(RequestIDHeader))
}

func TestForceHTTPS(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/users?x=1", nil)
	resp, _ := dispatch(t, r, ForceHTTPS(), ok())
	assert.Equal(t, http.StatusPermanentRedirect, resp.Status)
	assert.Equal(t, "https://example.com/users?x=1", resp.Header.Get("Location"))

	r = httptest.NewRequest(http.MethodGet, "http://localhost:8080/", nil)
	resp, _ = dispatch(t, r, ForceHTTPS(), ok())
	assert.Equal(t, http.StatusOK, resp.Status)

	r = httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	resp, _ = dispatch(t, r, ForceHTTPS(), ok())
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	r := httptest.NewRequest(http.MethodOptions, "/users", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	r.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, _ := dispatch(t, r, CORS(CORSOptions{}), ok())
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.EqualFold("content-type", resp.Header.Get("Access-Control-Allow-Headers")),
		"allow-headers = %q", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Contains(t, resp.Header.Values("Vary"), "Origin")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	stage := CORS(CORSOptions{AllowedOrigins: []string{"https://app.example"}})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	resp, _ := dispatch(t, r, stage, ok())
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example")
	resp, _ = dispatch(t, r, stage, ok())
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, _ = dispatch(t, r, stage, ok())
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestJSONBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","age":31}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	_, req := dispatch(t, r, JSONBody(0), ok())
	body := req.Object()
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, float64(31), body["age"])

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	r.Header.Set("Content-Type", "application/json")
	resp, _ := dispatch(t, r, JSONBody(0), ok())
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"far too long"}`))
	r.Header.Set("Content-Type", "application/json")
	resp, _ = dispatch(t, r, JSONBody(8), ok())
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Status)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`name=x`))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, req = dispatch(t, r, JSONBody(0), ok())
	assert.Nil(t, req.Body)
}

func TestLoggerRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	stage := Logger(zap.New(core).Sugar())

	resp, _ := dispatch(t, httptest.NewRequest(http.MethodGet, "/admin?password=1234&page=2&API_KEY=k", nil), stage, ok())
	assert.Equal(t, http.StatusOK, resp.Status)

	entries := logs.FilterMessage("request received").All()
	require.Len(t, entries, 1)
	q, _ := entries[0].ContextMap()["query"].(string)
	assert.NotContains(t, q, "1234")
	assert.NotContains(t, q, "=k")
	assert.Contains(t, q, "page=2")
	assert.Contains(t, q, "password=REDACTED")
}

func TestLoggerAlwaysProceeds(t *testing.T) {
	resp, _ := dispatch(t, httptest.NewRequest(http.MethodGet, "/?q=1", nil), Logger(zap.NewNop().Sugar()), ok())
	assert.Equal(t, http.StatusOK, resp.Status)
}
