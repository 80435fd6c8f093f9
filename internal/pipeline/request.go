// internal/pipeline/request.go
//
// Per-call request context handed to every stage.
//
// Context
// -------
// A Request is built once per inbound HTTP call by the routing adapter and
// then threaded through the stage list in order.  Stages read the method,
// path, headers, query, and path parameters, may replace the decoded body
// (sanitizers do), and share intermediate results through the attachment
// map.  Nothing here is safe for concurrent use; a request belongs to one
// goroutine at a time.
//
// Notes
// -----
// • Body stays `any` until a parsing stage decodes it.  Object() gives
//   validators a map view without caring what the parser produced.
// • ResponseHeader collects headers that must ride on whatever response is
//   eventually produced, including error responses.
// • Oxford commas, two spaces after periods.

package pipeline

import (
	"context"
	"net/http"
	"net/url"
)

// File is an uploaded part buffered entirely in memory.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Request is the mutable per-call record every stage operates on.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Params map[string]string

	Body    any
	RawBody []byte
	Files   map[string]*File

	// ResponseHeader is merged into the final response by Dispatch.
	ResponseHeader http.Header

	attach map[string]any
	ctx    context.Context
	raw    *http.Request
}

// NewRequest wraps r.  The caller fills Params once routing has matched.
func NewRequest(r *http.Request) *Request {
	return &Request{
		Method:         r.Method,
		Path:           r.URL.Path,
		Header:         r.Header,
		Query:          r.URL.Query(),
		Params:         map[string]string{},
		Files:          map[string]*File{},
		ResponseHeader: http.Header{},
		attach:         map[string]any{},
		ctx:            r.Context(),
		raw:            r,
	}
}

// Context returns the inbound request context.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// HTTP exposes the underlying *http.Request for collaborators that need the
// stream itself (multipart readers, remote address).  May be nil in tests.
func (r *Request) HTTP() *http.Request { return r.raw }

// Set stores an attachment under key, replacing any earlier value.
func (r *Request) Set(key string, v any) {
	if r.attach == nil {
		r.attach = map[string]any{}
	}
	r.attach[key] = v
}

// Get returns the attachment stored under key.
func (r *Request) Get(key string) (any, bool) {
	v, ok := r.attach[key]
	return v, ok
}

// Param returns a path parameter or "".
func (r *Request) Param(name string) string { return r.Params[name] }

// Object returns the body as a JSON-style object.  A body that is not an
// object yields an empty map so validators report missing fields instead of
// crashing.  The returned map is the live body when one exists.
func (r *Request) Object() map[string]any {
	if m, ok := r.Body.(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	if r.Body == nil {
		r.Body = m
	}
	return m
}
