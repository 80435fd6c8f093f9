// internal/pipeline/response.go
//
// Terminal output of a pipeline run.

package pipeline

import (
	"encoding/json"
	"net/http"
)

// Response is a fully materialized reply.  It is written to the wire only by
// the routing adapter, never by stages.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON encodes v.  An unencodable value degrades to a bare 500.
func JSON(status int, v any) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return internalServerError()
	}
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   b,
	}
}

// Text returns a plain-text reply.
func Text(status int, s string) Response {
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte(s),
	}
}

// HTML returns an already-rendered HTML document.
func HTML(status int, s string) Response {
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(s),
	}
}

// internalServerError is the last-resort reply used when the error stage
// itself cannot produce one.  It never carries detail.
func internalServerError() Response {
	return Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Write copies the response onto w.
func (r Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, vv := range r.Header {
		h[k] = append([]string(nil), vv...)
	}
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}
