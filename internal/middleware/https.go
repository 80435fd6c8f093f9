// Package middleware holds the ambient stages every route shares: request
// ids, arrival logging, security headers, CORS, HTTPS enforcement, and JSON
// body decoding.
package middleware

import (
	"net/http"
	"strings"

	"github.com/yanizio/relay/internal/pipeline"
)

// ForceHTTPS answers plain-HTTP requests with a 308 to the HTTPS URL.
// Requests that are already TLS, that arrive through a proxy reporting
// https, or that target localhost pass through unchanged.
func ForceHTTPS() pipeline.Stage {
	return pipeline.Func("force-https", func(req *pipeline.Request) pipeline.Result {
		r := req.HTTP()
		if r == nil || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			return pipeline.Next()
		}
		host := stripPort(r.Host)
		if host == "" || host == "localhost" || host == "127.0.0.1" {
			return pipeline.Next()
		}

		target := "https://" + r.Host + r.URL.RequestURI()
		return pipeline.Respond(pipeline.Response{
			Status: http.StatusPermanentRedirect,
			Header: http.Header{"Location": {target}},
		})
	})
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
