// internal/middleware/security.go
//
// Security-header stage.
//
// Queues standard hardening headers on every response:
//
//   • Strict-Transport-Security  (two years, preload)
//   • Content-Security-Policy    (self-only default)
//   • X-Frame-Options            (click-jacking)
//   • X-Content-Type-Options     (MIME sniffing)
//   • Referrer-Policy            (drops path and query)
//   • Permissions-Policy         (powerful features off)
//
// Notes
// -----
// • Headers go into Request.ResponseHeader, which Dispatch merges into the
//   final reply without overwriting headers the handler set itself.  Error
//   replies carry them too.
// • Oxford commas, two spaces after periods.

package middleware

import "github.com/yanizio/relay/internal/pipeline"

var securityHeaders = [][2]string{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload"},
	{"Content-Security-Policy", "default-src 'self'; img-src 'self' data:; object-src 'none'; " +
		"base-uri 'self'; frame-ancestors 'none'"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// Security queues the security headers.
func Security() pipeline.Stage {
	return pipeline.Func("security-headers", func(req *pipeline.Request) pipeline.Result {
		for _, kv := range securityHeaders {
			if req.ResponseHeader.Get(kv[0]) == "" {
				req.ResponseHeader.Set(kv[0], kv[1])
			}
		}
		return pipeline.Next()
	})
}
