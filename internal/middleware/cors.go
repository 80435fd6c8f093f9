// internal/middleware/cors.go
//
// CORS stage.
//
// Header decisions are delegated to rs/cors.  The stage runs its handler
// against a header-capturing writer and queues whatever it wrote on the
// reply.  Preflight requests (OPTIONS with Access-Control-Request-Method)
// are answered immediately with 204, before any route matching matters.
//
// Notes
// -----
// • An empty origin list allows any origin ("*").  Credentials are only
//   advertised for explicit origins.
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/yanizio/relay/internal/pipeline"
)

// CORSOptions configures the CORS stage.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int // seconds
}

var defaultCORSMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"}

// CORS returns the stage.
func CORS(opts CORSOptions) pipeline.Stage {
	c := cors.New(corsOptions(opts))

	return pipeline.Func("cors", func(req *pipeline.Request) pipeline.Result {
		r := req.HTTP()
		if r == nil || r.Header.Get("Origin") == "" {
			return pipeline.Next()
		}

		hw := &headerWriter{h: http.Header{}}
		c.HandlerFunc(hw, r)
		for k, vs := range hw.h {
			for _, v := range vs {
				req.ResponseHeader.Add(k, v)
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			return pipeline.Respond(pipeline.Response{Status: http.StatusNoContent})
		}
		return pipeline.Next()
	})
}

func corsOptions(opts CORSOptions) cors.Options {
	allowAll := len(opts.AllowedOrigins) == 0
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	o := cors.Options{
		AllowedMethods:       opts.AllowedMethods,
		AllowedHeaders:       opts.AllowedHeaders,
		MaxAge:               opts.MaxAge,
		AllowCredentials:     !allowAll,
		OptionsSuccessStatus: http.StatusNoContent,
	}
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = defaultCORSMethods
	}
	if len(o.AllowedHeaders) == 0 {
		// Echo whatever the preflight asks for.
		o.AllowedHeaders = []string{"*"}
	}
	if allowAll {
		o.AllowedOrigins = []string{"*"}
	} else {
		o.AllowedOrigins = opts.AllowedOrigins
	}
	return o
}

// headerWriter captures the headers rs/cors writes; the body and status
// are decided by the pipeline.
type headerWriter struct {
	h http.Header
}

func (w *headerWriter) Header() http.Header         { return w.h }
func (w *headerWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *headerWriter) WriteHeader(int)             {}
