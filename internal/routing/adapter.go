// internal/routing/adapter.go
//
// net/http ↔ pipeline bridge.
//
// The adapter is the only place a Response touches the wire.  It builds the
// Request, copies chi URL params, dispatches, writes, and then records the
// access line and the request metrics.

package routing

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/relay/internal/metrics"
	"github.com/yanizio/relay/internal/pipeline"
)

func (t *Table) serve(pattern string, p *pipeline.Pipeline) http.HandlerFunc {
	label := pattern
	if label == "" {
		label = "unmatched"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		req := pipeline.NewRequest(r)
		if rc := chi.RouteContext(r.Context()); rc != nil {
			for i, k := range rc.URLParams.Keys {
				if k == "*" {
					continue
				}
				req.Params[k] = rc.URLParams.Values[i]
			}
		}

		resp := p.Dispatch(req)
		resp.Write(w)

		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", label,
			"status", status,
			"bytes", len(resp.Body),
			"duration", elapsed.String(),
		}
		if id, ok := req.Get(pipeline.RequestIDKey); ok {
			fields = append(fields, "request_id", id)
		}
		t.log.Infow("request completed", fields...)
	}
}
