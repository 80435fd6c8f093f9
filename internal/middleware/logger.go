package middleware

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/pipeline"
)

// RedactedParams are query parameters whose values never reach the log.
// Matching is case-insensitive.
var RedactedParams = []string{"password", "token", "access_token", "api_key", "apikey", "secret"}

const redacted = "REDACTED"

// Logger records each arrival.  Completion (status, duration) is logged by
// the routing adapter once the reply is known.
func Logger(log *zap.SugaredLogger) pipeline.Stage {
	if log == nil {
		log = zap.S()
	}
	return pipeline.Func("logger", func(req *pipeline.Request) pipeline.Result {
		fields := []any{"method", req.Method, "path", req.Path}
		if q := req.HTTP(); q != nil && q.URL.RawQuery != "" {
			fields = append(fields, "query", redactQuery(q.URL.RawQuery))
		}
		if id, ok := req.Get(pipeline.RequestIDKey); ok {
			fields = append(fields, "request_id", id)
		}
		log.Infow("request received", fields...)
		return pipeline.Next()
	})
}

// redactQuery masks credential values.  Unparseable queries are dropped
// whole.
func redactQuery(raw string) string {
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	for k, vs := range vals {
		if !sensitive(k) {
			continue
		}
		for i := range vs {
			vs[i] = redacted
		}
	}
	return vals.Encode()
}

func sensitive(key string) bool {
	for _, p := range RedactedParams {
		if strings.EqualFold(key, p) {
			return true
		}
	}
	return false
}
