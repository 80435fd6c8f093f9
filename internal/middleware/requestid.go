package middleware

import (
	"github.com/google/uuid"

	"github.com/yanizio/relay/internal/pipeline"
)

// RequestIDHeader carries the id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestID attaches a request id and echoes it on the response.  A
// well-formed inbound id is reused so a proxy's id survives.
func RequestID() pipeline.Stage {
	return pipeline.Func("request-id", func(req *pipeline.Request) pipeline.Result {
		id := req.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		req.Set(pipeline.RequestIDKey, id)
		req.ResponseHeader.Set(RequestIDHeader, id)
		return pipeline.Next()
	})
}
