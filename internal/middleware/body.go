package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/yanizio/relay/internal/pipeline"
)

// JSONBody decodes application/json bodies into Request.Body.  Other
// content types are left for specialised stages (uploads).  Oversized or
// malformed JSON fails with 413 or 400.
func JSONBody(maxBytes int64) pipeline.Stage {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return pipeline.Func("json-body", func(req *pipeline.Request) pipeline.Result {
		r := req.HTTP()
		if r == nil || r.Body == nil || r.Body == http.NoBody {
			return pipeline.Next()
		}
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			return pipeline.Next()
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			return pipeline.Fail(pipeline.BadRequest("Could not read request body"))
		}
		if int64(len(raw)) > maxBytes {
			return pipeline.Fail(pipeline.Errorf(http.StatusRequestEntityTooLarge,
				"Request body exceeds %d bytes", maxBytes))
		}
		req.RawBody = raw
		if len(raw) == 0 {
			return pipeline.Next()
		}

		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			var se *json.SyntaxError
			if errors.As(err, &se) {
				return pipeline.Fail(pipeline.BadRequest(fmt.Sprintf("Malformed JSON at offset %d", se.Offset)))
			}
			return pipeline.Fail(pipeline.BadRequest("Malformed JSON body"))
		}
		req.Body = v
		return pipeline.Next()
	})
}
