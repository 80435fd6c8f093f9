// internal/validation/stage.go
//
// Pipeline stages around Rules.

package validation

import (
	"net/http"

	"github.com/yanizio/relay/internal/pipeline"
)

// ErrorsKey is the attachment key holding []FieldError.
const ErrorsKey = "validation.errors"

// Rules is an ordered set of chains.
type Rules []*Chain

// Run validates req and writes sanitized values back.  It returns every
// violation in chain order.
func (rs Rules) Run(req *pipeline.Request) []FieldError {
	var all []FieldError
	for _, c := range rs {
		switch c.location {
		case InQuery:
			raw, present := req.Query[c.field]
			var v any
			if present && len(raw) > 0 {
				v = raw[0]
			}
			clean, errs := c.run(v, present)
			if present {
				if s, ok := clean.(string); ok {
					req.Query.Set(c.field, s)
				}
			}
			all = append(all, errs...)
		default:
			body := req.Object()
			v, present := body[c.field]
			clean, errs := c.run(v, present)
			if present {
				body[c.field] = clean
			}
			all = append(all, errs...)
		}
	}
	return all
}

// Errors returns the violations recorded on req so far.
func Errors(req *pipeline.Request) []FieldError {
	if v, ok := req.Get(ErrorsKey); ok {
		if errs, ok := v.([]FieldError); ok {
			return errs
		}
	}
	return nil
}

// Check runs rules and records violations on the request.  It always
// proceeds; Reject decides.
func Check(rules Rules) pipeline.Stage {
	return pipeline.Func("validate", func(req *pipeline.Request) pipeline.Result {
		errs := append(Errors(req), rules.Run(req)...)
		req.Set(ErrorsKey, errs)
		return pipeline.Next()
	})
}

// RejectBody is the 400 reply produced by Reject.
type RejectBody struct {
	Success bool         `json:"success"`
	Errors  []FieldError `json:"errors"`
}

// Reject short-circuits with 400 and the full violation list when any was
// recorded.
func Reject() pipeline.Stage {
	return pipeline.Func("validate-reject", func(req *pipeline.Request) pipeline.Result {
		errs := Errors(req)
		if len(errs) == 0 {
			return pipeline.Next()
		}
		return pipeline.Respond(pipeline.JSON(http.StatusBadRequest, RejectBody{Errors: errs}))
	})
}

// Gate is Check followed by Reject.
func Gate(rules Rules) []pipeline.Stage {
	return []pipeline.Stage{Check(rules), Reject()}
}
