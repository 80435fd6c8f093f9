// internal/pipeline/errorstage.go
//
// Default error stage: log, map status, reply with a uniform envelope.

package pipeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/metrics"
)

// ErrorBody is the envelope every failure reply uses.
type ErrorBody struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// ErrorHandler returns the standard error stage.  Client failures log at
// warn, everything else at error together with any captured stack.
func ErrorHandler(log *zap.SugaredLogger) ErrorStage {
	if log == nil {
		log = zap.S()
	}
	return func(req *Request, err error) Response {
		status := StatusOf(err)
		kind := KindOf(err)
		metrics.StageFailures.WithLabelValues(kind.String()).Inc()

		fields := []any{
			"method", req.Method,
			"path", req.Path,
			"status", status,
			"kind", kind.String(),
			"error", err.Error(),
		}
		if id, ok := req.Get(RequestIDKey); ok {
			fields = append(fields, "request_id", id)
		}

		var pe *Error
		hasPE := errors.As(err, &pe)
		if hasPE && pe.Err != nil {
			fields = append(fields, "cause", pe.Err.Error())
		}

		if status >= 500 {
			if hasPE && len(pe.Stack) > 0 {
				fields = append(fields, "stack", string(pe.Stack))
			}
			log.Errorw("request failed", fields...)
		} else {
			log.Warnw("request rejected", fields...)
		}

		body := ErrorBody{Success: false, Error: messageOf(err)}
		if hasPE && pe.Kind == KindValidation {
			body.Errors = pe.Fields
		}
		return JSON(status, body)
	}
}

// RequestIDKey is the attachment key under which the request id lives.
const RequestIDKey = "request_id"
