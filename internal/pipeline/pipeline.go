// internal/pipeline/pipeline.go
//
// Ordered stage driver with a single terminal error stage.
//
// Context
// -------
// A Pipeline is assembled once at startup, per route, from the global
// stages, any group guards, and the route's own stages.  Dispatch walks the
// list in order and stops at the first Respond or Fail.  A Fail (returned
// or panicked) invokes the error stage exactly once.  If the error stage
// itself panics the caller still gets a bare 500 with no detail.
//
// Notes
// -----
// • ErrorStage is its own func type, so an ordinary Stage cannot be passed
//   where the error stage is expected.
// • Pipelines are read-only after New and safe to share across goroutines.
// • Oxford commas, two spaces after periods.

package pipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrorStage converts a failure into the reply the client sees.
type ErrorStage func(req *Request, err error) Response

// ErrNoErrorStage is returned by New when onError is nil.
var ErrNoErrorStage = errors.New("pipeline: an error stage is required")

// errExhausted is the failure used when every stage proceeded.
var errExhausted = errors.New("no stage produced a response")

// Pipeline is an immutable, ordered stage list plus its error stage.
type Pipeline struct {
	stages  []Stage
	onError ErrorStage
}

// New builds a pipeline.  Stages run in the order given.
func New(onError ErrorStage, stages ...Stage) (*Pipeline, error) {
	if onError == nil {
		return nil, ErrNoErrorStage
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("pipeline: stage %d is nil", i)
		}
	}
	return &Pipeline{
		stages:  append([]Stage(nil), stages...),
		onError: onError,
	}, nil
}

// Must is New for static wiring where a bad pipeline is a programming error.
func Must(onError ErrorStage, stages ...Stage) *Pipeline {
	p, err := New(onError, stages...)
	if err != nil {
		panic(err)
	}
	return p
}

// With returns a new pipeline that runs p's stages followed by more.
func (p *Pipeline) With(more ...Stage) (*Pipeline, error) {
	all := make([]Stage, 0, len(p.stages)+len(more))
	all = append(all, p.stages...)
	all = append(all, more...)
	return New(p.onError, all...)
}

// Names lists stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name()
	}
	return out
}

// Dispatch runs req through the stage list and returns the reply.
func (p *Pipeline) Dispatch(req *Request) Response {
	for _, s := range p.stages {
		res := runStage(s, req)
		switch res.kind {
		case outcomeNext:
			continue
		case outcomeRespond:
			return finish(req, res.resp)
		default:
			return finish(req, p.fail(req, res.err))
		}
	}
	return finish(req, p.fail(req, Internal(errExhausted)))
}

// runStage converts a panic inside s into a failure.
func runStage(s Stage, req *Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Fail(panicError(rec, debug.Stack()))
		}
	}()
	return s.Run(req)
}

// fail invokes the error stage once and falls back to a bare 500 if it
// panics.
func (p *Pipeline) fail(req *Request, err error) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = internalServerError()
		}
	}()
	return p.onError(req, err)
}

// finish merges headers accumulated on req into resp.  Headers set by the
// response itself win.
func finish(req *Request, resp Response) Response {
	if len(req.ResponseHeader) == 0 {
		return resp
	}
	if resp.Header == nil {
		resp.Header = make(map[string][]string, len(req.ResponseHeader))
	}
	for k, vv := range req.ResponseHeader {
		if _, ok := resp.Header[k]; ok {
			continue
		}
		resp.Header[k] = append([]string(nil), vv...)
	}
	return resp
}
