// internal/pipeline/stage.go
//
// Stage contract, explicit results, and the async adapter.
//
// Context
// -------
// A stage returns exactly one Result: Next (continue), Respond (stop with a
// reply), or Fail (stop and hand the error to the error stage).  There is
// no implicit continuation, so a stage cannot both reply and continue.
//
// Async stages run their work on a separate goroutine.  The driver blocks
// on the outcome, so a failure after suspension arrives through the same
// Result channel as a synchronous one.

package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
)

type outcome uint8

const (
	outcomeNext outcome = iota
	outcomeRespond
	outcomeFail
)

// Result is the explicit outcome of one stage.
type Result struct {
	kind outcome
	resp Response
	err  error
}

// Next continues with the following stage.
func Next() Result { return Result{kind: outcomeNext} }

// Respond stops the pipeline with resp.  The error stage does not run.
func Respond(resp Response) Result { return Result{kind: outcomeRespond, resp: resp} }

// Fail stops the pipeline and routes err to the error stage.  A nil err is
// promoted to an internal failure so it cannot be mistaken for success.
func Fail(err error) Result {
	if err == nil {
		err = fmt.Errorf("stage failed without an error")
	}
	return Result{kind: outcomeFail, err: err}
}

// IsNext, Response, and Err let tests and wrappers inspect a Result.
func (r Result) IsNext() bool { return r.kind == outcomeNext }

func (r Result) Response() (Response, bool) { return r.resp, r.kind == outcomeRespond }

func (r Result) Err() error {
	if r.kind == outcomeFail {
		return r.err
	}
	return nil
}

// Stage is one step of a pipeline.
type Stage interface {
	Name() string
	Run(req *Request) Result
}

type funcStage struct {
	name string
	fn   func(*Request) Result
}

func (s funcStage) Name() string            { return s.name }
func (s funcStage) Run(req *Request) Result { return s.fn(req) }

// Func adapts fn into a named Stage.
func Func(name string, fn func(req *Request) Result) Stage {
	return funcStage{name: name, fn: fn}
}

// HandlerFunc is the shape of a terminal route handler.
type HandlerFunc func(req *Request) (Response, error)

// Handle turns a handler into a stage: an error fails, otherwise it responds.
func Handle(name string, fn HandlerFunc) Stage {
	return Func(name, func(req *Request) Result {
		resp, err := fn(req)
		if err != nil {
			return Fail(err)
		}
		return Respond(resp)
	})
}

type asyncStage struct {
	name string
	fn   func(ctx context.Context, req *Request) Result
}

// Async wraps work that may block.  fn runs on its own goroutine; panics
// there become failures that carry the goroutine's stack.
func Async(name string, fn func(ctx context.Context, req *Request) Result) Stage {
	return asyncStage{name: name, fn: fn}
}

// HandleAsync is Handle for blocking handlers.
func HandleAsync(name string, fn func(ctx context.Context, req *Request) (Response, error)) Stage {
	return Async(name, func(ctx context.Context, req *Request) Result {
		resp, err := fn(ctx, req)
		if err != nil {
			return Fail(err)
		}
		return Respond(resp)
	})
}

func (s asyncStage) Name() string { return s.name }

func (s asyncStage) Run(req *Request) Result {
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- Fail(panicError(p, debug.Stack()))
			}
		}()
		done <- s.fn(req.Context(), req)
	}()
	// The stage owns req until fn reports, so no select on ctx here.
	return <-done
}

func panicError(p any, stack []byte) *Error {
	msg := fmt.Sprint(p)
	var cause error
	if err, ok := p.(error); ok {
		cause = err
		msg = err.Error()
	}
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Err: cause, Stack: stack}
}
