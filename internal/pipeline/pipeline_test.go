package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

// recorder builds a stage that appends its name to *trace and returns res.
func recorder(name string, trace *[]string, res Result) Stage {
	return Func(name, func(*Request) Result {
		*trace = append(*trace, name)
		return res
	})
}

func countingErrorStage(calls *int) ErrorStage {
	base := ErrorHandler(zap.NewNop().Sugar())
	return func(req *Request, err error) Response {
		*calls++
		return base(req, err)
	}
}

func newReq(t *testing.T) *Request {
	t.Helper()
	return NewRequest(httptest.NewRequest(http.MethodGet, "/x", nil))
}

func decodeError(t *testing.T, resp Response) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body, err)
	}
	return body
}

func TestNewRejectsMissingErrorStage(t *testing.T) {
	if _, err := New(nil, Func("a", func(*Request) Result { return Next() })); !errors.Is(err, ErrNoErrorStage) {
		t.Fatalf("want ErrNoErrorStage, got %v", err)
	}
}

func TestRespondShortCircuits(t *testing.T) {
	var trace []string
	calls := 0
	p := Must(countingErrorStage(&calls),
		recorder("one", &trace, Next()),
		recorder("two", &trace, Respond(Text(http.StatusOK, "done"))),
		recorder("three", &trace, Next()),
	)

	resp := p.Dispatch(newReq(t))

	if resp.Status != http.StatusOK || string(resp.Body) != "done" {
		t.Fatalf("unexpected response %d %q", resp.Status, resp.Body)
	}
	if len(trace) != 2 || trace[1] != "two" {
		t.Fatalf("stages after the responder ran: %v", trace)
	}
	if calls != 0 {
		t.Fatalf("error stage ran %d times on success", calls)
	}
}

func TestFailSkipsRemainingAndRunsErrorStageOnce(t *testing.T) {
	var trace []string
	calls := 0
	p := Must(countingErrorStage(&calls),
		recorder("one", &trace, Next()),
		recorder("two", &trace, Fail(Errorf(http.StatusTeapot, "short and stout"))),
		recorder("three", &trace, Respond(Text(http.StatusOK, "unreachable"))),
	)

	resp := p.Dispatch(newReq(t))

	if calls != 1 {
		t.Fatalf("error stage ran %d times, want 1", calls)
	}
	if len(trace) != 2 {
		t.Fatalf("stages after the failure ran: %v", trace)
	}
	if resp.Status != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", resp.Status)
	}
	body := decodeError(t, resp)
	if body.Success || body.Error != "short and stout" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestPlainErrorMapsTo500(t *testing.T) {
	calls := 0
	p := Must(countingErrorStage(&calls),
		Handle("boom", func(*Request) (Response, error) {
			return Response{}, errors.New("This route is intentionally broken!")
		}),
	)
	resp := p.Dispatch(newReq(t))
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := decodeError(t, resp).Error; got != "This route is intentionally broken!" {
		t.Fatalf("error = %q", got)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	calls := 0
	p := Must(countingErrorStage(&calls),
		Func("panics", func(*Request) Result { panic("kaboom") }),
	)
	resp := p.Dispatch(newReq(t))
	if calls != 1 || resp.Status != http.StatusInternalServerError {
		t.Fatalf("calls=%d status=%d", calls, resp.Status)
	}
	if got := decodeError(t, resp).Error; got != "kaboom" {
		t.Fatalf("error = %q", got)
	}
}

func TestAsyncFailureDeliveredLikeSync(t *testing.T) {
	var trace []string
	calls := 0
	p := Must(countingErrorStage(&calls),
		HandleAsync("crash", func(ctx context.Context, _ *Request) (Response, error) {
			select {
			case <-time.After(5 * time.Millisecond):
			case <-ctx.Done():
			}
			return Response{}, errors.New("This is a simulated crash!")
		}),
		recorder("after", &trace, Next()),
	)

	resp := p.Dispatch(newReq(t))

	if calls != 1 || len(trace) != 0 {
		t.Fatalf("calls=%d trace=%v", calls, trace)
	}
	if got := decodeError(t, resp).Error; got != "This is a simulated crash!" {
		t.Fatalf("error = %q", got)
	}
}

func TestAsyncPanicIsRecovered(t *testing.T) {
	calls := 0
	p := Must(countingErrorStage(&calls),
		Async("panics", func(context.Context, *Request) Result { panic(errors.New("lost")) }),
	)
	resp := p.Dispatch(newReq(t))
	if calls != 1 || resp.Status != http.StatusInternalServerError {
		t.Fatalf("calls=%d status=%d", calls, resp.Status)
	}
}

func TestAsyncSuccessResponds(t *testing.T) {
	p := Must(ErrorHandler(zap.NewNop().Sugar()),
		HandleAsync("ok", func(context.Context, *Request) (Response, error) {
			return JSON(http.StatusOK, map[string]bool{"success": true}), nil
		}),
	)
	if resp := p.Dispatch(newReq(t)); resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestErrorStagePanicFallsBackToBare500(t *testing.T) {
	p := Must(
		func(*Request, error) Response { panic("error stage broke") },
		Func("fails", func(*Request) Result { return Fail(errors.New("x")) }),
	)
	resp := p.Dispatch(newReq(t))
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Status)
	}
	if string(resp.Body) != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("fallback leaked detail: %q", resp.Body)
	}
}

func TestExhaustedPipelineFails(t *testing.T) {
	calls := 0
	p := Must(countingErrorStage(&calls), Func("noop", func(*Request) Result { return Next() }))
	resp := p.Dispatch(newReq(t))
	if calls != 1 || resp.Status != http.StatusInternalServerError {
		t.Fatalf("calls=%d status=%d", calls, resp.Status)
	}
}

func TestValidationFailureCarriesFields(t *testing.T) {
	fields := []FieldError{
		{Field: "email", Message: "Must be a valid email address"},
		{Field: "password", Message: "Password must be at least 6 characters long"},
	}
	p := Must(ErrorHandler(zap.NewNop().Sugar()),
		Func("validate", func(*Request) Result { return Fail(Invalid(fields)) }),
	)
	resp := p.Dispatch(newReq(t))
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Status)
	}
	if body := decodeError(t, resp); len(body.Errors) != 2 {
		t.Fatalf("errors = %+v", body.Errors)
	}
}

func TestResponseHeadersMergedIntoErrors(t *testing.T) {
	p := Must(ErrorHandler(zap.NewNop().Sugar()),
		Func("tag", func(req *Request) Result {
			req.ResponseHeader.Set("X-Request-Id", "abc")
			return Next()
		}),
		Func("fail", func(*Request) Result { return Fail(NotFound("User not found")) }),
	)
	resp := p.Dispatch(newReq(t))
	if resp.Header.Get("X-Request-Id") != "abc" {
		t.Fatalf("header missing: %v", resp.Header)
	}
	if resp.Status != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestWithAppendsStages(t *testing.T) {
	var trace []string
	base := Must(ErrorHandler(zap.NewNop().Sugar()), recorder("global", &trace, Next()))
	p, err := base.With(recorder("guard", &trace, Next()), recorder("handler", &trace, Respond(Text(200, "ok"))))
	if err != nil {
		t.Fatal(err)
	}
	p.Dispatch(newReq(t))
	want := []string{"global", "guard", "handler"}
	for i, n := range want {
		if i >= len(trace) || trace[i] != n {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if got := p.Names(); len(got) != 3 || got[0] != "global" {
		t.Fatalf("names = %v", got)
	}
}

func TestObjectOnNonObjectBody(t *testing.T) {
	req := newReq(t)
	req.Body = []any{1, 2}
	if m := req.Object(); len(m) != 0 {
		t.Fatalf("want empty map, got %v", m)
	}
}
