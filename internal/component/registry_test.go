package component

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
)

type fake struct {
	name    string
	inited  *bool
	initErr error
}

func (f *fake) Name() string { return f.name }

func (f *fake) Init(context.Context, *Env) error {
	*f.inited = true
	return f.initErr
}

func (f *fake) Mount(r routing.Registrar, _ *Env) error {
	r.Register(http.MethodGet, "/"+f.name, pipeline.Handle(f.name, func(*pipeline.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, f.name), nil
	}))
	return nil
}

func withRegistry(t *testing.T) {
	t.Helper()
	mu.Lock()
	saved := registry
	registry = map[string]Component{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		registry = saved
		mu.Unlock()
	})
}

func TestMountAllInitsThenMountsInNameOrder(t *testing.T) {
	withRegistry(t)
	var aInit, bInit bool
	Register(&fake{name: "b", inited: &bInit})
	Register(&fake{name: "a", inited: &aInit})

	all := All()
	if len(all) != 2 || all[0].Name() != "a" || all[1].Name() != "b" {
		t.Fatalf("All() order wrong: %v", all)
	}

	tbl := routing.New(pipeline.ErrorHandler(nil))
	if err := MountAll(context.Background(), tbl, &Env{}); err != nil {
		t.Fatalf("MountAll: %v", err)
	}
	if !aInit || !bInit {
		t.Fatalf("Init not called: a=%v b=%v", aInit, bInit)
	}

	h, err := tbl.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/b", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "b" {
		t.Fatalf("GET /b = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMountAllStopsOnInitError(t *testing.T) {
	withRegistry(t)
	var inited bool
	boom := errors.New("boom")
	Register(&fake{name: "bad", inited: &inited, initErr: boom})

	err := MountAll(context.Background(), routing.New(pipeline.ErrorHandler(nil)), &Env{})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	withRegistry(t)
	var x bool
	Register(&fake{name: "dup", inited: &x})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Register(&fake{name: "dup", inited: &x})
}
