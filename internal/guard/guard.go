// internal/guard/guard.go
//
// Credential guards.
//
// Context
// -------
// A guard inspects the request and either proceeds or short-circuits with a
// fixed 401/403 reply.  Replies never say which part of a credential was
// wrong and never echo the expected value.  Comparisons run in constant
// time.
//
// Guards are ordinary stages, so they can sit in the global list, in a
// group's guard list, or in a single route.
//
// Notes
// -----
// • Misconfiguration (empty expected secret, empty role list) panics at
//   startup instead of failing open.
// • Oxford commas, two spaces after periods.

package guard

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/auth"
	"github.com/yanizio/relay/internal/pipeline"
)

// Fixed rejection messages.
const (
	MsgInvalidAPIKey = "Invalid API Key"
	MsgNotAdmin      = "Forbidden: You are not an Admin."
	MsgUnauthorized  = "Unauthorized"
	MsgForbidden     = "Forbidden"
)

// reject is the short-circuit reply every guard uses.
func reject(status int, msg string) pipeline.Result {
	return pipeline.Respond(pipeline.JSON(status, pipeline.ErrorBody{Success: false, Error: msg}))
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// APIKey requires header to equal expected.  Mismatch or absence → 401.
func APIKey(header, expected string) pipeline.Stage {
	if expected == "" {
		panic("guard.APIKey: expected key must not be empty")
	}
	return pipeline.Func("api-key", func(req *pipeline.Request) pipeline.Result {
		if !equal(req.Header.Get(header), expected) {
			zap.S().Debugw("api key rejected", "path", req.Path)
			return reject(http.StatusUnauthorized, MsgInvalidAPIKey)
		}
		return pipeline.Next()
	})
}

// QueryParam requires query parameter name to equal expected.  Mismatch or
// absence short-circuits with status and msg.
func QueryParam(name, expected string, status int, msg string) pipeline.Stage {
	if expected == "" {
		panic("guard.QueryParam: expected value must not be empty")
	}
	return pipeline.Func("query-"+name, func(req *pipeline.Request) pipeline.Result {
		if !equal(req.Query.Get(name), expected) {
			return reject(status, msg)
		}
		return pipeline.Next()
	})
}

// AdminPassword is the admin-area group guard: ?password=<expected> or 403.
func AdminPassword(expected string) pipeline.Stage {
	return QueryParam("password", expected, http.StatusForbidden, MsgNotAdmin)
}

// Verifier checks a bearer token.  *auth.Tokens satisfies it.
type Verifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Bearer requires "Authorization: Bearer <token>" accepted by v.  The
// verified identity is attached for later stages.
func Bearer(v Verifier) pipeline.Stage {
	return pipeline.Func("bearer", func(req *pipeline.Request) pipeline.Result {
		h := req.Header.Get("Authorization")
		scheme, raw, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			return reject(http.StatusUnauthorized, MsgUnauthorized)
		}
		id, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			return reject(http.StatusUnauthorized, MsgUnauthorized)
		}
		auth.SetIdentity(req, id)
		return pipeline.Next()
	})
}

// RequireRole passes when the attached identity holds ANY of names.  No
// identity → 401, wrong role → 403.
func RequireRole(names ...string) pipeline.Stage {
	if len(names) == 0 {
		panic("guard.RequireRole: at least one role name must be supplied")
	}
	allow := make(map[string]struct{}, len(names))
	for _, n := range names {
		allow[n] = struct{}{}
	}
	return pipeline.Func("require-role", func(req *pipeline.Request) pipeline.Result {
		id, ok := auth.IdentityFrom(req)
		if !ok {
			return reject(http.StatusUnauthorized, MsgUnauthorized)
		}
		if _, ok := allow[id.Role]; !ok {
			return reject(http.StatusForbidden, MsgForbidden)
		}
		return pipeline.Next()
	})
}
