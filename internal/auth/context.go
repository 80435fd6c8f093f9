// internal/auth/context.go
//
// Identity attachment helpers.
//
// Usage
// -----
//     // A guard attaches the verified identity.
//     auth.SetIdentity(req, auth.Identity{Subject: "admin", Role: "admin"})
//
//     // Downstream handlers read it back.
//     id, ok := auth.IdentityFrom(req)
//
// Notes
// -----
// • The identity lives in the request's attachment map, not in
//   context.Context, so it is scoped to one pipeline run.
// • Oxford commas, two spaces after periods.

package auth

import "github.com/yanizio/relay/internal/pipeline"

// identityKey is the attachment key for Identity.
const identityKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// SetIdentity attaches id to req.
func SetIdentity(req *pipeline.Request, id Identity) {
	req.Set(identityKey, id)
}

// IdentityFrom returns the identity attached to req, if any.
func IdentityFrom(req *pipeline.Request) (Identity, bool) {
	v, ok := req.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
