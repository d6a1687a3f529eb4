package taxonomy

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vesper-home/hub/cmn"
)

// Role is the coarse per-user role carried in a Principal's JWT claims,
// realizing spec.md §1's "per-user authorization" for the taxonomy —
// the distilled spec names the requirement but leaves its shape open
// (SPEC_FULL §4.1.4).
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Principal is the authenticated identity a caller presents to
// place_method_call/register_watch.
type Principal struct {
	UserID string
	Roles  []string
}

func (p Principal) hasRole(r Role) bool {
	for _, got := range p.Roles {
		if got == string(r) {
			return true
		}
	}
	return false
}

// Admin is used by the hub's own internal callers (the rule engine, the
// certificate manager's reconciliation loop) and by tests.
var Admin = Principal{UserID: "hub", Roles: []string{string(RoleAdmin)}}

// Authorizer gates every taxonomy dispatch by (principal, verb). The
// default implementation is role-based; a deployment's user subsystem
// (out of core scope) can substitute a richer one.
type Authorizer interface {
	Allow(p Principal, method Method) bool
	AllowWatch(p Principal) bool
}

type roleAuthorizer struct{}

// RoleAuthorizer is the default Authorizer: admin can do anything,
// operator may Fetch/Send/Watch but not Delete, viewer may Fetch/Watch
// only.
var RoleAuthorizer Authorizer = roleAuthorizer{}

func (roleAuthorizer) Allow(p Principal, method Method) bool {
	if p.hasRole(RoleAdmin) {
		return true
	}
	switch method {
	case MethodFetch:
		return p.hasRole(RoleOperator) || p.hasRole(RoleViewer)
	case MethodSend:
		return p.hasRole(RoleOperator)
	case MethodDelete:
		return false
	default:
		return false
	}
}

func (roleAuthorizer) AllowWatch(p Principal) bool {
	return p.hasRole(RoleAdmin) || p.hasRole(RoleOperator) || p.hasRole(RoleViewer)
}

// claims is the JWT payload shape a Principal is decoded from, mirroring
// authn.Token's role-carrying claims in the teacher.
type claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"uid"`
	Roles  []string `json:"roles"`
}

// DecodePrincipal verifies and decodes a bearer token into a Principal,
// the same HMAC-verify-then-morph shape as authn.DecryptToken.
func DecodePrincipal(token, secret string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, cmn.NewPermissionError("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, cmn.NewPermissionError("invalid token: %v", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Principal{}, cmn.NewPermissionError("invalid token claims")
	}
	return Principal{UserID: c.UserID, Roles: c.Roles}, nil
}

// IssuePrincipalToken mints a bearer token for p, used by tests and by
// the hub's own internal service-to-service calls.
func IssuePrincipalToken(p Principal, secret string, ttl time.Duration) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		UserID: p.UserID,
		Roles:  p.Roles,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString([]byte(secret))
}
