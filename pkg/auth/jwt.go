// Package auth turns bearer tokens into connection identities and guards the
// admin REST surface.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// Claims is the platform's JWT claim set. Subject carries the user id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens against the platform's shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyBearer parses an Authorization header value and returns the identity
// it proves. Any failure — missing header, bad signature, expired token,
// missing tenant claim — yields the anonymous identity rather than an error:
// the protocol handshake must succeed unauthenticated, and per-method checks
// enforce auth where it matters.
func (v *Verifier) VerifyBearer(authHeader string) types.Identity {
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || strings.TrimSpace(token) == "" {
		return types.Anonymous()
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.TenantID == "" {
		return types.Anonymous()
	}

	return types.Identity{
		TenantID: claims.TenantID,
		UserID:   claims.Subject,
		Role:     types.ParseRole(claims.Role),
	}
}

// VerifyRequest extracts the identity from an HTTP request's Authorization
// header. Used at WebSocket upgrade time: the token is decoded once per
// connection, never per message.
func (v *Verifier) VerifyRequest(r *http.Request) types.Identity {
	return v.VerifyBearer(r.Header.Get("Authorization"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Admin REST middleware
// ──────────────────────────────────────────────────────────────────────────────

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the identity set by RequireAdmin.
func IdentityFromContext(ctx context.Context) types.Identity {
	id, ok := ctx.Value(identityKey).(types.Identity)
	if !ok {
		return types.Anonymous()
	}
	return id
}

// RequireAdmin gates the custom-tool administration routes: 401 without a
// valid token, 403 below admin.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := v.VerifyRequest(r)
		if !id.Authenticated() {
			types.ErrUnauthorized("missing or invalid bearer token").WriteJSON(w)
			return
		}
		if !id.Role.AtLeast(types.RoleAdmin) {
			types.ErrForbidden("admin role required").WriteJSON(w)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
