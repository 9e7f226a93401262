package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pgstay/go-auth/middleware/jwtware"
)

var identityCtxKey = &contextKey{"identity"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// RequestIdentity is the identity established for one request from a
// verified token. It is absent on public routes.
type RequestIdentity struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the identity carries role
func (r *RequestIdentity) HasRole(role string) bool {
	if r == nil {
		return false
	}
	for _, candidate := range r.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// WithRequestIdentity sets the identity in the given context
func WithRequestIdentity(ctx context.Context, identity *RequestIdentity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// RequestIdentityFromContext finds the identity in the context
func RequestIdentityFromContext(ctx context.Context) (*RequestIdentity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*RequestIdentity)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetFiberClaims extracts the AuthClaims stored by the middleware under key
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = jwtware.DefaultContextKey
	}
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok
}

// ContextEnricherAdapter stores the verified claims and the derived
// RequestIdentity in the standard context.
func ContextEnricherAdapter(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	identity := &RequestIdentity{
		Subject: claims.Subject(),
		Roles:   claims.Roles(),
	}
	ctx = WithRequestIdentity(ctx, identity)

	if authClaims, ok := claims.(AuthClaims); ok {
		ctx = WithClaimsContext(ctx, authClaims)
	}
	return ctx
}
