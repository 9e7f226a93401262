package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// AuthClaims represents verified token claims
type AuthClaims interface {
	Subject() string
	Role() string
	Roles() []string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. Raw keeps the
// full verified claim set so callers can read custom claims.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole string
	RoleList []string
	Raw      map[string]any
}

var _ AuthClaims = (*JWTClaims)(nil)

var registeredClaimNames = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true,
	"nbf": true, "iat": true, "jti": true,
}

func isRegisteredClaim(name string) bool {
	return registeredClaimNames[name]
}

// claimsFromMap reads the registered claims plus the "role" and "roles"
// claims. "roles" may be a single string or a list.
func claimsFromMap(m jwt.MapClaims) (*JWTClaims, error) {
	c := &JWTClaims{Raw: make(map[string]any, len(m))}
	for k, v := range m {
		c.Raw[k] = v
	}

	var err error
	if c.RegisteredClaims.Subject, err = m.GetSubject(); err != nil {
		return nil, err
	}
	if c.RegisteredClaims.Issuer, err = m.GetIssuer(); err != nil {
		return nil, err
	}
	if c.RegisteredClaims.Audience, err = m.GetAudience(); err != nil {
		return nil, err
	}
	if c.RegisteredClaims.ExpiresAt, err = m.GetExpirationTime(); err != nil {
		return nil, err
	}
	if c.RegisteredClaims.IssuedAt, err = m.GetIssuedAt(); err != nil {
		return nil, err
	}
	if c.RegisteredClaims.NotBefore, err = m.GetNotBefore(); err != nil {
		return nil, err
	}
	if jti, ok := m["jti"].(string); ok {
		c.RegisteredClaims.ID = jti
	}

	if role, ok := m["role"]; ok {
		s, ok := role.(string)
		if !ok {
			return nil, errors.New("role claim must be a string", errors.CategoryBadInput)
		}
		c.UserRole = s
	}

	switch roles := m["roles"].(type) {
	case nil:
	case string:
		c.RoleList = []string{roles}
	case []any:
		for _, r := range roles {
			s, ok := r.(string)
			if !ok {
				return nil, errors.New("roles claim must contain strings", errors.CategoryBadInput)
			}
			c.RoleList = append(c.RoleList, s)
		}
	case []string:
		c.RoleList = append(c.RoleList, roles...)
	default:
		return nil, errors.New("roles claim must be a string or a list", errors.CategoryBadInput)
	}

	if c.RegisteredClaims.Subject == "" {
		return nil, errors.New("sub claim is required", errors.CategoryBadInput)
	}

	return c, nil
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Role returns the primary role: the role claim, else the first of roles
func (c *JWTClaims) Role() string {
	if c.UserRole != "" {
		return c.UserRole
	}
	if len(c.RoleList) > 0 {
		return c.RoleList[0]
	}
	return ""
}

// Roles returns every role carried by the token, without duplicates
func (c *JWTClaims) Roles() []string {
	out := make([]string, 0, len(c.RoleList)+1)
	seen := make(map[string]bool, len(c.RoleList)+1)
	add := func(r string) {
		r = strings.TrimSpace(r)
		if r == "" || seen[strings.ToUpper(r)] {
			return
		}
		seen[strings.ToUpper(r)] = true
		out = append(out, r)
	}
	add(c.UserRole)
	for _, r := range c.RoleList {
		add(r)
	}
	return out
}

// HasRole checks for a role, case-insensitively
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.Roles() {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAtLeast checks if any of the roles meets minRole in the hierarchy
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	min, ok := ParseRole(minRole)
	if !ok {
		return false
	}
	for _, r := range c.Roles() {
		if role, ok := ParseRole(r); ok && role.IsAtLeast(min) {
			return true
		}
	}
	return false
}

// Claim returns a raw claim value
func (c *JWTClaims) Claim(name string) (any, bool) {
	v, ok := c.Raw[name]
	return v, ok
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
