package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/pgstay/go-auth/middleware/jwtware"
)

// TokenServiceImpl implements the TokenService interface with HS256.
// The signing key is set once at construction and never exposed.
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)
var _ jwtware.TokenValidator = (*TokenServiceImpl)(nil)

// TokenServiceOption customizes a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock replaces time.Now, used for issuance and expiry checks
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// NewTokenService creates a new TokenService instance. ttlMinutes is the
// lifetime of issued tokens.
func NewTokenService(signingKey []byte, ttlMinutes int, issuer string, audience jwt.ClaimStrings, logger Logger, opts ...TokenServiceOption) *TokenServiceImpl {
	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	ts := &TokenServiceImpl{
		signingKey: key,
		ttl:        time.Duration(ttlMinutes) * time.Minute,
		issuer:     issuer,
		audience:   audience,
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// NewTokenServiceFromConfig builds a token service from Config
func NewTokenServiceFromConfig(cfg Config, logger Logger, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if cfg.GetSigningKey() == "" {
		return nil, errors.New("signing key is not configured", errors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(errors.CodeInternal)
	}
	if m := cfg.GetSigningMethod(); m != "" && m != jwt.SigningMethodHS256.Alg() {
		return nil, errors.New(fmt.Sprintf("unsupported signing method %q", m), errors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(errors.CodeInternal)
	}
	if cfg.GetTokenExpiration() <= 0 {
		return nil, errors.New("token expiration must be positive", errors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(errors.CodeInternal)
	}
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
		logger,
		opts...,
	), nil
}

// TTL returns the lifetime of issued tokens
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Generate issues the login token for identity: sub is the email and the
// role claim carries the identity role.
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity must not be nil", errors.CategoryInternal)
	}
	return ts.Issue(identity.Email(), map[string]any{
		"role": identity.Role(),
	})
}

// Issue signs a token for subject with the supplied claims. Registered
// claims (sub, iat, exp, jti, iss, aud, nbf) are always set by the service
// and cannot be overridden by the caller.
func (ts *TokenServiceImpl) Issue(subject string, claims map[string]any) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty", errors.CategoryBadInput)
	}

	now := ts.now()
	mc := jwt.MapClaims{}
	for k, v := range claims {
		if isRegisteredClaim(k) {
			continue
		}
		mc[k] = v
	}

	mc["sub"] = subject
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ts.ttl))
	mc["jti"] = uuid.NewString()
	if ts.issuer != "" {
		mc["iss"] = ts.issuer
	}
	if len(ts.audience) > 0 {
		mc["aud"] = ts.audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify checks the signature, then expiry, and returns the claim set.
// Failures are ErrTokenInvalidSignature, ErrTokenExpired or ErrTokenMalformed.
func (ts *TokenServiceImpl) Verify(tokenString string) (*JWTClaims, error) {
	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, mc, ts.keyFunc, ts.parserOptions()...)
	if err != nil {
		return nil, ts.classify(tokenString, err)
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		return nil, tokenError(err, ErrTokenMalformed)
	}
	return claims, nil
}

// Validate is Verify behind the middleware's claims interface
func (ts *TokenServiceImpl) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := ts.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (ts *TokenServiceImpl) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience...))
	}
	return opts
}

func (ts *TokenServiceImpl) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		ts.logger.Warn("token signed with unexpected method", "alg", t.Header["alg"])
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.signingKey, nil
}

func (ts *TokenServiceImpl) classify(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return tokenError(err, ErrTokenInvalidSignature)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed) && ts.signatureMismatch(tokenString):
		// the signing input no longer matches, even though it also fails to decode
		return tokenError(err, ErrTokenInvalidSignature)
	default:
		return tokenError(err, ErrTokenMalformed)
	}
}

// signatureMismatch reports whether raw has a readable HMAC header and a
// decodable signature that does not match its signing input.
func (ts *TokenServiceImpl) signatureMismatch(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}

	p := jwt.NewParser()
	headerBytes, err := p.DecodeSegment(parts[0])
	if err != nil {
		return false
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return false
	}
	if alg, _ := header["alg"].(string); alg != jwt.SigningMethodHS256.Alg() {
		return false
	}

	sig, err := p.DecodeSegment(parts[2])
	if err != nil {
		return false
	}
	return jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, ts.signingKey) != nil
}

func tokenError(cause error, kind *errors.Error) error {
	clone := kind.Clone()
	if clone == nil {
		return kind
	}
	clone.Source = cause
	return clone
}
