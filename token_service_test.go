package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pgstay/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestTokenService_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	ts := newTestTokenService(auth.WithTokenClock(clock.Now))

	token, err := ts.Issue("a@test.com", map[string]any{
		"role":   "OWNER",
		"tenant": "pg-1",
		"sub":    "someone-else@test.com",
	})
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := ts.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "a@test.com", claims.Subject())
	assert.Equal(t, "OWNER", claims.Role())
	assert.Equal(t, []string{"OWNER"}, claims.Roles())
	assert.True(t, issuedAt.Equal(claims.IssuedAt()))
	assert.True(t, issuedAt.Add(time.Hour).Equal(claims.Expires()))

	tenant, ok := claims.Claim("tenant")
	require.True(t, ok)
	assert.Equal(t, "pg-1", tenant)

	jti, ok := claims.Claim("jti")
	require.True(t, ok)
	assert.NotEmpty(t, jti)
}

func TestTokenService_Generate(t *testing.T) {
	ts := newTestTokenService()
	user := &auth.User{Name: "A", Email: "a@test.com", Phone: "9876543210", Role: auth.RoleOwner}

	token, err := ts.Generate(auth.NewIdentityFromUser(user))
	require.NoError(t, err)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@test.com", claims.Subject())
	assert.Equal(t, "OWNER", claims.Role())
	assert.True(t, claims.HasRole("owner"))

	_, err = ts.Generate(nil)
	assert.Error(t, err)
}

func TestTokenService_IssueRequiresSubject(t *testing.T) {
	_, err := newTestTokenService().Issue("", map[string]any{"role": "OWNER"})
	assert.Error(t, err)
}

func TestTokenService_Expiry(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	ts := newTestTokenService(auth.WithTokenClock(clock.Now))

	token, err := ts.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	clock.now = issuedAt.Add(time.Hour - time.Second)
	_, err = ts.Verify(token)
	require.NoError(t, err)

	for _, at := range []time.Time{issuedAt.Add(time.Hour), issuedAt.Add(48 * time.Hour)} {
		clock.now = at
		_, err = ts.Verify(token)
		require.Error(t, err)
		assert.True(t, auth.IsTokenExpiredError(err), "expected Expired at %s, got %v", at, err)
		assert.False(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature))
	}
}

func TestTokenService_TamperedSignature(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	ts := newTestTokenService(auth.WithTokenClock(clock.Now))

	token, err := ts.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	tampered := tamperSignature(t, token)

	for _, at := range []time.Time{issuedAt, issuedAt.Add(2 * time.Hour)} {
		clock.now = at
		_, err = ts.Verify(tampered)
		require.Error(t, err)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature), "got %v", err)
	}
}

func TestTokenService_TamperedPayload(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	ts := newTestTokenService(auth.WithTokenClock(clock.Now))

	token, err := ts.Issue("a@test.com", map[string]any{"role": "MEMBER"})
	require.NoError(t, err)

	tampered := rewritePayload(t, token, func(claims map[string]any) {
		claims["role"] = "OWNER"
	})

	for _, at := range []time.Time{issuedAt, issuedAt.Add(2 * time.Hour)} {
		clock.now = at
		_, err = ts.Verify(tampered)
		require.Error(t, err)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature), "got %v", err)
	}
}

func TestTokenService_CorruptPayloadBytes(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "!!"
	_, err = ts.Verify(strings.Join(parts, "."))
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature), "got %v", err)
}

func TestTokenService_WrongKey(t *testing.T) {
	other := auth.NewTokenService([]byte("another-signing-key-of-enough-length"), 60, "", nil, nil)
	token, err := other.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	_, err = newTestTokenService().Verify(token)
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature))
}

func TestTokenService_RejectsUnexpectedAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  "a@test.com",
		"role": "OWNER",
		"exp":  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	ts := newTestTokenService()
	for name, token := range map[string]string{"HS512": hs512, "none": none} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Verify(token)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature), "got %v", err)
		})
	}
}

func TestTokenService_Malformed(t *testing.T) {
	ts := newTestTokenService()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "garbage segments", token: "not.a.token"},
		{name: "two segments", token: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhIn0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, auth.IsMalformedError(err), "got %v", err)
		})
	}
}

func TestTokenService_MissingRequiredClaims(t *testing.T) {
	ts := newTestTokenService()

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@test.com",
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	for name, token := range map[string]string{"no exp": noExp, "no sub": noSub} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Verify(token)
			require.Error(t, err)
			assert.True(t, auth.IsMalformedError(err), "got %v", err)
		})
	}
}

func TestTokenService_RolesClaim(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Issue("a@test.com", map[string]any{
		"role":  "MEMBER",
		"roles": []string{"ADMIN", "member"},
	})
	require.NoError(t, err)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "MEMBER", claims.Role())
	assert.Equal(t, []string{"MEMBER", "ADMIN"}, claims.Roles())
	assert.True(t, claims.IsAtLeast("ADMIN"))
	assert.False(t, claims.IsAtLeast("OWNER"))
}

func TestTokenService_IssuerAndAudience(t *testing.T) {
	ts := auth.NewTokenService([]byte(testSigningKey), 5, "pgstay", jwt.ClaimStrings{"pgstay-api"}, nil)

	token, err := ts.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "pgstay", claims.RegisteredClaims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"pgstay-api"}, claims.RegisteredClaims.Audience)
	assert.Equal(t, 5*time.Minute, ts.TTL())

	plain := newTestTokenService()
	foreign, err := plain.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)
	_, err = ts.Verify(foreign)
	assert.Error(t, err)
}

func TestTokenService_AcceptsAnyConfiguredAudience(t *testing.T) {
	issuer := auth.NewTokenService([]byte(testSigningKey), 5, "", jwt.ClaimStrings{"api", "admin"}, nil)
	token, err := issuer.Issue("a@test.com", map[string]any{"role": "OWNER"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		audience jwt.ClaimStrings
		ok       bool
	}{
		{name: "same set", audience: jwt.ClaimStrings{"api", "admin"}, ok: true},
		{name: "one overlapping", audience: jwt.ClaimStrings{"admin", "reports"}, ok: true},
		{name: "disjoint", audience: jwt.ClaimStrings{"reports"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := auth.NewTokenService([]byte(testSigningKey), 5, "", tt.audience, nil)
			_, err := verifier.Verify(token)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestTokenService_Validate(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Issue("a@test.com", map[string]any{"role": "ADMIN"})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a@test.com", claims.Subject())
	assert.True(t, claims.IsAtLeast("MEMBER"))

	_, err = ts.Validate("abc")
	assert.Error(t, err)
}

func TestNewTokenServiceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*testConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*testConfig) {}},
		{name: "empty key", mutate: func(c *testConfig) { c.signingKey = "" }, wantErr: true},
		{name: "unsupported method", mutate: func(c *testConfig) { c.signingMethod = "RS256" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *testConfig) { c.expiration = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)

			ts, err := auth.NewTokenServiceFromConfig(cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, ts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Hour, ts.TTL())
		})
	}
}

// tamperSignature flips one character in the middle of the signature so
// the segment still decodes.
func tamperSignature(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

func rewritePayload(t *testing.T, token string, edit func(map[string]any)) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	claims := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &claims))
	edit(claims)

	raw, err = json.Marshal(claims)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join(parts, ".")
}
