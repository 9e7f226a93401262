package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pgstay/go-auth/middleware/jwtware"
)

var errBadToken = errors.New("bad token")

type testClaims struct {
	sub   string
	roles []string
}

func (c testClaims) Subject() string { return c.sub }
func (c testClaims) Roles() []string { return c.roles }
func (c testClaims) HasRole(role string) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

var levels = map[string]int{"GUEST": 0, "MEMBER": 1, "ADMIN": 2, "OWNER": 3}

func (c testClaims) IsAtLeast(minRole string) bool {
	min, ok := levels[minRole]
	if !ok {
		return false
	}
	for _, r := range c.roles {
		if l, ok := levels[r]; ok && l >= min {
			return true
		}
	}
	return false
}

// MockValidator implements jwtware.TokenValidator
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(token string) (jwtware.AuthClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(jwtware.AuthClaims)
	return claims, args.Error(1)
}

func newApp(cfg jwtware.Config, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusUnauthorized
			if errors.Is(err, jwtware.ErrInsufficientRole) {
				status = fiber.StatusForbidden
			}
			return c.Status(status).SendString(err.Error())
		},
	})
	app.Use(jwtware.New(cfg))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Post("/auth/login", func(c *fiber.Ctx) error { return c.SendString("login") })

	chain := append(handlers, func(c *fiber.Ctx) error {
		claims, ok := c.Locals(jwtware.DefaultContextKey).(jwtware.AuthClaims)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(claims.Subject())
	})
	app.Get("/rooms", chain...)
	return app
}

func doGet(t *testing.T, app *fiber.App, path, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJWTWare_PublicRoutesSkipValidation(t *testing.T) {
	validator := &MockValidator{}
	app := newApp(jwtware.Config{
		TokenValidator: validator,
		PublicRoutes:   []string{"/ping", "/auth/login"},
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
	})

	status, body := doGet(t, app, "/ping", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// a garbage header on a public route is never looked at
	status, _ = doGet(t, app, "/ping", "Bearer nonsense")
	assert.Equal(t, http.StatusOK, status)

	validator.AssertNotCalled(t, "Validate", mock.Anything)
}

func TestJWTWare_MissingHeaderStopsBeforeHandler(t *testing.T) {
	validator := &MockValidator{}
	reached := false
	app := newApp(jwtware.Config{
		TokenValidator: validator,
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
	}, func(c *fiber.Ctx) error {
		reached = true
		return c.Next()
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "scheme only", header: "Bearer"},
		{name: "scheme without separator", header: "Bearertoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doGet(t, app, "/rooms", tt.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Contains(t, body, jwtware.ErrJWTMissingOrMalformed.Error())
		})
	}

	assert.False(t, reached)
	validator.AssertNotCalled(t, "Validate", mock.Anything)
}

func TestJWTWare_InvalidTokenRejected(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "broken").Return(nil, errBadToken)

	var gotErr error
	app := newApp(jwtware.Config{
		TokenValidator: validator,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			gotErr = err
			return c.Status(fiber.StatusUnauthorized).SendString("rejected")
		},
	})

	status, body := doGet(t, app, "/rooms", "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "rejected", body)
	assert.ErrorIs(t, gotErr, errBadToken)
	validator.AssertExpectations(t)
}

func TestJWTWare_ValidTokenAttachesClaims(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "good").Return(testClaims{sub: "a@test.com", roles: []string{"OWNER"}}, nil)

	type ctxKey struct{}
	var enriched any
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: validator,
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			return context.WithValue(ctx, ctxKey{}, claims.Subject())
		},
	}))
	app.Get("/rooms", func(c *fiber.Ctx) error {
		enriched = c.UserContext().Value(ctxKey{})
		claims := c.Locals(jwtware.DefaultContextKey).(jwtware.AuthClaims)
		return c.SendString(claims.Subject())
	})

	// scheme match is case-insensitive
	status, body := doGet(t, app, "/rooms", "bearer good")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@test.com", body)
	assert.Equal(t, "a@test.com", enriched)
}

func TestJWTWare_ConfigRoleChecks(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "member").Return(testClaims{sub: "m@test.com", roles: []string{"MEMBER"}}, nil)
	validator.On("Validate", "owner").Return(testClaims{sub: "o@test.com", roles: []string{"OWNER"}}, nil)

	t.Run("required role", func(t *testing.T) {
		app := newApp(jwtware.Config{
			TokenValidator: validator,
			RequiredRole:   "OWNER",
			ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
		})

		status, _ := doGet(t, app, "/rooms", "Bearer member")
		assert.Equal(t, http.StatusForbidden, status)

		status, body := doGet(t, app, "/rooms", "Bearer owner")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "o@test.com", body)
	})

	t.Run("minimum role", func(t *testing.T) {
		app := newApp(jwtware.Config{
			TokenValidator: validator,
			MinimumRole:    "ADMIN",
			ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
		})

		status, _ := doGet(t, app, "/rooms", "Bearer member")
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = doGet(t, app, "/rooms", "Bearer owner")
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestJWTWare_DefaultErrorHandler(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "broken").Return(nil, errBadToken)

	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{TokenValidator: validator}))
	app.Get("/rooms", func(c *fiber.Ctx) error { return c.SendString("ok") })

	status, body := doGet(t, app, "/rooms", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "MissingCredentials")

	status, body = doGet(t, app, "/rooms", "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "InvalidToken")
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "from-cookie").Return(testClaims{sub: "cookie@test.com"}, nil)
	validator.On("Validate", "from-query").Return(testClaims{sub: "query@test.com"}, nil)

	app := newApp(jwtware.Config{
		TokenValidator: validator,
		TokenLookup:    "header:Authorization,cookie:jwt,query:token",
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "from-cookie"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "cookie@test.com", string(body))

	status, b := doGet(t, app, "/rooms?token=from-query", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "query@test.com", b)
}

func TestJWTWare_FilterFunction(t *testing.T) {
	validator := &MockValidator{}
	app := newApp(jwtware.Config{
		TokenValidator: validator,
		Filter: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/rooms")
		},
	})

	status, body := doGet(t, app, "/rooms", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestJWTWare_RequiresValidator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}

func TestJWTWare_PublicRoutesFollowAppCaseSensitivity(t *testing.T) {
	validator := &MockValidator{}
	cfg := jwtware.Config{
		TokenValidator: validator,
		PublicRoutes:   []string{"/auth/login"},
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
	}

	// fiber routes case-insensitively by default, so does the bypass
	app := newApp(cfg)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/Auth/Login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	strict := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		},
	})
	strict.Use(jwtware.New(cfg))
	strict.Post("/auth/login", func(c *fiber.Ctx) error { return c.SendString("login") })
	strict.Post("/Auth/Login", func(c *fiber.Ctx) error { return c.SendString("other") })

	resp, err = strict.Test(httptest.NewRequest(http.MethodPost, "/Auth/Login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = strict.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	validator.AssertNotCalled(t, "Validate", mock.Anything)
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	validator := &MockValidator{}
	validator.On("Validate", "good").Return(testClaims{sub: "a@test.com", roles: []string{"OWNER"}}, nil)
	validator.On("Validate", "blocked").Return(testClaims{sub: "blocked@test.com", roles: []string{"OWNER"}}, nil)

	errBlocked := errors.New("subject blocked")
	var seen []string
	app := newApp(jwtware.Config{
		TokenValidator: validator,
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return err },
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(c *fiber.Ctx, claims jwtware.AuthClaims) error {
				seen = append(seen, claims.Subject())
				return nil
			},
			func(c *fiber.Ctx, claims jwtware.AuthClaims) error {
				if claims.Subject() == "blocked@test.com" {
					return errBlocked
				}
				return nil
			},
		},
	})

	status, body := doGet(t, app, "/rooms", "Bearer good")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@test.com", body)

	status, body = doGet(t, app, "/rooms", "Bearer blocked")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errBlocked.Error(), body)

	assert.Equal(t, []string{"a@test.com", "blocked@test.com"}, seen)
}
