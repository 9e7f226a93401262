package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/pgstay/go-auth/middleware/jwtware"
)

// Authenticator is what the controller needs from the auth service
type Authenticator interface {
	Register(ctx context.Context, req RegisterRequest) (*IdentityBundle, error)
	Login(ctx context.Context, req LoginRequest) (*IdentityBundle, error)
	Profile(ctx context.Context, subject string) (*User, error)
	TokenService() TokenService
}

var _ Authenticator = (*Auther)(nil)

type AuthControllerRoutes struct {
	Register string
	Login    string
	Validate string
	Me       string
}

// ValidationResult is the body of the token introspection endpoint
type ValidationResult struct {
	Valid     bool       `json:"valid"`
	Subject   string     `json:"subject,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IssuedAt  *time.Time `json:"issuedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type AuthController struct {
	Logger     Logger
	Auther     Authenticator
	Routes     *AuthControllerRoutes
	ContextKey string
	AuthScheme string
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(auther Authenticator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		Auther:     auther,
		ContextKey: jwtware.DefaultContextKey,
		AuthScheme: "Bearer",
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Validate: "/auth/validate",
			Me:       "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Logger = normalizeLogger(logger)
		return ac
	}
}

// WithControllerConfig takes the context key and auth scheme from cfg
func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if key := cfg.GetContextKey(); key != "" {
			ac.ContextKey = key
		}
		if scheme := cfg.GetAuthScheme(); scheme != "" {
			ac.AuthScheme = scheme
		}
		return ac
	}
}

// RegisterAuthRoutes mounts the auth endpoints on router
func RegisterAuthRoutes(router fiber.Router, controller *AuthController) {
	router.Post(controller.Routes.Register, controller.Register).Name("auth.register")
	router.Post(controller.Routes.Login, controller.Login).Name("auth.login")
	router.Get(controller.Routes.Validate, controller.Validate).Name("auth.validate")
	router.Get(controller.Routes.Me, controller.Me).Name("auth.me")
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return NewValidationError("Invalid request body", nil)
	}

	bundle, err := a.Auther.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(bundle)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return NewValidationError("Invalid request body", nil)
	}

	bundle, err := a.Auther.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(bundle)
}

// Validate reports whether the presented bearer token verifies, and why
// not when it does not.
func (a *AuthController) Validate(c *fiber.Ctx) error {
	extractors := jwtware.GetExtractors("header:"+fiber.HeaderAuthorization, a.AuthScheme)
	raw, err := jwtware.ExtractRawToken(c, extractors)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ValidationResult{
			Valid:   false,
			Error:   TextCodeMissingCredentials,
			Message: ErrMissingCredentials.Message,
		})
	}

	claims, err := a.Auther.TokenService().Verify(raw)
	if err != nil {
		result := ValidationResult{
			Valid:   false,
			Error:   TextCodeMalformed,
			Message: ErrTokenMalformed.Message,
		}
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			result.Error = richErr.TextCode
			result.Message = richErr.Message
		}
		return c.Status(fiber.StatusUnauthorized).JSON(result)
	}

	expires := claims.Expires()
	issued := claims.IssuedAt()
	return c.JSON(ValidationResult{
		Valid:     true,
		Subject:   claims.Subject(),
		Role:      claims.Role(),
		ExpiresAt: &expires,
		IssuedAt:  &issued,
	})
}

// Me returns the profile of the authenticated caller
func (a *AuthController) Me(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return ErrMissingCredentials
	}

	user, err := a.Auther.Profile(c.UserContext(), claims.Subject())
	if err != nil {
		return err
	}
	return c.JSON(user.ToProfile())
}

// HealthHandler answers 200 while the store responds to a ping
func HealthHandler(checker HealthChecker, logger Logger) fiber.Handler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx) error {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func PingHandler(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// APIDocsHandler serves a minimal OpenAPI document for the auth routes
func APIDocsHandler(basePath string) fiber.Handler {
	basePath = strings.TrimSuffix(basePath, "/")
	doc := fiber.Map{
		"openapi": "3.0.3",
		"info": fiber.Map{
			"title":   "auth service",
			"version": "1.0.0",
		},
		"components": fiber.Map{
			"securitySchemes": fiber.Map{
				"bearerAuth": fiber.Map{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
		"paths": fiber.Map{
			basePath + "/auth/register": fiber.Map{"post": fiber.Map{"summary": "Register an identity"}},
			basePath + "/auth/login":    fiber.Map{"post": fiber.Map{"summary": "Log in"}},
			basePath + "/auth/validate": fiber.Map{"get": fiber.Map{"summary": "Introspect a bearer token"}},
			basePath + "/auth/me": fiber.Map{"get": fiber.Map{
				"summary":  "Profile of the caller",
				"security": []fiber.Map{{"bearerAuth": []string{}}},
			}},
		},
	}
	return func(c *fiber.Ctx) error {
		return c.JSON(doc)
	}
}
