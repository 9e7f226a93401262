package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pgstay/go-auth/middleware/jwtware"
)

// AppOptions holds what NewApp wires together
type AppOptions struct {
	Config Config
	Auther Authenticator
	// Validator defaults to the Auther's token service
	Validator   jwtware.TokenValidator
	Health      HealthChecker
	Logger      Logger
	BasePath    string
	CORSOrigins []string
	Production  bool
}

// NewApp builds the fiber app. Stages run in order: request log, panic
// recovery, CORS, security headers, authentication, then the route.
func NewApp(opts AppOptions) *fiber.App {
	logger := normalizeLogger(opts.Logger)
	responder := NewErrorResponder(logger)

	validator := opts.Validator
	if validator == nil {
		if v, ok := opts.Auther.TokenService().(jwtware.TokenValidator); ok {
			validator = v
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "auth-service",
		ErrorHandler:          responder.Handle,
		DisableStartupMessage: true,
	})

	origins := "*"
	if len(opts.CORSOrigins) > 0 {
		origins = strings.Join(opts.CORSOrigins, ",")
	}

	app.Use(RequestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(SecureHeaders(opts.Production))

	routeAuth := NewHTTPAuthenticator(validator, opts.Config).WithLogger(logger)
	app.Use(routeAuth.ProtectedRoute(nil))

	basePath := strings.TrimSuffix(opts.BasePath, "/")

	app.Get("/ping", PingHandler)
	app.Get("/health", HealthHandler(opts.Health, logger))
	app.Get("/api-docs", APIDocsHandler(basePath))

	controller := NewAuthController(opts.Auther,
		WithControllerLogger(logger),
		WithControllerConfig(opts.Config),
	)
	if basePath == "" {
		RegisterAuthRoutes(app, controller)
	} else {
		RegisterAuthRoutes(app.Group(basePath), controller)
	}

	return app
}

// DefaultPublicRoutes lists the routes reachable without a token
func DefaultPublicRoutes(basePath string) []string {
	basePath = strings.TrimSuffix(basePath, "/")
	return []string{
		"/ping",
		"/health",
		"/api-docs*",
		"/swagger-ui*",
		basePath + "/auth/register",
		basePath + "/auth/login",
		basePath + "/auth/validate",
	}
}
