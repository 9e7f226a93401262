package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/pgstay/go-auth/middleware/jwtware"
)

const genericServerMessage = "An unexpected server error occurred"

// ErrorEnvelope is the body of every rejected request
type ErrorEnvelope struct {
	Status  int               `json:"status"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponder turns errors returned by handlers and middleware into
// the ErrorEnvelope. Internal faults are logged and answered with a
// generic message.
type ErrorResponder struct {
	Logger Logger
}

func NewErrorResponder(logger Logger) *ErrorResponder {
	return &ErrorResponder{Logger: normalizeLogger(logger)}
}

// Handle is a fiber.ErrorHandler
func (r *ErrorResponder) Handle(c *fiber.Ctx, err error) error {
	logger := normalizeLogger(r.Logger)
	richErr := resolveError(err)
	status := statusFor(richErr)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(status).JSON(ErrorEnvelope{
			Status:  status,
			Error:   TextCodeInternal,
			Message: genericServerMessage,
		})
	}

	logger.Debug("request rejected",
		"path", c.Path(),
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	envelope := ErrorEnvelope{
		Status:  status,
		Error:   richErr.TextCode,
		Message: richErr.Message,
	}
	if envelope.Error == "" {
		envelope.Error = textCodeFor(status)
	}
	if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
		envelope.Fields = fields
	}
	return c.Status(status).JSON(envelope)
}

func resolveError(err error) *errors.Error {
	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed), errors.Is(err, jwtware.ErrNoIdentity):
		return ErrMissingCredentials
	case errors.Is(err, jwtware.ErrInsufficientRole):
		return ErrForbidden
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}

	return errors.Wrap(err, errors.CategoryInternal, genericServerMessage).
		WithTextCode(TextCodeInternal).
		WithCode(errors.CodeInternal)
}

func fromFiberError(fe *fiber.Error) *errors.Error {
	category := errors.CategoryBadInput
	switch {
	case fe.Code == fiber.StatusNotFound:
		category = errors.CategoryNotFound
	case fe.Code >= fiber.StatusInternalServerError:
		category = errors.CategoryInternal
	}
	return errors.New(fe.Message, category).
		WithTextCode(textCodeFor(fe.Code)).
		WithCode(fe.Code)
}

func statusFor(richErr *errors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func textCodeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TextCodeValidationFailed
	case http.StatusUnauthorized:
		return TextCodeInvalidToken
	case http.StatusForbidden:
		return TextCodeForbidden
	case http.StatusNotFound:
		return TextCodeNotFound
	case http.StatusTooManyRequests:
		return TextCodeTooManyAttempts
	case http.StatusMethodNotAllowed:
		return "MethodNotAllowed"
	}
	return TextCodeInternal
}

// RouteAuthenticator builds the authentication stage of protected routes
type RouteAuthenticator struct {
	cfg       Config
	validator jwtware.TokenValidator
	Logger    Logger
	// AuthErrorHandler handles rejections from the jwt middleware
	AuthErrorHandler fiber.ErrorHandler
	// ErrorHandler renders the final response
	ErrorHandler fiber.ErrorHandler
}

func NewHTTPAuthenticator(validator jwtware.TokenValidator, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		cfg:       cfg,
		validator: validator,
		Logger:    defLogger{},
	}
	a.ErrorHandler = NewErrorResponder(a.Logger).Handle
	a.AuthErrorHandler = a.defaultAuthErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	a.ErrorHandler = NewErrorResponder(a.Logger).Handle
	return a
}

// ProtectedRoute verifies the bearer token of every non public request.
// A nil errorHandler uses AuthErrorHandler.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler fiber.ErrorHandler, listeners ...ValidationListener) fiber.Handler {
	if errorHandler == nil {
		errorHandler = a.AuthErrorHandler
	}
	return jwtware.New(jwtware.Config{
		ErrorHandler:        errorHandler,
		PublicRoutes:        a.cfg.GetPublicRoutes(),
		AuthScheme:          a.cfg.GetAuthScheme(),
		ContextKey:          a.cfg.GetContextKey(),
		TokenValidator:      a.validator,
		ContextEnricher:     ContextEnricherAdapter,
		ValidationListeners: listeners,
	})
}

// RequireRoles rejects requests whose claims carry none of roles
func (a *RouteAuthenticator) RequireRoles(roles ...UserRole) fiber.Handler {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return jwtware.RequireRoles(a.cfg.GetContextKey(), names...)
}

// RequireMinimumRole rejects requests below role in the hierarchy
func (a *RouteAuthenticator) RequireMinimumRole(role UserRole) fiber.Handler {
	return jwtware.RequireMinimumRole(a.cfg.GetContextKey(), role.String())
}

// defaultAuthErrHandler maps middleware failures to MissingCredentials,
// Forbidden or InvalidToken. The verify error kind is only logged.
func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		richErr = ErrMissingCredentials
	case errors.Is(err, jwtware.ErrInsufficientRole):
		richErr = ErrForbidden
	default:
		richErr = ErrInvalidToken.Clone()
		richErr.Source = err
	}

	reason := ""
	var cause *errors.Error
	if errors.As(err, &cause) {
		reason = cause.TextCode
	}

	a.Logger.Info("Authentication error",
		"text_code", richErr.TextCode,
		"reason", reason,
		"path", c.OriginalURL(),
	)

	return a.ErrorHandler(c, richErr)
}
