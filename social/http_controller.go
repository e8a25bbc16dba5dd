package social

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-lms-auth"
)

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth/social")
	PathPrefix string

	// Geo annotates session provenance (default: none)
	Geo auth.GeoAnnotator

	// Logger reports provider failures
	Logger auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(authenticator *SocialAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth/social"
	}
	if cfg.Geo == nil {
		cfg.Geo = auth.GeoAnnotatorFunc(func(*fiber.Ctx) *auth.GeoLocation { return nil })
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.NewZapLogger(nil)
	}

	return &HTTPController{
		authenticator: authenticator,
		config:        cfg,
	}
}

// RegisterRoutes registers social auth routes.
func (c *HTTPController) RegisterRoutes(app fiber.Router) {
	group := app.Group(c.config.PathPrefix)
	group.Get("/providers", c.ListProviders).Name("social.providers")
	group.Get("/:provider/callback", c.Callback).Name("social.callback")
	group.Get("/:provider", c.BeginAuth).Name("social.begin")
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"providers": c.authenticator.ListProviders(),
	})
}

// BeginAuth redirects the browser to the provider.
func (c *HTTPController) BeginAuth(ctx *fiber.Ctx) error {
	redirect, err := c.authenticator.BeginAuth(
		ctx.UserContext(),
		ctx.Params("provider"),
		WithRedirectURL(ctx.Query("redirect_url")),
	)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.Redirect(redirect.URL, fiber.StatusTemporaryRedirect)
}

// Callback completes the flow and returns the issued credential as JSON.
func (c *HTTPController) Callback(ctx *fiber.Ctx) error {
	if errCode := ctx.Query("error"); errCode != "" {
		return c.handleError(ctx, ErrAuthorizationDenied.Clone().WithMetadata(map[string]any{
			"oauth_error":       errCode,
			"error_description": ctx.Query("error_description"),
		}))
	}

	result, err := c.authenticator.CompleteAuth(
		ctx.UserContext(),
		ctx.Params("provider"),
		ctx.Query("code"),
		ctx.Query("state"),
		auth.RequestMetadata(ctx, c.config.Geo),
	)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(result)
}

func (c *HTTPController) handleError(ctx *fiber.Ctx, err error) error {
	status, body := auth.ErrorResponse(err)
	if status >= fiber.StatusInternalServerError {
		c.config.Logger.Error("social auth failure", "path", ctx.Path(), "error", err)
	} else {
		var richErr *errors.Error
		if errors.As(err, &richErr) && len(richErr.Metadata) > 0 {
			c.config.Logger.Warn("social auth rejected", "path", ctx.Path(), "text_code", richErr.TextCode, "metadata", richErr.Metadata)
		}
	}
	return ctx.Status(status).JSON(body)
}
