package auth

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthControllerRoutes holds the mount points of the controller
type AuthControllerRoutes struct {
	Auth  string
	Admin string
}

// AuthController exposes the Service over a JSON API
type AuthController struct {
	Debug   bool
	Logger  Logger
	Service *Service
	Gate    *RequestGate
	Geo     GeoAnnotator
	Routes  *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithControllerGeo sets the geo annotator used for session provenance
func WithControllerGeo(geo GeoAnnotator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if geo != nil {
			c.Geo = geo
		}
		return c
	}
}

// WithControllerDebug dumps payloads to stdout
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// WithControllerRoutes overrides the mount points
func WithControllerRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = &routes
		return c
	}
}

func NewAuthController(service *Service, gate *RequestGate, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:  defLogger{},
		Service: service,
		Gate:    gate,
		Geo:     noopGeo{},
		Routes: &AuthControllerRoutes{
			Auth:  "/auth",
			Admin: "/admin",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in auth controller...")
	}

	if c.Gate == nil {
		panic("Missing RequestGate in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the account and administrative routes on app
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	protect := controller.Gate.Protect()

	auth := app.Group(controller.Routes.Auth)
	auth.Post("/register", controller.Register).Name("auth.register")
	auth.Post("/login", controller.Login).Name("auth.login")
	auth.Post("/logout", protect, controller.Logout).Name("auth.logout")
	auth.Post("/refresh", protect, controller.Refresh).Name("auth.refresh")
	auth.Get("/me", protect, controller.Me).Name("auth.me")
	auth.Get("/sessions", protect, controller.Sessions).Name("auth.sessions")
	auth.Delete("/sessions/:id", protect, controller.RevokeSession).Name("auth.sessions.revoke")
	auth.Post("/sessions/revoke-others", protect, controller.RevokeOtherSessions).Name("auth.sessions.revoke-others")

	managePermissions := controller.Gate.Require(CapabilityManagePermissions)
	admin := app.Group(controller.Routes.Admin, protect)
	admin.Get("/accounts/:id/capabilities", managePermissions, controller.CapabilityReport).Name("admin.capabilities")
	admin.Post("/accounts/:id/grants", managePermissions, controller.Grant).Name("admin.grants.create")
	admin.Delete("/accounts/:id/grants/:capability", managePermissions, controller.RevokeGrant).Name("admin.grants.delete")
	admin.Post("/accounts/:id/blocks", managePermissions, controller.Block).Name("admin.blocks.create")
	admin.Delete("/accounts/:id/blocks/:capability", managePermissions, controller.Unblock).Name("admin.blocks.delete")
	admin.Get("/accounts/:id/security", controller.Gate.Require(CapabilityViewUserActivity), controller.SecurityDetails).Name("admin.security")
	admin.Delete("/accounts/:id/sessions", controller.Gate.Require(CapabilityManageAllUsers), controller.RevokeAllSessions).Name("admin.sessions.delete")
}

func (a *AuthController) Register(ctx *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return a.fail(ctx, badPayload(err))
	}

	a.dump("REGISTER", RegisterPayload{
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Username: payload.Username,
	})

	result, err := a.Service.Register(ctx.UserContext(), *payload, RequestMetadata(ctx, a.Geo))
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(result)
}

func (a *AuthController) Login(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.fail(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.fail(ctx, validationError(err))
	}

	a.dump("LOGIN", LoginPayload{Email: payload.Email})

	result, err := a.Service.Login(ctx.UserContext(), payload.Email, payload.Password, RequestMetadata(ctx, a.Geo))
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(result)
}

func (a *AuthController) Logout(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Service.Logout(ctx.UserContext(), principal); err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "logged out"})
}

func (a *AuthController) Refresh(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	result, err := a.Service.Refresh(ctx.UserContext(), principal, RequestMetadata(ctx, a.Geo))
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(result)
}

func (a *AuthController) Me(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	result, err := a.Service.Me(ctx.UserContext(), principal)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(result)
}

func (a *AuthController) Sessions(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"sessions": a.Service.Sessions(principal)})
}

func (a *AuthController) RevokeSession(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Service.RevokeSession(ctx.UserContext(), principal, ctx.Params("id")); err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"sessions": a.Service.Sessions(principal)})
}

func (a *AuthController) RevokeOtherSessions(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	sessions := a.Service.RevokeOtherSessions(ctx.UserContext(), principal)
	return ctx.JSON(fiber.Map{"sessions": sessions})
}

func (a *AuthController) CapabilityReport(ctx *fiber.Ctx) error {
	accountID, err := accountParam(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	report, err := a.Service.CapabilityReport(ctx.UserContext(), accountID)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(report)
}

func (a *AuthController) Grant(ctx *fiber.Ctx) error {
	return a.overlay(ctx, func(actor *Account, accountID int64, payload CapabilityPayload) error {
		return a.Service.GrantCapability(ctx.UserContext(), actor, accountID, payload.Capability)
	})
}

func (a *AuthController) RevokeGrant(ctx *fiber.Ctx) error {
	return a.overlayParam(ctx, func(actor *Account, accountID int64, name string) error {
		return a.Service.RevokeGrant(ctx.UserContext(), actor, accountID, name)
	})
}

func (a *AuthController) Block(ctx *fiber.Ctx) error {
	return a.overlay(ctx, func(actor *Account, accountID int64, payload CapabilityPayload) error {
		return a.Service.BlockCapability(ctx.UserContext(), actor, accountID, payload.Capability, payload.Reason)
	})
}

func (a *AuthController) Unblock(ctx *fiber.Ctx) error {
	return a.overlayParam(ctx, func(actor *Account, accountID int64, name string) error {
		return a.Service.UnblockCapability(ctx.UserContext(), actor, accountID, name)
	})
}

func (a *AuthController) SecurityDetails(ctx *fiber.Ctx) error {
	accountID, err := accountParam(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	details, err := a.Service.SecurityDetails(ctx.UserContext(), accountID)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(details)
}

func (a *AuthController) RevokeAllSessions(ctx *fiber.Ctx) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	accountID, err := accountParam(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	removed, err := a.Service.RevokeAllSessions(ctx.UserContext(), principal.Account, accountID)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"revoked": removed})
}

func (a *AuthController) overlay(ctx *fiber.Ctx, apply func(*Account, int64, CapabilityPayload) error) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	accountID, err := accountParam(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(CapabilityPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.fail(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return a.fail(ctx, validationError(err))
	}

	a.dump("CAPABILITY", payload)

	if err := apply(principal.Account, accountID, *payload); err != nil {
		return a.fail(ctx, err)
	}

	return a.reportAfterOverlay(ctx, accountID)
}

func (a *AuthController) overlayParam(ctx *fiber.Ctx, apply func(*Account, int64, string) error) error {
	principal, err := a.principal(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	accountID, err := accountParam(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := apply(principal.Account, accountID, ctx.Params("capability")); err != nil {
		return a.fail(ctx, err)
	}

	return a.reportAfterOverlay(ctx, accountID)
}

func (a *AuthController) reportAfterOverlay(ctx *fiber.Ctx, accountID int64) error {
	report, err := a.Service.CapabilityReport(ctx.UserContext(), accountID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(report)
}

func (a *AuthController) principal(ctx *fiber.Ctx) (*Principal, error) {
	principal, ok := PrincipalFromLocals(ctx, a.Gate.ContextKey())
	if !ok {
		return nil, ErrMissingToken
	}
	return principal, nil
}

func (a *AuthController) fail(ctx *fiber.Ctx, err error) error {
	status, body := ErrorResponse(err)
	if status >= fiber.StatusInternalServerError {
		a.Logger.Error("auth controller failure", "path", ctx.Path(), "error", err)
	}
	return ctx.Status(status).JSON(body)
}

func (a *AuthController) dump(label string, payload any) {
	if !a.Debug {
		return
	}
	fmt.Printf("======= AUTH %s ======\n", label)
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}

func accountParam(ctx *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid account id", errors.CategoryBadInput).
			WithTextCode("INVALID_ACCOUNT_ID").
			WithCode(errors.CodeBadRequest)
	}
	return id, nil
}

func badPayload(err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "failed to parse request body").
		WithTextCode("INVALID_PAYLOAD").
		WithCode(errors.CodeBadRequest)
}
