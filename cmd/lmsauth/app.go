package main

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/activitymap"
	"github.com/goliatone/go-lms-auth/config"
	"github.com/goliatone/go-lms-auth/repository"
	"github.com/goliatone/go-lms-auth/social"
	"github.com/goliatone/go-lms-auth/social/providers/discord"
	"github.com/goliatone/go-lms-auth/social/providers/github"
)

type application struct {
	config   *config.Config
	logger   *zap.Logger
	manager  *repository.Manager
	registry *auth.SessionRegistry
	service  *auth.Service
	http     *fiber.App
}

// newApplication opens the store and wires every component onto a fiber app.
// When bootstrap is set the schema is migrated and the role catalog seeded.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, bootstrap bool) (*application, error) {
	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	mgr := repository.NewManager(db)
	if err := mgr.Validate(); err != nil {
		return nil, err
	}

	if bootstrap {
		if err := mgr.Migrate(ctx); err != nil {
			_ = mgr.Close()
			return nil, err
		}
		if _, err := mgr.Seed(ctx, auth.DefaultCatalog()); err != nil {
			_ = mgr.Close()
			return nil, err
		}
	}

	a := &application{config: cfg, logger: logger, manager: mgr}
	if err := a.wire(); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return a, nil
}

func (a *application) wire() error {
	cfg := a.config
	base := auth.NewZapLogger(a.logger)

	tokens, err := auth.NewTokenServiceFromConfig(cfg)
	if err != nil {
		return err
	}
	tokens.WithLogger(base.Named("tokens"))

	a.registry = auth.NewSessionRegistry(cfg.GetRegistryShards(), auth.WithRegistryLogger(base.Named("sessions")))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auth.NewMetrics(promRegistry, a.registry)

	issuer := auth.NewCredentialIssuer(tokens, a.registry).
		WithLogger(base.Named("issuer")).
		WithMetrics(metrics)

	a.service = auth.NewService(a.manager.Accounts(), a.manager.Access(), issuer, a.registry).
		WithLogger(base.Named("service")).
		WithHasher(auth.NewBcryptHasher(cfg.GetBcryptCost())).
		WithDefaultRole(cfg.GetDefaultRoleID()).
		WithLoginLimiter(auth.NewLoginLimiter(cfg.GetLoginRatePerMinute(), cfg.GetLoginBurst())).
		WithActivitySink(activityLogger(a.logger.Named("activity"))).
		WithMetrics(metrics)

	gate := auth.NewRequestGate(tokens, a.registry, a.manager.Accounts(), a.service.Resolver()).
		WithLogger(base.Named("gate")).
		WithMetrics(metrics).
		WithConfig(cfg)

	geo := auth.NewHeaderGeoAnnotator()

	controller := auth.NewAuthController(a.service, gate,
		auth.WithControllerLogger(base.Named("http")),
		auth.WithControllerGeo(geo),
		auth.WithControllerDebug(cfg.Debug),
	)

	a.http = fiber.New(fiber.Config{
		AppName:               "lmsauth",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
	})

	a.http.Get(cfg.Server.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))
	a.http.Get("/healthz", a.health)

	auth.RegisterAuthRoutes(a.http, controller)

	socialAuth := social.NewSocialAuthenticator(a.service,
		social.SocialAuthConfig{DefaultRedirectURL: cfg.Social.RedirectURL},
		append(a.socialProviders(), social.WithLogger(base.Named("social")))...,
	)
	social.NewHTTPController(socialAuth, social.HTTPConfig{
		Geo:    geo,
		Logger: base.Named("social"),
	}).RegisterRoutes(a.http)

	return nil
}

// socialProviders registers the providers that have client credentials
func (a *application) socialProviders() []social.SocialAuthOption {
	var opts []social.SocialAuthOption

	if gh := a.config.Social.GitHub; gh.Enabled() {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			CallbackURL:  gh.CallbackURL,
			Scopes:       gh.Scopes,
		})))
	}

	if dc := a.config.Social.Discord; dc.Enabled() {
		opts = append(opts, social.WithProvider(discord.New(discord.Config{
			ClientID:     dc.ClientID,
			ClientSecret: dc.ClientSecret,
			CallbackURL:  dc.CallbackURL,
			Scopes:       dc.Scopes,
		})))
	}

	if len(opts) == 0 {
		a.logger.Info("no social providers configured")
	}
	return opts
}

func (a *application) health(c *fiber.Ctx) error {
	if err := a.manager.DB().PingContext(c.UserContext()); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": a.registry.Count(),
	})
}

func (a *application) Run(ctx context.Context) error {
	return serve(ctx, a)
}

func (a *application) Close() error {
	return a.manager.Close()
}

// activityLogger records activity events as normalized structured log lines
func activityLogger(logger *zap.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event, activitymap.WithActorFallback("anonymous"))
		fields := []zap.Field{
			zap.String("verb", record.Verb),
			zap.String("actor_id", record.ActorID),
			zap.String("object_type", record.ObjectType),
			zap.String("object_id", record.ObjectID),
			zap.String("channel", record.Channel),
			zap.Time("occurred_at", record.OccurredAt),
		}
		for key, value := range record.Metadata {
			fields = append(fields, zap.Any(strings.ToLower(key), value))
		}
		logger.Info("activity", fields...)
		return nil
	})
}
