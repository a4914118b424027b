package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "authflow/docs"
	"authflow/internal/config"
	"authflow/internal/handlers"
	"authflow/internal/logging"
	"authflow/internal/middleware"
	"authflow/internal/migrations"
	"authflow/internal/repositories"
	"authflow/internal/routes"
	"authflow/internal/services"
	"authflow/internal/session"
	"authflow/internal/utils"
)

type options struct {
	store    repositories.Store
	notifier services.Notifier
}

type Option func(*options)

// WithStore replaces the store selected by the database config.
func WithStore(s repositories.Store) Option {
	return func(o *options) { o.store = s }
}

// WithNotifier replaces the mail transport selected by the email config.
func WithNotifier(n services.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

type App struct {
	Router *gin.Engine
	cfg    *config.Config
	log    logging.Logger
	db     *sql.DB
}

// New wires config → store → services → handlers → gin.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, log: log}

	// === Store ===
	store := o.store
	if store == nil {
		var err error
		if store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	// === Services ===
	notifier := o.notifier
	if notifier == nil {
		if cfg.Email.DryRun {
			notifier = services.NewLogNotifier(cfg.Server.BaseURL, log)
		} else {
			notifier = services.NewEmailNotifier(
				cfg.Email.SMTPHost,
				cfg.Email.SMTPPort,
				cfg.Email.SMTPUser,
				cfg.Email.SMTPPassword,
				cfg.Email.FromEmail,
				cfg.Email.FromName,
				cfg.Server.BaseURL,
				log,
			)
		}
	}

	hasher := services.NewBcryptHasher(cfg.Security.BcryptCost)
	tokens := services.NewTokenService(store, utils.NewTokenHasher(cfg.Security.TokenPepper), services.TokenConfig{
		VerificationTTL:  cfg.Tokens.VerificationTTL,
		PasswordResetTTL: cfg.Tokens.PasswordResetTTL,
		TwoFactorTTL:     cfg.Tokens.TwoFactorTTL,
		CodeDigits:       cfg.Tokens.CodeDigits,
	}, log)
	verifier := services.NewCredentialVerifier(store, hasher)

	pipeline := session.NewPipeline(
		services.NewSignInGate(store, cfg.Tokens.ConfirmationTTL, log).Stage(),
		services.NewClaimsEnricher(store, log).Stage(),
	)
	sessions := session.NewManager(pipeline, cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	log.Info(ctx, "session pipeline ready", "stages", pipeline.Stages())

	signin := services.NewSignInService(store, verifier, tokens, notifier, sessions, log)
	registration := services.NewRegistrationService(store, hasher, tokens, notifier, log)
	verification := services.NewVerificationService(store, tokens, log)
	reset := services.NewPasswordResetService(store, hasher, tokens, notifier, log)
	settings := services.NewSettingsService(store, verifier, hasher, tokens, notifier, log)

	// === Handlers ===
	cookie := handlers.CookieSettings{Name: cfg.Security.CookieName, Secure: cfg.Security.CookieSecure}
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(signin, sessions, cookie, log),
		User:     handlers.NewUserHandler(registration, settings, log),
		Verify:   handlers.NewVerifyHandler(verification, log),
		Password: handlers.NewPasswordHandler(reset, log),
		Pages:    handlers.NewPageHandler(verification, log),
	}
	if providers := oauthProviders(cfg.OAuth); len(providers) > 0 {
		oauth := services.NewOAuthService(store, sessions, log, providers...)
		h.OAuth = handlers.NewOAuthHandler(oauth, cookie, cfg.Routes.LoginPath, cfg.Routes.DefaultLoginRedirect, log)
		log.Info(ctx, "oauth providers enabled", "providers", oauth.Providers())
	}

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.LoadSession(sessions, cfg.Security.CookieName))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	routes.SetupRoutes(router, h, middleware.RouteTable{
		PublicRoutes:         cfg.Routes.PublicRoutes,
		AuthRoutes:           cfg.Routes.AuthRoutes,
		PrivateRoutes:        cfg.Routes.PrivateRoutes,
		APIAuthPrefix:        cfg.Routes.APIAuthPrefix,
		DefaultLoginRedirect: cfg.Routes.DefaultLoginRedirect,
		LoginPath:            cfg.Routes.LoginPath,
	})
	a.Router = router
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repositories.Store, error) {
	if a.cfg.Database.DSN == "" {
		a.log.Warn(ctx, "database.url is empty, using in-memory store")
		return repositories.NewMemoryStore(), nil
	}
	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if a.cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.log.Info(ctx, "migrations applied")
	}
	a.db = db
	return repositories.NewPostgresStore(db), nil
}

func oauthProviders(cfg config.OAuthConfig) []*services.OAuthProvider {
	settings := func(p config.ProviderConfig) services.ProviderSettings {
		return services.ProviderSettings{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			UserInfoURL:  p.UserInfoURL,
		}
	}
	var out []*services.OAuthProvider
	if s := settings(cfg.Google); s.Enabled() {
		out = append(out, services.NewGoogleProvider(s))
	}
	if s := settings(cfg.GitHub); s.Enabled() {
		out = append(out, services.NewGitHubProvider(s))
	}
	return out
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run loads the config, serves HTTP and shuts down gracefully once ctx is
// done.
func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(os.Stdout, cfg.Server.LogLevel)

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error(ctx, "close database", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: a.Router,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
