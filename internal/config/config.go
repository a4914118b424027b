package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port" env:"AUTHFLOW_SERVER_PORT"`
	BaseURL         string        `yaml:"base_url" env:"AUTHFLOW_BASE_URL"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"AUTHFLOW_SHUTDOWN_TIMEOUT"`
	LogLevel        string        `yaml:"log_level" env:"AUTHFLOW_LOG_LEVEL"`
}

// DatabaseConfig: an empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN          string `yaml:"url" env:"AUTHFLOW_DATABASE_URL"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTHFLOW_DATABASE_AUTO_MIGRATE"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"AUTHFLOW_DATABASE_MAX_OPEN_CONNS"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"AUTHFLOW_SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"AUTHFLOW_SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"AUTHFLOW_SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"AUTHFLOW_SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"AUTHFLOW_FROM_EMAIL"`
	FromName     string `yaml:"from_name" env:"AUTHFLOW_FROM_NAME"`
	DryRun       bool   `yaml:"dry_run" env:"AUTHFLOW_EMAIL_DRY_RUN"`
}

type SecurityConfig struct {
	JWTSecret    string        `yaml:"jwt_secret" env:"AUTHFLOW_JWT_SECRET"`
	TokenPepper  string        `yaml:"token_pepper" env:"AUTHFLOW_TOKEN_PEPPER"`
	BcryptCost   int           `yaml:"bcrypt_cost" env:"AUTHFLOW_BCRYPT_COST"`
	SessionTTL   time.Duration `yaml:"session_ttl" env:"AUTHFLOW_SESSION_TTL"`
	CookieName   string        `yaml:"cookie_name" env:"AUTHFLOW_COOKIE_NAME"`
	CookieSecure bool          `yaml:"cookie_secure" env:"AUTHFLOW_COOKIE_SECURE"`
}

type TokensConfig struct {
	VerificationTTL  time.Duration `yaml:"verification_ttl" env:"AUTHFLOW_VERIFICATION_TTL"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl" env:"AUTHFLOW_PASSWORD_RESET_TTL"`
	TwoFactorTTL     time.Duration `yaml:"two_factor_ttl" env:"AUTHFLOW_TWO_FACTOR_TTL"`
	// ConfirmationTTL bounds how long a passed 2FA challenge stays usable; 0 disables the bound.
	ConfirmationTTL time.Duration `yaml:"confirmation_ttl" env:"AUTHFLOW_CONFIRMATION_TTL"`
	CodeDigits      int           `yaml:"code_digits" env:"AUTHFLOW_CODE_DIGITS"`
}

type RoutesConfig struct {
	PublicRoutes         []string `yaml:"public" env:"AUTHFLOW_PUBLIC_ROUTES" envSeparator:","`
	AuthRoutes           []string `yaml:"auth" env:"AUTHFLOW_AUTH_ROUTES" envSeparator:","`
	PrivateRoutes        []string `yaml:"private" env:"AUTHFLOW_PRIVATE_ROUTES" envSeparator:","`
	APIAuthPrefix        string   `yaml:"api_auth_prefix" env:"AUTHFLOW_API_AUTH_PREFIX"`
	DefaultLoginRedirect string   `yaml:"default_login_redirect" env:"AUTHFLOW_DEFAULT_LOGIN_REDIRECT"`
	LoginPath            string   `yaml:"login_path" env:"AUTHFLOW_LOGIN_PATH"`
}

type ProviderConfig struct {
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string   `yaml:"redirect_url" env:"REDIRECT_URL"`
	Scopes       []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
	AuthURL      string   `yaml:"auth_url" env:"AUTH_URL"`
	TokenURL     string   `yaml:"token_url" env:"TOKEN_URL"`
	UserInfoURL  string   `yaml:"user_info_url" env:"USER_INFO_URL"`
}

type OAuthConfig struct {
	Google ProviderConfig `yaml:"google" envPrefix:"AUTHFLOW_GOOGLE_"`
	GitHub ProviderConfig `yaml:"github" envPrefix:"AUTHFLOW_GITHUB_"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Email    EmailConfig    `yaml:"email"`
	Security SecurityConfig `yaml:"security"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Routes   RoutesConfig   `yaml:"routes"`
	OAuth    OAuthConfig    `yaml:"oauth"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed), overlays
// AUTHFLOW_* environment variables, fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PathFromEnv returns AUTHFLOW_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("AUTHFLOW_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "authflow"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 10
	}
	if c.Security.SessionTTL == 0 {
		c.Security.SessionTTL = 24 * time.Hour
	}
	if c.Security.CookieName == "" {
		c.Security.CookieName = "authflow_session"
	}
	if c.Tokens.VerificationTTL == 0 {
		c.Tokens.VerificationTTL = 5 * time.Minute
	}
	if c.Tokens.PasswordResetTTL == 0 {
		c.Tokens.PasswordResetTTL = 5 * time.Minute
	}
	if c.Tokens.TwoFactorTTL == 0 {
		c.Tokens.TwoFactorTTL = 5 * time.Minute
	}
	if c.Tokens.CodeDigits == 0 {
		c.Tokens.CodeDigits = 6
	}
	if c.Routes.PublicRoutes == nil {
		c.Routes.PublicRoutes = []string{"/", "/auth/email-confirmation"}
	}
	if c.Routes.AuthRoutes == nil {
		c.Routes.AuthRoutes = []string{"/auth/login", "/auth/register", "/auth/reset", "/auth/new-password"}
	}
	if c.Routes.PrivateRoutes == nil {
		c.Routes.PrivateRoutes = []string{"/settings", "/server", "/client", "/dashboard"}
	}
	if c.Routes.APIAuthPrefix == "" {
		c.Routes.APIAuthPrefix = "/api/auth"
	}
	if c.Routes.DefaultLoginRedirect == "" {
		c.Routes.DefaultLoginRedirect = "/settings"
	}
	if c.Routes.LoginPath == "" {
		c.Routes.LoginPath = "/auth/login"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwt_secret is required"))
	}
	if c.Security.TokenPepper == "" {
		errs = append(errs, errors.New("security.token_pepper is required"))
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost %d out of range [4,31]", c.Security.BcryptCost))
	}
	if !c.Email.DryRun && c.Email.SMTPHost == "" {
		errs = append(errs, errors.New("email.smtp_host is required unless email.dry_run is set"))
	}
	if c.Tokens.CodeDigits < 4 || c.Tokens.CodeDigits > 10 {
		errs = append(errs, fmt.Errorf("tokens.code_digits %d out of range [4,10]", c.Tokens.CodeDigits))
	}
	return errors.Join(errs...)
}
