package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/pgstay/go-auth"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is prepended to every environment override, e.g.
// PGAUTH_AUTH_JWT_SECRET for auth.jwt.secret
const EnvPrefix = "PGAUTH"

// DevSigningKey is only accepted when app.env is a development environment
const DevSigningKey = "dev-only-signing-key-change-me"

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type AppCfg struct {
	Env string `mapstructure:"env"`
}

type HTTPCfg struct {
	Addr        string   `mapstructure:"addr"`
	BasePath    string   `mapstructure:"base_path"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type JWTCfg struct {
	Secret            string   `mapstructure:"secret"`
	ExpirationMinutes int      `mapstructure:"expiration_minutes"`
	Issuer            string   `mapstructure:"issuer"`
	Audience          []string `mapstructure:"audience"`
}

type AuthCfg struct {
	JWT              JWTCfg   `mapstructure:"jwt"`
	ContextKey       string   `mapstructure:"context_key"`
	AuthScheme       string   `mapstructure:"auth_scheme"`
	BcryptCost       int      `mapstructure:"bcrypt_cost"`
	PhoneRegion      string   `mapstructure:"phone_region"`
	DeterministicIDs bool     `mapstructure:"deterministic_ids"`
	PublicRoutes     []string `mapstructure:"public_routes"`
}

type StoreCfg struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoginCfg struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

type LogCfg struct {
	Development bool `mapstructure:"development"`
}

// Config is the service configuration. It implements auth.Config.
type Config struct {
	App   AppCfg   `mapstructure:"app"`
	HTTP  HTTPCfg  `mapstructure:"http"`
	Auth  AuthCfg  `mapstructure:"auth"`
	Store StoreCfg `mapstructure:"store"`
	Redis RedisCfg `mapstructure:"redis"`
	Login LoginCfg `mapstructure:"login"`
	Log   LogCfg   `mapstructure:"log"`
}

var _ auth.Config = (*Config)(nil)

// Load reads an optional config file at path, then .env and the process
// environment. The result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default, so IsSet tells an explicit value apart
	_ = v.BindEnv("log.development")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode config")
	}

	if !v.IsSet("log.development") {
		cfg.Log.Development = cfg.IsDevelopment()
	}

	cfg.finalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_path", "")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.expiration_minutes", 60)
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", []string{})
	v.SetDefault("auth.context_key", "user")
	v.SetDefault("auth.auth_scheme", "Bearer")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("auth.phone_region", auth.DefaultPhoneRegion)
	v.SetDefault("auth.deterministic_ids", false)
	v.SetDefault("auth.public_routes", []string{})
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.dsn", "file:pgauth.db?cache=shared&_pragma=foreign_keys(1)")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("login.max_attempts", auth.MaxLoginAttempts)
	v.SetDefault("login.cooldown", auth.CoolDownPeriod)
}

func (c *Config) finalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.HTTP.BasePath = strings.TrimSuffix(c.HTTP.BasePath, "/")
	if len(c.Auth.PublicRoutes) == 0 {
		c.Auth.PublicRoutes = auth.DefaultPublicRoutes(c.HTTP.BasePath)
	}
	if c.Auth.JWT.Secret == "" && c.IsDevelopment() {
		c.Auth.JWT.Secret = DevSigningKey
	}
}

// IsDevelopment reports whether app.env names a development environment
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.App.Env) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// Validate refuses an empty, default or short signing secret outside
// development and a non positive token TTL.
func (c *Config) Validate() error {
	jwtRules := []*validation.FieldRules{
		validation.Field(&c.Auth.JWT.ExpirationMinutes, validation.Required, validation.Min(1)),
	}
	if !c.IsDevelopment() {
		jwtRules = append(jwtRules, validation.Field(&c.Auth.JWT.Secret,
			validation.Required,
			validation.NotIn(DevSigningKey).Error("must not be the development key"),
			validation.Length(32, 0),
		))
	}

	err := validation.Errors{
		"jwt": validation.ValidateStruct(&c.Auth.JWT, jwtRules...),
		"store": validation.ValidateStruct(&c.Store,
			validation.Field(&c.Store.Driver, validation.Required, validation.In(StoreSQLite, StoreMemory)),
		),
		"login": validation.ValidateStruct(&c.Login,
			validation.Field(&c.Login.MaxAttempts, validation.Min(1)),
			validation.Field(&c.Login.Cooldown, validation.Min(time.Second)),
		),
	}.Filter()

	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid configuration").
			WithTextCode("INVALID_CONFIG")
	}
	return nil
}

// Redacted returns a copy safe to log
func (c Config) Redacted() Config {
	if c.Auth.JWT.Secret != "" {
		c.Auth.JWT.Secret = "********"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "********"
	}
	return c
}

func (c *Config) GetSigningKey() string {
	return c.Auth.JWT.Secret
}

func (c *Config) GetSigningMethod() string {
	return "HS256"
}

func (c *Config) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c *Config) GetTokenExpiration() int {
	return c.Auth.JWT.ExpirationMinutes
}

func (c *Config) GetAuthScheme() string {
	return c.Auth.AuthScheme
}

func (c *Config) GetIssuer() string {
	return c.Auth.JWT.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Auth.JWT.Audience
}

func (c *Config) GetPublicRoutes() []string {
	return c.Auth.PublicRoutes
}

func (c *Config) GetPasswordCost() int {
	return c.Auth.BcryptCost
}

func (c *Config) GetPhoneRegion() string {
	return c.Auth.PhoneRegion
}

func (c *Config) UseDeterministicIDs() bool {
	return c.Auth.DeterministicIDs
}
