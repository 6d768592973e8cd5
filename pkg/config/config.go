package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Orders       OrdersConfig
	Points       PointsConfig
	Settlement   SettlementConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Points.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PETALROUTE_APP_ENV" required:"true"`
	Port         string `envconfig:"PETALROUTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PETALROUTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PETALROUTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PETALROUTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PETALROUTE_DB_DSN"`
	Driver string `envconfig:"PETALROUTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PETALROUTE_DB_HOST"`
	LegacyPort     int    `envconfig:"PETALROUTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PETALROUTE_DB_USER"`
	LegacyPassword string `envconfig:"PETALROUTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PETALROUTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PETALROUTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PETALROUTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PETALROUTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PETALROUTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PETALROUTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PETALROUTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PETALROUTE_REDIS_ADDR"`
	Password     string        `envconfig:"PETALROUTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PETALROUTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PETALROUTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PETALROUTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PETALROUTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PETALROUTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PETALROUTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PETALROUTE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PETALROUTE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PETALROUTE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// OrdersConfig bounds what a single order may charge.
type OrdersConfig struct {
	MinAmount int64 `envconfig:"PETALROUTE_ORDER_MIN_AMOUNT" default:"1000"`
	MaxAmount int64 `envconfig:"PETALROUTE_ORDER_MAX_AMOUNT" default:"10000000"`
}

// PointsConfig drives customer point-back accrual on retail purchases.
type PointsConfig struct {
	PurchaseRate      string `envconfig:"PETALROUTE_POINTS_PURCHASE_RATE" default:"0.03"`
	ReferralRate      string `envconfig:"PETALROUTE_POINTS_REFERRAL_RATE" default:"0.05"`
	GrantValidityDays int    `envconfig:"PETALROUTE_POINTS_GRANT_VALIDITY_DAYS" default:"90"`
}

func (p PointsConfig) validate() error {
	if _, err := decimal.NewFromString(p.PurchaseRate); err != nil {
		return fmt.Errorf("invalid purchase point-back rate %q: %w", p.PurchaseRate, err)
	}
	if _, err := decimal.NewFromString(p.ReferralRate); err != nil {
		return fmt.Errorf("invalid referral point-back rate %q: %w", p.ReferralRate, err)
	}
	if p.GrantValidityDays <= 0 {
		return fmt.Errorf("grant validity days must be positive")
	}
	return nil
}

// PurchaseRateDecimal returns the validated purchase point-back rate.
func (p PointsConfig) PurchaseRateDecimal() decimal.Decimal {
	rate, _ := decimal.NewFromString(p.PurchaseRate)
	return rate
}

// ReferralRateDecimal returns the validated referral point-back rate.
func (p PointsConfig) ReferralRateDecimal() decimal.Decimal {
	rate, _ := decimal.NewFromString(p.ReferralRate)
	return rate
}

// GrantValidity returns how long newly issued grants stay redeemable.
func (p PointsConfig) GrantValidity() time.Duration {
	return time.Duration(p.GrantValidityDays) * 24 * time.Hour
}

// SettlementConfig schedules the weekly batch in merchant-local time.
type SettlementConfig struct {
	Weekday       int           `envconfig:"PETALROUTE_SETTLEMENT_WEEKDAY" default:"1"`
	Hour          int           `envconfig:"PETALROUTE_SETTLEMENT_HOUR" default:"9"`
	Timezone      string        `envconfig:"PETALROUTE_SETTLEMENT_TIMEZONE" default:"Asia/Seoul"`
	CheckInterval time.Duration `envconfig:"PETALROUTE_SETTLEMENT_CHECK_INTERVAL" default:"1h"`
	LockTTL       time.Duration `envconfig:"PETALROUTE_SETTLEMENT_LOCK_TTL" default:"2h"`
}

func (s SettlementConfig) validate() error {
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("settlement weekday must be in [0,6], got %d", s.Weekday)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("settlement hour must be in [0,23], got %d", s.Hour)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid settlement timezone %q: %w", s.Timezone, err)
	}
	return nil
}

// Location returns the validated settlement time zone.
func (s SettlementConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PETALROUTE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
