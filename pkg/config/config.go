package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Frontend     FrontendConfig
	Pricing      PricingConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Shipping     ShippingConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOOMLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"LOOMLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOOMLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOOMLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LOOMLINE_DB_DSN"`
	Driver string `envconfig:"LOOMLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOOMLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"LOOMLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOOMLINE_DB_USER"`
	LegacyPassword string `envconfig:"LOOMLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOOMLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOOMLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOOMLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOOMLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOOMLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOOMLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOOMLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOOMLINE_REDIS_ADDR"`
	Password     string        `envconfig:"LOOMLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOOMLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOOMLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOOMLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOOMLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOOMLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOOMLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"LOOMLINE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LOOMLINE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOOMLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOOMLINE_AUTO_MIGRATE" default:"false"`
}

// FrontendConfig locates the storefront that payment providers redirect back to.
type FrontendConfig struct {
	BaseURL      string `envconfig:"LOOMLINE_FRONTEND_BASE_URL" required:"true"`
	CheckoutPath string `envconfig:"LOOMLINE_FRONTEND_CHECKOUT_PATH" default:"/checkout"`
}

// CheckoutURL joins the frontend base with the checkout path.
func (f FrontendConfig) CheckoutURL() string {
	return strings.TrimRight(f.BaseURL, "/") + f.CheckoutPath
}

type PricingConfig struct {
	TaxRate                    float64 `envconfig:"LOOMLINE_TAX_RATE" default:"0.08"`
	FreeShippingThresholdCents int64   `envconfig:"LOOMLINE_FREE_SHIPPING_THRESHOLD_CENTS" default:"5000"`
	FlatShippingRateCents      int64   `envconfig:"LOOMLINE_FLAT_SHIPPING_RATE_CENTS" default:"999"`
	MaterialRatePerSqInCents   int64   `envconfig:"LOOMLINE_MATERIAL_RATE_PER_SQIN_CENTS" default:"12"`
}

type CartConfig struct {
	GuestSnapshotTTL      time.Duration `envconfig:"LOOMLINE_CART_GUEST_SNAPSHOT_TTL" default:"720h"`
	SnapshotCeilingBytes  int           `envconfig:"LOOMLINE_CART_SNAPSHOT_CEILING_BYTES" default:"65536"`
	FieldTruncationBytes  int           `envconfig:"LOOMLINE_CART_FIELD_TRUNCATION_BYTES" default:"8192"`
	SyncGuardTTL          time.Duration `envconfig:"LOOMLINE_CART_SYNC_GUARD_TTL" default:"5m"`
	MutationInFlightGuard time.Duration `envconfig:"LOOMLINE_CART_MUTATION_GUARD_TTL" default:"30s"`
}

type CheckoutConfig struct {
	DraftTTL        time.Duration `envconfig:"LOOMLINE_CHECKOUT_DRAFT_TTL" default:"24h"`
	CaptureGuardTTL time.Duration `envconfig:"LOOMLINE_CHECKOUT_CAPTURE_GUARD_TTL" default:"48h"`
	Currency        string        `envconfig:"LOOMLINE_CHECKOUT_CURRENCY" default:"usd"`
}

type ShippingConfig struct {
	APIKey            string        `envconfig:"LOOMLINE_SHIPSTATION_API_KEY"`
	APISecret         string        `envconfig:"LOOMLINE_SHIPSTATION_API_SECRET"`
	BaseURL           string        `envconfig:"LOOMLINE_SHIPSTATION_BASE_URL" default:"https://ssapi.shipstation.com"`
	CarrierCode       string        `envconfig:"LOOMLINE_SHIPSTATION_CARRIER_CODE" default:"stamps_com"`
	OriginPostalCode  string        `envconfig:"LOOMLINE_SHIPSTATION_ORIGIN_POSTAL" required:"true"`
	RequestTimeout    time.Duration `envconfig:"LOOMLINE_SHIPSTATION_TIMEOUT" default:"10s"`
	DebounceWindow    time.Duration `envconfig:"LOOMLINE_SHIPPING_DEBOUNCE_WINDOW" default:"400ms"`
	FallbackCostCents int64         `envconfig:"LOOMLINE_SHIPPING_FALLBACK_COST_CENTS" default:"1299"`
	FallbackDays      int           `envconfig:"LOOMLINE_SHIPPING_FALLBACK_DAYS" default:"7"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LOOMLINE_STRIPE_API_KEY"`
	Secret string `envconfig:"LOOMLINE_STRIPE_SECRET"`
	Env    string `envconfig:"LOOMLINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID string `envconfig:"LOOMLINE_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"LOOMLINE_PAYPAL_SECRET"`
	Env      string `envconfig:"LOOMLINE_PAYPAL_ENV" default:"sandbox"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
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
