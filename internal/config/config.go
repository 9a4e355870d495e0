package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	Kafka Kafka `validate:"required"`

	Postgres Postgres `validate:"required"`

	SMSA SMSA `validate:"required"`

	Shipping Shipping `validate:"required"`
}

type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

type Kafka struct {
	GroupID string   `validate:"required"`
	Brokers []string `validate:"required,min=1,dive,hostname_port"`
	Topic   string   `validate:"required"`

	ReaderMaxWait time.Duration `validate:"gte=0"`
	BatchTimeout  time.Duration `validate:"gte=0"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

// SMSA holds STAX API client settings. Credentials themselves live on
// carrier accounts, not here.
type SMSA struct {
	BaseURL string `validate:"required,url"`

	Timeout   time.Duration `validate:"gt=0"`
	RateLimit float64       `validate:"gt=0"`
	RateBurst int           `validate:"gte=1"`
}

type Shipping struct {
	// Destinations equal to HomeCountry are served by domestic accounts.
	HomeCountry string `validate:"required"`

	// Name of the CRM deal field carrying the operator's carrier choice.
	CRMCarrierField string `validate:"required"`
	// Deal stage that marks a deal ready for shipping.
	CRMShippingStage string `validate:"required"`

	DispatchSweepInterval time.Duration `validate:"gt=0"`
	TrackingSweepInterval time.Duration `validate:"gt=0"`

	MappingCacheSize int           `validate:"gte=1"`
	MappingCacheTTL  time.Duration `validate:"gt=0"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "8080"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:3000"), ","),
		},

		Kafka: Kafka{
			GroupID: env("KAFKA_GROUP_ID", "shipping-service"),
			Topic:   env("KAFKA_TOPIC", "crm-webhook-events"),
			Brokers: strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),

			ReaderMaxWait: envDuration("KAFKA_READER_MAX_WAIT", 10*time.Millisecond),
			BatchTimeout:  envDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "shipping"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		SMSA: SMSA{
			BaseURL:   env("SMSA_BASE_URL", "https://sam.smsaexpress.com/STAXRestApi/api"),
			Timeout:   envDuration("SMSA_TIMEOUT", 30*time.Second),
			RateLimit: envFloat("SMSA_RATE_LIMIT", 5),
			RateBurst: envInt("SMSA_RATE_BURST", 10),
		},

		Shipping: Shipping{
			HomeCountry:      env("SHIPPING_HOME_COUNTRY", "Saudi Arabia"),
			CRMCarrierField:  env("CRM_CARRIER_FIELD", "UF_CRM_SHIPPING_COMPANY"),
			CRMShippingStage: env("CRM_SHIPPING_STAGE", "WON"),

			DispatchSweepInterval: envDuration("DISPATCH_SWEEP_INTERVAL", 5*time.Minute),
			TrackingSweepInterval: envDuration("TRACKING_SWEEP_INTERVAL", 15*time.Minute),

			MappingCacheSize: envInt("MAPPING_CACHE_SIZE", 512),
			MappingCacheTTL:  envDuration("MAPPING_CACHE_TTL", 10*time.Minute),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
