package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env         string
	Port        string
	BaseURL     string
	FrontendURL string
	LogLevel    string
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// FeeConfig is the fee schedule applied at payment initiation.
type FeeConfig struct {
	ProcessingFee decimal.Decimal
	ServiceCharge decimal.Decimal
	ShippingFee   decimal.Decimal
}

type MayaConfig struct {
	BaseURL   string
	PublicKey string
	SecretKey string
}

type PayOSConfig struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
}

type GatewayConfig struct {
	Provider string
	Timeout  time.Duration
	Maya     MayaConfig
	PayOS    PayOSConfig
}

type StorageConfig struct {
	Driver   string
	Bucket   string
	LocalDir string
	// PublicURL prefixes object keys when building download links.
	PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type KafkaConfig struct {
	Brokers      []string
	RequestTopic string
	PaymentTopic string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseSSL   bool
}

type ChatConfig struct {
	Provider string
	APIKey   string
	Model    string
}

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Fees     FeeConfig
	Gateway  GatewayConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	Chat     ChatConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("FEE_PROCESSING", "280.00")
	v.SetDefault("FEE_SERVICE_CHARGE", "20.00")
	v.SetDefault("FEE_SHIPPING", "100.00")

	v.SetDefault("GATEWAY_PROVIDER", "maya")
	v.SetDefault("GATEWAY_TIMEOUT", "15s")
	v.SetDefault("MAYA_BASE_URL", "https://pg-sandbox.paymaya.com")

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "30s")

	v.SetDefault("KAFKA_REQUEST_TOPIC", "certificate.request.status")
	v.SetDefault("KAFKA_PAYMENT_TOPIC", "certificate.payment.status")

	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Barangay Portal")

	v.SetDefault("CHAT_PROVIDER", "none")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	fees, err := parseFees(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:         v.GetString("APP_ENV"),
			Port:        v.GetString("PORT"),
			BaseURL:     strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
			FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			LogLevel:    v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{URL: v.GetString("POSTGRES_URL")},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  v.GetDuration("JWT_TTL"),
		},
		Fees: fees,
		Gateway: GatewayConfig{
			Provider: strings.ToLower(v.GetString("GATEWAY_PROVIDER")),
			Timeout:  v.GetDuration("GATEWAY_TIMEOUT"),
			Maya: MayaConfig{
				BaseURL:   strings.TrimRight(v.GetString("MAYA_BASE_URL"), "/"),
				PublicKey: v.GetString("MAYA_PUBLIC_KEY"),
				SecretKey: v.GetString("MAYA_SECRET_KEY"),
			},
			PayOS: PayOSConfig{
				ClientID:    v.GetString("PAYOS_CLIENT_ID"),
				APIKey:      v.GetString("PAYOS_API_KEY"),
				ChecksumKey: v.GetString("PAYOS_CHECKSUM_KEY"),
			},
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Bucket:    v.GetString("GCS_BUCKET"),
			LocalDir:  v.GetString("STORAGE_LOCAL_DIR"),
			PublicURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_URL"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  v.GetDuration("LOCK_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			RequestTopic: v.GetString("KAFKA_REQUEST_TOPIC"),
			PaymentTopic: v.GetString("KAFKA_PAYMENT_TOPIC"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			FromName: v.GetString("SMTP_FROM_NAME"),
			UseSSL:   v.GetBool("SMTP_USE_SSL"),
		},
		Chat: ChatConfig{
			Provider: strings.ToLower(v.GetString("CHAT_PROVIDER")),
			APIKey:   v.GetString("CHAT_API_KEY"),
			Model:    v.GetString("CHAT_MODEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFees(v *viper.Viper) (FeeConfig, error) {
	var fees FeeConfig
	for key, dst := range map[string]*decimal.Decimal{
		"FEE_PROCESSING":     &fees.ProcessingFee,
		"FEE_SERVICE_CHARGE": &fees.ServiceCharge,
		"FEE_SHIPPING":       &fees.ShippingFee,
	} {
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return fees, fmt.Errorf("config: %s: %w", key, err)
		}
		if d.IsNegative() {
			return fees, fmt.Errorf("config: %s must not be negative", key)
		}
		*dst = d.Round(2)
	}
	return fees, nil
}

func (c *Config) validate() error {
	switch c.Gateway.Provider {
	case "maya", "payos":
	default:
		return fmt.Errorf("config: unsupported GATEWAY_PROVIDER %q", c.Gateway.Provider)
	}
	switch c.Storage.Driver {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required when STORAGE_DRIVER=gcs")
		}
	default:
		return fmt.Errorf("config: unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("config: GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// RequireServe checks settings only the HTTP server needs.
func (c *Config) RequireServe() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: POSTGRES_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
