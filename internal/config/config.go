package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds environment-driven configuration.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	JWTSecret string

	PostgresURL string

	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration

	RabbitMQURL string

	Payment Payment
	Orders  Orders
}

// Payment configures the hosted checkout gateway.
type Payment struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

// Orders configures the pending-order sweeper.
type Orders struct {
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

var (
	ErrMissingJWTSecret     = errors.New("auth.jwt_secret is not set")
	ErrMissingPaymentSecret = errors.New("payment.key_secret is not set")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.cart_ttl", 720*time.Hour)
	v.SetDefault("payment.base_url", "https://api.razorpay.com")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("orders.pending_ttl", 24*time.Hour)
	v.SetDefault("orders.sweep_interval", 15*time.Minute)
}

// Load reads `.env` (when present), an optional config.yaml and PRINTPOINT_*
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/printpoint")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PRINTPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:           v.GetString("app.env"),
		HTTPAddr:      v.GetString("http.addr"),
		LogLevel:      v.GetString("log.level"),
		JWTSecret:     v.GetString("auth.jwt_secret"),
		PostgresURL:   v.GetString("postgres.url"),
		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		CartTTL:       v.GetDuration("redis.cart_ttl"),
		RabbitMQURL:   v.GetString("rabbitmq.url"),
		Payment: Payment{
			BaseURL:   v.GetString("payment.base_url"),
			KeyID:     v.GetString("payment.key_id"),
			KeySecret: v.GetString("payment.key_secret"),
			Currency:  v.GetString("payment.currency"),
			Timeout:   v.GetDuration("payment.timeout"),
		},
		Orders: Orders{
			PendingTTL:    v.GetDuration("orders.pending_ttl"),
			SweepInterval: v.GetDuration("orders.sweep_interval"),
		},
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}
	// payment callbacks are only as trustworthy as this key
	if cfg.Payment.KeySecret == "" {
		return Config{}, ErrMissingPaymentSecret
	}
	return cfg, nil
}
