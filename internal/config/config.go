package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server       ServerConfig       `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Billing      BillingConfig      `validate:"required"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	PayPal       PayPalConfig       `mapstructure:"paypal"`
	Notification NotificationConfig `mapstructure:"notification"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level string `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
	AutoMigrate            bool
}

// BillingConfig carries the currency, tax and dunning policy used by the
// billing core. Prices are per user per month, keyed by tier.
type BillingConfig struct {
	Currency string `validate:"required"`
	// TaxRate is the VAT fraction applied to all invoices, e.g. 0.20
	TaxRate decimal.Decimal `validate:"required"`
	// InvoiceDueDays is the number of days after the invoice date that the
	// invoice falls due
	InvoiceDueDays int `validate:"required,gt=0"`
	// GracePeriodDays is the total window after the first failed payment
	// before a past_due subscription is suspended
	GracePeriodDays int `validate:"required,gt=0"`
	// FinalWarningDays is how many days before suspension the final
	// warning notification fires
	FinalWarningDays int `validate:"required,gt=0"`
	// MaxPaymentFailures is the number of consecutive failed charges that
	// also triggers suspension regardless of elapsed days
	MaxPaymentFailures int `validate:"required,gt=0"`
	// TierPrices maps tier name to the per-user monthly price
	TierPrices map[string]decimal.Decimal `validate:"required"`
	// GatewayTimeout bounds every outbound call to a payment gateway
	GatewayTimeout time.Duration
}

type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	// PriceIDs maps tier name to the Stripe price object billed for it
	PriceIDs map[string]string `mapstructure:"price_ids"`
}

type PayPalConfig struct {
	ClientID  string `mapstructure:"client_id"`
	Secret    string `mapstructure:"secret"`
	BaseURL   string `mapstructure:"base_url"`
	WebhookID string `mapstructure:"webhook_id"`
	// PlanIDs maps tier name to the PayPal billing plan for it
	PlanIDs map[string]string `mapstructure:"plan_ids"`
}

type NotificationConfig struct {
	Topic string `mapstructure:"topic"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tribe365")

	v.SetEnvPrefix("TRIBE365")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Billing.TaxRate.IsNegative() {
		return fmt.Errorf("billing tax rate must be non negative")
	}
	for _, tier := range []types.SubscriptionTier{
		types.SubscriptionTierSpark,
		types.SubscriptionTierMomentum,
		types.SubscriptionTierVision,
		types.SubscriptionTierBasecamp,
	} {
		price, ok := c.Billing.TierPrices[tier.String()]
		if !ok {
			return fmt.Errorf("missing price for tier %s", tier)
		}
		if price.IsNegative() {
			return fmt.Errorf("price for tier %s must be non negative", tier)
		}
	}
	return nil
}

// PricePerUser returns the configured per-user monthly price for a tier.
func (c BillingConfig) PricePerUser(tier types.SubscriptionTier) (decimal.Decimal, bool) {
	price, ok := c.TierPrices[tier.String()]
	return price, ok
}

// GetDefaultConfig returns a default configuration for local development.
// The tier price table and 20% VAT mirror the production defaults.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Server:  ServerConfig{Address: ":8080"},
		Logging: LoggingConfig{Level: "debug"},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "tribe365",
			DBName:                 "tribe365_billing",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		Billing: BillingConfig{
			Currency:           "GBP",
			TaxRate:            decimal.NewFromFloat(0.20),
			InvoiceDueDays:     7,
			GracePeriodDays:    37,
			FinalWarningDays:   7,
			MaxPaymentFailures: 5,
			TierPrices: map[string]decimal.Decimal{
				types.SubscriptionTierSpark.String():    decimal.NewFromFloat(3.00),
				types.SubscriptionTierMomentum.String(): decimal.NewFromFloat(5.00),
				types.SubscriptionTierVision.String():   decimal.NewFromFloat(8.00),
				types.SubscriptionTierBasecamp.String(): decimal.NewFromFloat(10.00),
			},
			GatewayTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{Topic: "billing_notifications"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
