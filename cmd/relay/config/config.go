package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	// auto loads .env
	_ "github.com/joho/godotenv/autoload"
)

// Config for app
type Config struct {
	Port  string `env:"PORT" envDefault:"4000" validate:"required,numeric"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	BackendEndpoint  string `env:"AWS_N8N_ENDPOINT" envDefault:"https://your-aws-n8n.com/webhook/telegram" validate:"required,url"`
	BackendHealthURL string `env:"BACKEND_HEALTH_URL" validate:"omitempty,url"`
	RelayOrigin      string `env:"RELAY_ORIGIN" envDefault:"vercel-edge" validate:"required"`

	BotToken    string `env:"TELEGRAM_BOT_TOKEN" json:"-"`
	TelegramAPI string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org" validate:"required,url"`

	SupabaseURL     string `env:"SUPABASE_URL" validate:"omitempty,url"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY" json:"-"`
	SupabaseDBURL   string `env:"SUPABASE_DB_URL" json:"-"`
	PlatformTag     string `env:"PLATFORM_TAG" envDefault:"vercel_edge"`

	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s" validate:"gte=0"`
}

// New app config
func New() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.BackendHealthURL == "" {
		cfg.BackendHealthURL = cfg.BackendEndpoint
	}
	return cfg, cfg.Validate()
}

// Validate field formats, returning one readable message per invalid field
func (c Config) Validate() error {
	validate := validator.New()
	translator, _ := ut.New(en.New()).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		return err
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return errors.New("invalid config: " + strings.Join(msgs, "; "))
}
