package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NATSSubject            string
	JWTSecret              string
	JWTTTL                 time.Duration
	PreviewPlaceholder     string
	PreviewTTL             time.Duration
	ImageMaxWidth          int
	ImageQuality           int
	AIProvider             string
	GeminiAPIKey           string
	GeminiModel            string
	OpenAIAPIKey           string
	OpenAIModel            string
	GradingConcurrency     int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SeedOnStartup          bool
	SeedSamples            bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTELLIGRADE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "IntelliGrade API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:intelligrade.db?_foreign_keys=on")
	v.SetDefault("nats.subject", "intelligrade.notifications")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("preview.placeholder", "/static/placeholder-document.svg")
	v.SetDefault("preview.ttl", "2h")
	v.SetDefault("image.max_width", 1200)
	v.SetDefault("image.quality", 70)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("grading.concurrency", 4)
	v.SetDefault("cloudinary.folder", "intelligrade")
	v.SetDefault("seed.on_startup", true)
	v.SetDefault("seed.samples", true)
}

func fromViper(v *viper.Viper) (Config, error) {
	jwtTTL, err := time.ParseDuration(v.GetString("jwt.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	previewTTL, err := time.ParseDuration(v.GetString("preview.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid preview ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 jwtTTL,
		PreviewPlaceholder:     v.GetString("preview.placeholder"),
		PreviewTTL:             previewTTL,
		ImageMaxWidth:          v.GetInt("image.max_width"),
		ImageQuality:           v.GetInt("image.quality"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		GeminiAPIKey:           v.GetString("gemini_api_key"),
		GeminiModel:            v.GetString("gemini.model"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		GradingConcurrency:     v.GetInt("grading.concurrency"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SeedOnStartup:          v.GetBool("seed.on_startup"),
		SeedSamples:            v.GetBool("seed.samples"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.AIProvider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.ImageMaxWidth <= 0 {
		cfg.ImageMaxWidth = 1200
	}

	if cfg.ImageQuality <= 0 || cfg.ImageQuality > 100 {
		cfg.ImageQuality = 70
	}

	if cfg.GradingConcurrency <= 0 {
		cfg.GradingConcurrency = 4
	}

	return cfg, nil
}
