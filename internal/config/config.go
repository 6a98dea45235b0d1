package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
)

// Config represents the gateway configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Crypto    CryptoConfig
	Providers ProviderConfig
	Access    AccessConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// DatabaseConfig contains Postgres connection settings.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_URL,required"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"10"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"50"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"3600"` // seconds
}

// RedisConfig contains the service-key cache settings. An empty address
// disables the cache; authentication then always hits the database.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"        envDefault:"0"`
	TTL      int    `env:"REDIS_KEY_TTL"   envDefault:"300"` // seconds
}

// CryptoConfig contains the credential encryption passphrase.
type CryptoConfig struct {
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
}

// ProviderConfig contains per-provider endpoint settings. API keys are
// per-tenant and come from the credential store, never from the environment.
type ProviderConfig struct {
	Timeout          int    `env:"PROVIDER_TIMEOUT"    envDefault:"60"` // seconds
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"     envDefault:"https://api.openai.com/v1"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"  envDefault:"https://api.anthropic.com"`
	MistralBaseURL   string `env:"MISTRAL_BASE_URL"    envDefault:"https://api.mistral.ai"`
	CohereBaseURL    string `env:"COHERE_BASE_URL"     envDefault:"https://api.cohere.com"`
	GeminiBaseURL    string `env:"GEMINI_BASE_URL"     envDefault:"https://generativelanguage.googleapis.com"`
}

// AccessConfig contains access-control policy toggles.
//
// EnforceJoinLimit gates join_organization on the org's plan member ceiling.
// Creation is always plan-gated; joining historically was not, so the default
// preserves that behavior.
type AccessConfig struct {
	EnforceJoinLimit bool `env:"ACCESS_ENFORCE_JOIN_LIMIT" envDefault:"false"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*DatabaseConfig
	*RedisConfig
	*CryptoConfig
	*ProviderConfig
	*AccessConfig
}

// Load loads environment files and parses configuration.
func Load() (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Database,
		&cfg.Redis,
		&cfg.Crypto,
		&cfg.Providers,
		&cfg.Access,
	}
}
