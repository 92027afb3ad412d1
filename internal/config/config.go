package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the teamsched service.
type Config struct {
	Addr            string        `env:"ADDR,default=:8080"`
	DBDSN           string        `env:"DB_DSN,required"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY,required"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=336h"`

	KakaoClientID     string        `env:"KAKAO_CLIENT_ID"`
	KakaoClientSecret string        `env:"KAKAO_CLIENT_SECRET"`
	KakaoRedirectURI  string        `env:"KAKAO_REDIRECT_URI"`
	KakaoTimeout      time.Duration `env:"KAKAO_TIMEOUT,default=5s"`

	NATSURL      string   `env:"NATS_URL"`
	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`

	SeedUsername string `env:"SEED_USERNAME"`
	SeedPassword string `env:"SEED_PASSWORD"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
