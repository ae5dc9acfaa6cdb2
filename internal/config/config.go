package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	OIDC       OIDCConfig
	Gateway    GatewayConfig
	RateLimit  RateLimitConfig
	Render     RenderConfig
	Retry      RetryConfig
	Poll       PollConfig
	Push       PushConfig
	Generation GenerationConfig
	Queue      QueueConfig
	Groq       GroqConfig
	R2         R2Config
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	GeneratePerHour int
	ScenesPerMin    int
	UploadPerHour   int
}

type RenderConfig struct {
	BaseURL   string
	WSBaseURL string
	APIKey    string
	Timeout   int // seconds
}

type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

type PushConfig struct {
	Transport     string // websocket | redis
	Heartbeat     time.Duration
	ChannelPrefix string
}

type GenerationConfig struct {
	Observer      string // poll | push
	MaxConcurrent int
}

type QueueConfig struct {
	Mode        string // inline | asynq
	Concurrency int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("RENDER_API_KEY")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.log_format", "LOG_FORMAT")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.scenes_per_min", "RATELIMIT_SCENES_PER_MIN")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("render.base_url", "RENDER_BASE_URL")
	_ = viper.BindEnv("render.ws_base_url", "RENDER_WS_BASE_URL")
	_ = viper.BindEnv("render.api_key", "RENDER_API_KEY")
	_ = viper.BindEnv("render.timeout", "RENDER_TIMEOUT")
	_ = viper.BindEnv("retry.max_attempts", "RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("retry.initial_delay", "RETRY_INITIAL_DELAY")
	_ = viper.BindEnv("retry.max_delay", "RETRY_MAX_DELAY")
	_ = viper.BindEnv("retry.backoff_multiplier", "RETRY_BACKOFF_MULTIPLIER")
	_ = viper.BindEnv("poll.interval", "POLL_INTERVAL")
	_ = viper.BindEnv("poll.max_attempts", "POLL_MAX_ATTEMPTS")
	_ = viper.BindEnv("push.transport", "PUSH_TRANSPORT")
	_ = viper.BindEnv("push.heartbeat", "PUSH_HEARTBEAT")
	_ = viper.BindEnv("push.channel_prefix", "PUSH_CHANNEL_PREFIX")
	_ = viper.BindEnv("generation.observer", "GENERATION_OBSERVER")
	_ = viper.BindEnv("generation.max_concurrent", "GENERATION_MAX_CONCURRENT")
	_ = viper.BindEnv("queue.mode", "QUEUE_MODE")
	_ = viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_format", "text")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("gateway.enabled", false)
	viper.SetDefault("ratelimit.generate_per_hour", 60)
	viper.SetDefault("ratelimit.scenes_per_min", 30)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Render backend defaults
	viper.SetDefault("render.base_url", "http://localhost:8001")
	viper.SetDefault("render.ws_base_url", "ws://localhost:8001")
	viper.SetDefault("render.timeout", 60)

	// Retry, poll and push defaults
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "10s")
	viper.SetDefault("retry.backoff_multiplier", 2.0)
	viper.SetDefault("poll.interval", "3s")
	viper.SetDefault("poll.max_attempts", 60)
	viper.SetDefault("push.transport", "websocket")
	viper.SetDefault("push.heartbeat", "30s")
	viper.SetDefault("push.channel_prefix", "job_progress:")

	viper.SetDefault("generation.observer", "poll")
	viper.SetDefault("generation.max_concurrent", 3)
	viper.SetDefault("queue.mode", "inline")
	viper.SetDefault("queue.concurrency", 10)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			LogFormat: viper.GetString("server.log_format"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
			ScenesPerMin:    viper.GetInt("ratelimit.scenes_per_min"),
			UploadPerHour:   viper.GetInt("ratelimit.upload_per_hour"),
		},
		Render: RenderConfig{
			BaseURL:   strings.TrimRight(viper.GetString("render.base_url"), "/"),
			WSBaseURL: strings.TrimRight(viper.GetString("render.ws_base_url"), "/"),
			APIKey:    viper.GetString("render.api_key"),
			Timeout:   viper.GetInt("render.timeout"),
		},
		Retry: RetryConfig{
			MaxAttempts:       viper.GetInt("retry.max_attempts"),
			InitialDelay:      viper.GetDuration("retry.initial_delay"),
			MaxDelay:          viper.GetDuration("retry.max_delay"),
			BackoffMultiplier: viper.GetFloat64("retry.backoff_multiplier"),
		},
		Poll: PollConfig{
			Interval:    viper.GetDuration("poll.interval"),
			MaxAttempts: viper.GetInt("poll.max_attempts"),
		},
		Push: PushConfig{
			Transport:     strings.ToLower(viper.GetString("push.transport")),
			Heartbeat:     viper.GetDuration("push.heartbeat"),
			ChannelPrefix: viper.GetString("push.channel_prefix"),
		},
		Generation: GenerationConfig{
			Observer:      strings.ToLower(viper.GetString("generation.observer")),
			MaxConcurrent: viper.GetInt("generation.max_concurrent"),
		},
		Queue: QueueConfig{
			Mode:        strings.ToLower(viper.GetString("queue.mode")),
			Concurrency: viper.GetInt("queue.concurrency"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}
