package config

import (
	"os"
	"strings"

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
	Storage    StorageConfig
	Redis      RedisConfig
	Worker     WorkerConfig
	Retention  RetentionConfig
	RateLimit  RateLimitConfig
	HTTPClient HTTPClientConfig
	QuickReel  QuickReelConfig
	AssemblyAI AssemblyAIConfig
	OpenAI     OpenAIConfig
	RunwayML   RunwayMLConfig
	Groq       GroqConfig
	R2         R2Config
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	PublicURL   string // externally reachable base URL, used for upload and webhook links
	BodyLimitMB int
}

type StorageConfig struct {
	Backend  string // "json" or "redis"
	DataDir  string
	MediaDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type WorkerConfig struct {
	Dispatcher  string // "goroutine" or "asynq"
	PoolSize    int
	ReelDelayMs int
	CallTimeout int // seconds
}

type RetentionConfig struct {
	MaxAgeDays int
	Schedule   string // cron expression
}

type RateLimitConfig struct {
	UploadPerHour   int
	GeneratePerHour int
	ContentPerHour  int
}

type HTTPClientConfig struct {
	Timeout        int // seconds
	RetryAttempts  int
	RetryBackoffMs int
}

type QuickReelConfig struct {
	APIKey      string
	BaseURL     string
	StubDelayMs int
}

type AssemblyAIConfig struct {
	APIKey         string
	BaseURL        string
	PollIntervalMs int
	MaxWait        int // seconds
	StubDelayMs    int
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	ImageModel  string
	StubDelayMs int
}

type RunwayMLConfig struct {
	APIKey  string
	BaseURL string
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
	readSecret("QUICKREEL_API_KEY")
	readSecret("ASSEMBLYAI_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("RUNWAYML_API_KEY")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.public_url", "PUBLIC_URL")
	_ = viper.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = viper.BindEnv("storage.data_dir", "DATA_DIR")
	_ = viper.BindEnv("storage.media_dir", "MEDIA_DIR")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("worker.dispatcher", "WORKER_DISPATCHER")
	_ = viper.BindEnv("worker.pool_size", "THREAD_POOL_SIZE")
	_ = viper.BindEnv("worker.reel_delay_ms", "REEL_DELAY_MS")
	_ = viper.BindEnv("worker.call_timeout", "CALL_TIMEOUT")
	_ = viper.BindEnv("retention.max_age_days", "RETENTION_DAYS")
	_ = viper.BindEnv("retention.schedule", "RETENTION_SCHEDULE")
	_ = viper.BindEnv("http.timeout", "HTTP_TIMEOUT")
	_ = viper.BindEnv("http.retry_attempts", "HTTP_RETRY_ATTEMPTS")
	_ = viper.BindEnv("http.retry_backoff_ms", "HTTP_RETRY_BACKOFF_MS")
	_ = viper.BindEnv("quickreel.api_key", "QUICKREEL_API_KEY")
	_ = viper.BindEnv("quickreel.base_url", "QUICKREEL_API_URL")
	_ = viper.BindEnv("quickreel.stub_delay_ms", "QUICKREEL_STUB_DELAY_MS")
	_ = viper.BindEnv("assemblyai.api_key", "ASSEMBLYAI_API_KEY")
	_ = viper.BindEnv("assemblyai.base_url", "ASSEMBLYAI_API_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_API_URL")
	_ = viper.BindEnv("runwayml.api_key", "RUNWAYML_API_KEY")
	_ = viper.BindEnv("runwayml.base_url", "RUNWAYML_API_URL")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.public_url", "http://localhost:5000")
	viper.SetDefault("server.body_limit_mb", 500)
	viper.SetDefault("storage.backend", "json")
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.media_dir", "media")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("worker.dispatcher", "goroutine")
	viper.SetDefault("worker.pool_size", 4)
	viper.SetDefault("worker.reel_delay_ms", 2000)
	viper.SetDefault("worker.call_timeout", 120)
	viper.SetDefault("retention.max_age_days", 7)
	viper.SetDefault("retention.schedule", "@daily")
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.generate_per_hour", 20)
	viper.SetDefault("ratelimit.content_per_hour", 30)
	viper.SetDefault("http.timeout", 60)
	viper.SetDefault("http.retry_attempts", 3)
	viper.SetDefault("http.retry_backoff_ms", 500)

	// QuickReel defaults
	viper.SetDefault("quickreel.base_url", "https://mango.quickreel.io/api/v2")
	viper.SetDefault("quickreel.stub_delay_ms", 1000)

	// AssemblyAI defaults
	viper.SetDefault("assemblyai.base_url", "https://api.assemblyai.com/v2")
	viper.SetDefault("assemblyai.poll_interval_ms", 3000)
	viper.SetDefault("assemblyai.max_wait", 1800)
	viper.SetDefault("assemblyai.stub_delay_ms", 2000)

	// OpenAI defaults
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.chat_model", "gpt-4")
	viper.SetDefault("openai.image_model", "dall-e-3")
	viper.SetDefault("openai.stub_delay_ms", 2000)

	// RunwayML defaults
	viper.SetDefault("runwayml.base_url", "https://api.runwayml.com/v1")

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			LogLevel:    viper.GetString("server.log_level"),
			PublicURL:   strings.TrimRight(viper.GetString("server.public_url"), "/"),
			BodyLimitMB: viper.GetInt("server.body_limit_mb"),
		},
		Storage: StorageConfig{
			Backend:  viper.GetString("storage.backend"),
			DataDir:  viper.GetString("storage.data_dir"),
			MediaDir: viper.GetString("storage.media_dir"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Worker: WorkerConfig{
			Dispatcher:  viper.GetString("worker.dispatcher"),
			PoolSize:    viper.GetInt("worker.pool_size"),
			ReelDelayMs: viper.GetInt("worker.reel_delay_ms"),
			CallTimeout: viper.GetInt("worker.call_timeout"),
		},
		Retention: RetentionConfig{
			MaxAgeDays: viper.GetInt("retention.max_age_days"),
			Schedule:   viper.GetString("retention.schedule"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour:   viper.GetInt("ratelimit.upload_per_hour"),
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
			ContentPerHour:  viper.GetInt("ratelimit.content_per_hour"),
		},
		HTTPClient: HTTPClientConfig{
			Timeout:        viper.GetInt("http.timeout"),
			RetryAttempts:  viper.GetInt("http.retry_attempts"),
			RetryBackoffMs: viper.GetInt("http.retry_backoff_ms"),
		},
		QuickReel: QuickReelConfig{
			APIKey:      viper.GetString("quickreel.api_key"),
			BaseURL:     viper.GetString("quickreel.base_url"),
			StubDelayMs: viper.GetInt("quickreel.stub_delay_ms"),
		},
		AssemblyAI: AssemblyAIConfig{
			APIKey:         viper.GetString("assemblyai.api_key"),
			BaseURL:        viper.GetString("assemblyai.base_url"),
			PollIntervalMs: viper.GetInt("assemblyai.poll_interval_ms"),
			MaxWait:        viper.GetInt("assemblyai.max_wait"),
			StubDelayMs:    viper.GetInt("assemblyai.stub_delay_ms"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      viper.GetString("openai.api_key"),
			BaseURL:     viper.GetString("openai.base_url"),
			ChatModel:   viper.GetString("openai.chat_model"),
			ImageModel:  viper.GetString("openai.image_model"),
			StubDelayMs: viper.GetInt("openai.stub_delay_ms"),
		},
		RunwayML: RunwayMLConfig{
			APIKey:  viper.GetString("runwayml.api_key"),
			BaseURL: viper.GetString("runwayml.base_url"),
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
