package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Env                 string `mapstructure:"env"`
	Port                int    `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	CORSOrigin          string `mapstructure:"cors_origin"`
	PublicBaseURL       string `mapstructure:"public_base_url"`
}

type JWTCfg struct {
	Secret     string `mapstructure:"secret"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type WSCfg struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBufferSize       int   `mapstructure:"send_buffer_size"`
}

type EmailCfg struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type StorageCfg struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
}

type SecurityCfg struct {
	ResetTokenTTLMinutes int `mapstructure:"reset_token_ttl_minutes"`
	PasswordHashCost     int `mapstructure:"password_hash_cost"`
	LoginRateLimit       int `mapstructure:"login_rate_limit"`
	LoginRateWindowSecs  int `mapstructure:"login_rate_window_seconds"`
}

type Config struct {
	App      AppCfg      `mapstructure:"app"`
	JWT      JWTCfg      `mapstructure:"jwt"`
	Mongo    MongoCfg    `mapstructure:"mongo"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Kafka    KafkaCfg    `mapstructure:"kafka"`
	WS       WSCfg       `mapstructure:"ws"`
	Email    EmailCfg    `mapstructure:"email"`
	Storage  StorageCfg  `mapstructure:"storage"`
	Security SecurityCfg `mapstructure:"security"`

	// Derived
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	JWTTTL          time.Duration
	ResetTokenTTL   time.Duration
	LoginRateWindow time.Duration
}

// Load reads config.yaml and lets APP_* environment variables override it.
// A .env file is honored when present so local runs match the deployment shape.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}
	if cfg.Mongo.URI == "" {
		return nil, errors.New("mongo.uri is required")
	}

	cfg.ReadTimeout = time.Duration(cfg.App.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.App.WriteTimeoutSeconds) * time.Second
	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.WS.WriteDeadlineSeconds) * time.Second
	cfg.JWTTTL = time.Duration(cfg.JWT.TTLMinutes) * time.Minute
	cfg.ResetTokenTTL = time.Duration(cfg.Security.ResetTokenTTLMinutes) * time.Minute
	cfg.LoginRateWindow = time.Duration(cfg.Security.LoginRateWindowSecs) * time.Second
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.ReadTimeoutSeconds == 0 {
		cfg.App.ReadTimeoutSeconds = 15
	}
	if cfg.App.WriteTimeoutSeconds == 0 {
		cfg.App.WriteTimeoutSeconds = 15
	}
	if cfg.JWT.TTLMinutes == 0 {
		cfg.JWT.TTLMinutes = 24 * 60
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "pairchat"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "pairchat"
	}
	if cfg.WS.PingIntervalSeconds == 0 {
		cfg.WS.PingIntervalSeconds = 25
	}
	if cfg.WS.WriteDeadlineSeconds == 0 {
		cfg.WS.WriteDeadlineSeconds = 10
	}
	if cfg.WS.MaxMessageSizeBytes == 0 {
		cfg.WS.MaxMessageSizeBytes = 64 * 1024
	}
	if cfg.WS.SendBufferSize == 0 {
		cfg.WS.SendBufferSize = 256
	}
	if cfg.Security.ResetTokenTTLMinutes == 0 {
		cfg.Security.ResetTokenTTLMinutes = 15
	}
	if cfg.Security.PasswordHashCost == 0 {
		cfg.Security.PasswordHashCost = 10
	}
	if cfg.Security.LoginRateLimit == 0 {
		cfg.Security.LoginRateLimit = 10
	}
	if cfg.Security.LoginRateWindowSecs == 0 {
		cfg.Security.LoginRateWindowSecs = 60
	}
	if cfg.Kafka.TopicMessageSent == "" {
		cfg.Kafka.TopicMessageSent = "pairchat.message.sent"
	}
}
