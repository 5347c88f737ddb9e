package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDynamo = "dynamo"
	StoreSqlite = "sqlite"
)

type Config struct {
	IsLocal        bool          `yaml:"is_local"`
	Addr           string        `yaml:"addr"`
	Region         string        `yaml:"region"`
	Store          string        `yaml:"store"`
	DynamoEndpoint string        `yaml:"dynamo_endpoint"`
	PostTable      string        `yaml:"post_table"`
	UserTable      string        `yaml:"user_table"`
	SessionTable   string        `yaml:"session_table"`
	SqlitePath     string        `yaml:"sqlite_path"`
	BucketName     string        `yaml:"bucket_name"`
	ImageDir       string        `yaml:"image_dir"`
	EsUrl          string        `yaml:"es_url"`
	EsIndex        string        `yaml:"es_index"`
	FrontUrl       string        `yaml:"front_url"`
	PollInterval   time.Duration `yaml:"feed_poll_interval"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	AnonymousLikes bool          `yaml:"anonymous_likes"`
	ImageCacheSize int           `yaml:"image_cache_size"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		Region:         "ap-northeast-1",
		PostTable:      "petsgram-posts-prod",
		UserTable:      "petsgram-users-prod",
		SessionTable:   "petsgram-sessions-prod",
		SqlitePath:     "./db.sqlite",
		ImageDir:       "./images",
		EsIndex:        "posts",
		PollInterval:   5 * time.Second,
		SessionTTL:     24 * time.Hour,
		AnonymousLikes: true,
		ImageCacheSize: 256,
	}
}

// Load builds the configuration from defaults, then the optional YAML file,
// then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.overlay(os.LookupEnv); err != nil {
		return cfg, err
	}
	// unset store and front url follow IS_LOCAL
	if cfg.Store == "" {
		cfg.Store = StoreDynamo
		if cfg.IsLocal {
			cfg.Store = StoreSqlite
		}
	}
	if cfg.FrontUrl == "" {
		cfg.FrontUrl = "https://petsgram.site"
		if cfg.IsLocal {
			cfg.FrontUrl = "http://localhost:4200"
		}
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) overlay(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("ADDR", &cfg.Addr)
	str("AWS_REGION", &cfg.Region)
	str("STORE", &cfg.Store)
	str("DYNAMO_ENDPOINT", &cfg.DynamoEndpoint)
	str("POST_TABLE", &cfg.PostTable)
	str("USER_TABLE", &cfg.UserTable)
	str("SESSION_TABLE", &cfg.SessionTable)
	str("SQLITE_PATH", &cfg.SqlitePath)
	str("BUCKET_NAME", &cfg.BucketName)
	str("IMAGE_DIR", &cfg.ImageDir)
	str("ES_URL", &cfg.EsUrl)
	str("ES_INDEX", &cfg.EsIndex)
	str("FRONT_URL", &cfg.FrontUrl)
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Addr = ":" + v
	}
	if v, ok := lookup("IS_LOCAL"); ok {
		cfg.IsLocal = v == "TRUE" || v == "true" || v == "1"
	}
	if v, ok := lookup("ANONYMOUS_LIKES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ANONYMOUS_LIKES: %w", err)
		}
		cfg.AnonymousLikes = b
	}
	durations := map[string]*time.Duration{
		"FEED_POLL_INTERVAL": &cfg.PollInterval,
		"SESSION_TTL":        &cfg.SessionTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("IMAGE_CACHE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMAGE_CACHE_SIZE: %w", err)
		}
		cfg.ImageCacheSize = n
	}
	return nil
}

func (cfg Config) Validate() error {
	switch cfg.Store {
	case StoreDynamo:
		if cfg.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME is required with the %s store", StoreDynamo)
		}
	case StoreSqlite:
		if cfg.SqlitePath == "" || cfg.ImageDir == "" {
			return fmt.Errorf("SQLITE_PATH and IMAGE_DIR are required with the %s store", StoreSqlite)
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("feed poll interval must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if cfg.ImageCacheSize <= 0 {
		return fmt.Errorf("image cache size must be positive")
	}
	return nil
}

// SearchEnabled reports whether an Elasticsearch endpoint is configured.
func (cfg Config) SearchEnabled() bool {
	return cfg.EsUrl != ""
}
