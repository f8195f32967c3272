package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type S3Config struct {
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	CloudFrontDomain string
}

type BlobConfig struct {
	Driver        string
	LocalRoot     string
	PublicBaseURL string
	S3            S3Config
}

type SOPConfig struct {
	OverrideRoles        []string
	MinOverrideReasonLen int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Blob        BlobConfig
	SOP         SOPConfig
}

const (
	BlobDriverLocal = "local"
	BlobDriverS3    = "s3"
)

// Причину обхода короче 10 символов не принимаем ни при какой настройке
const MinOverrideReasonFloor = 10

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("BLOB_DRIVER", BlobDriverLocal)
	v.SetDefault("BLOB_LOCAL_ROOT", "./data/blobs")
	v.SetDefault("SOP_OVERRIDE_ROLES", "supervisor,manager,admin")
	v.SetDefault("SOP_MIN_OVERRIDE_REASON", MinOverrideReasonFloor)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Blob: BlobConfig{
			Driver:        strings.ToLower(strings.TrimSpace(v.GetString("BLOB_DRIVER"))),
			LocalRoot:     v.GetString("BLOB_LOCAL_ROOT"),
			PublicBaseURL: v.GetString("BLOB_PUBLIC_BASE_URL"),
			S3: S3Config{
				Bucket:           v.GetString("S3_BUCKET"),
				Region:           v.GetString("S3_REGION"),
				AccessKeyID:      v.GetString("S3_ACCESS_KEY_ID"),
				SecretAccessKey:  v.GetString("S3_SECRET_ACCESS_KEY"),
				CloudFrontDomain: v.GetString("S3_CLOUDFRONT_DOMAIN"),
			},
		},
		SOP: SOPConfig{
			OverrideRoles:        splitCSV(v.GetString("SOP_OVERRIDE_ROLES")),
			MinOverrideReasonLen: v.GetInt("SOP_MIN_OVERRIDE_REASON"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.Blob.Driver {
	case BlobDriverLocal:
		if cfg.Blob.LocalRoot == "" {
			return fmt.Errorf("BLOB_LOCAL_ROOT is required for local blob driver")
		}
	case BlobDriverS3:
		if cfg.Blob.S3.Bucket == "" || cfg.Blob.S3.Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required for s3 blob driver")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", cfg.Blob.Driver)
	}
	if cfg.SOP.MinOverrideReasonLen < MinOverrideReasonFloor {
		return fmt.Errorf("SOP_MIN_OVERRIDE_REASON must be at least %d", MinOverrideReasonFloor)
	}
	return nil
}

func splitCSV(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
