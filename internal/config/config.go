package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/config"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store/blob"
)

// Env prefixes.
const (
	ServicePrefix = "PETS"
	ClientPrefix  = "PETCTL"
)

// ServiceConfig holds all configuration for the pet-manager server.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    config.DatabaseConfig
	JWTConfig   config.JWTConfig
	KafkaConfig config.KafkaConfig
	SignInRate  rate.Limit
	SignInBurst int
}

// Load reads the server configuration from PETS_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load(ServicePrefix)
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "pet_manager")
	v.SetDefault("AUTH_SIGNIN_RATE", 5.0)
	v.SetDefault("AUTH_SIGNIN_BURST", 5)

	cfg := &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		// AUTH_SIGNIN_RATE is attempts per minute.
		SignInRate:  rate.Limit(v.GetFloat64("AUTH_SIGNIN_RATE") / 60),
		SignInBurst: v.GetInt("AUTH_SIGNIN_BURST"),
	}
	if cfg.AppEnv == "production" && cfg.JWTConfig.Secret == "change-me-in-production" {
		return nil, errors.New("PETS_JWT_SECRET must be set in production")
	}
	return cfg, nil
}

// ClientConfig holds petctl settings.
type ClientConfig struct {
	ServerURL      string
	DataDir        string
	Local          bool
	BlobQuotaBytes int64
	Timeout        time.Duration
	Verbose        bool
}

// NewClientViper returns a viper bound to PETCTL_* with client defaults.
func NewClientViper() (*viper.Viper, error) {
	v, err := config.Load(ClientPrefix)
	if err != nil {
		return nil, err
	}
	v.SetDefault("SERVER_URL", "http://localhost:8080")
	v.SetDefault("DATA_DIR", defaultDataDir())
	v.SetDefault("LOCAL", false)
	v.SetDefault("BLOB_QUOTA_BYTES", blob.DefaultQuota)
	v.SetDefault("TIMEOUT", "10s")
	v.SetDefault("VERBOSE", false)
	return v, nil
}

// LoadClient resolves the client settings. Values from $DATA_DIR/config.toml
// apply below flags and environment variables.
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	dataDir := v.GetString("DATA_DIR")
	v.SetConfigFile(filepath.Join(dataDir, "config.toml"))
	if err := v.ReadInConfig(); err != nil && !isMissing(err) {
		return nil, fmt.Errorf("read client config: %w", err)
	}

	return &ClientConfig{
		ServerURL:      v.GetString("SERVER_URL"),
		DataDir:        dataDir,
		Local:          v.GetBool("LOCAL"),
		BlobQuotaBytes: v.GetInt64("BLOB_QUOTA_BYTES"),
		Timeout:        v.GetDuration("TIMEOUT"),
		Verbose:        v.GetBool("VERBOSE"),
	}, nil
}

// DatabasePath is the embedded database file inside the data directory.
func (c *ClientConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "petctl.db")
}

func isMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "petctl")
	}
	return ".petctl"
}
