package config

import (
	"errors"
	"fmt"

	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/directory"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "lineage",
		StorageType:        "memory",
		FSBaseDir:          "./data/storage",
		S3:                 S3Config{Region: "us-east-1"},
		SnapshotPolicy:     string(lineage.SnapshotUnlessEmpty),
		MaxRetries:         lineage.DefaultMaxRetries,
		LogLevel:           "info",
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the lineage server and CLI
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseType string // "memory", "postgres", "sqlite"
	DatabaseURL  string // Postgres URL or SQLite file path
	DBSchema     string // Postgres schema to use (default: lineage)

	// Storage configuration for file content
	StorageType string // "memory", "fs", "s3"
	FSBaseDir   string
	S3          S3Config

	// Lineage behaviour
	SnapshotPolicy string
	MaxRetries     int

	// Logging
	LogLevel  string
	LogPretty bool

	// Directory seeds, "id=name,..." and "id=email,..."
	SeedProjects string
	SeedUsers    string

	CORSOrigins        []string
	EnableEventLogging bool
}

// S3Config holds the S3 blob store settings
type S3Config struct {
	Bucket                 string
	Region                 string
	Endpoint               string
	AccessKeyID            string
	SecretAccessKey        string
	UsePathStyle           bool
	KeyPrefix              string
	EnableSSE              bool
	SSEAlgorithm           string
	SSEKMSKeyID            string
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("database_type must be 'memory', 'postgres' or 'sqlite', got: %s", c.DatabaseType)
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs_base_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("storage_type must be 'memory', 'fs' or 's3', got: %s", c.StorageType)
	}

	switch lineage.SnapshotPolicy(c.SnapshotPolicy) {
	case lineage.SnapshotUnlessEmpty, lineage.SnapshotAlways:
	default:
		return fmt.Errorf("unknown snapshot policy: %s", c.SnapshotPolicy)
	}

	if c.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}

	if _, err := directory.ParseProjects(c.SeedProjects); err != nil {
		return fmt.Errorf("seed_projects: %w", err)
	}
	if _, err := directory.ParseUsers(c.SeedUsers); err != nil {
		return fmt.Errorf("seed_users: %w", err)
	}

	return nil
}
