package config

import (
	"fmt"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend. For sqlite the url is a file path.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
		case "postgres", "sqlite":
			if url == "" {
				return fmt.Errorf("database URL is required for %s", dbType)
			}
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMemoryStorage keeps file content in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores file content below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores file content in an S3 bucket
func WithS3Storage(s3cfg S3Config) Option {
	return func(c *ServerConfig) error {
		if s3cfg.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if s3cfg.Region == "" {
			s3cfg.Region = "us-east-1"
		}
		c.StorageType = "s3"
		c.S3 = s3cfg
		return nil
	}
}

// WithSnapshotPolicy selects when updates append a version
func WithSnapshotPolicy(policy lineage.SnapshotPolicy) Option {
	return func(c *ServerConfig) error {
		c.SnapshotPolicy = string(policy)
		return nil
	}
}

// WithMaxRetries sets how many attempts a conflicting write gets
func WithMaxRetries(n int) Option {
	return func(c *ServerConfig) error {
		if n < 1 {
			return fmt.Errorf("max retries must be at least 1, got: %d", n)
		}
		c.MaxRetries = n
		return nil
	}
}

// WithLogLevel sets the log level and output format
func WithLogLevel(level string, pretty bool) Option {
	return func(c *ServerConfig) error {
		c.LogLevel = level
		c.LogPretty = pretty
		return nil
	}
}

// WithSeeds registers projects and users for the in-memory directory
func WithSeeds(projects, users string) Option {
	return func(c *ServerConfig) error {
		c.SeedProjects = projects
		c.SeedUsers = users
		return nil
	}
}

// WithEventLogging enables or disables the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
