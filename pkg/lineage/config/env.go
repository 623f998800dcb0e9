package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvPrefix is prepended to every environment variable read by WithEnv
const EnvPrefix = "LINEAGE_"

// envConfig mirrors ServerConfig for cleanenv. Fields carry no env-default
// tags; values not present in the environment keep whatever the previous
// options set.
type envConfig struct {
	Port        string `env:"LINEAGE_PORT" env-description:"HTTP listen port"`
	Environment string `env:"LINEAGE_ENVIRONMENT" env-description:"development, production or testing"`

	DatabaseType string `env:"LINEAGE_DATABASE_TYPE" env-description:"memory, postgres or sqlite"`
	DatabaseURL  string `env:"LINEAGE_DATABASE_URL" env-description:"Postgres URL or SQLite file path"`
	DBSchema     string `env:"LINEAGE_DB_SCHEMA" env-description:"Postgres schema"`

	StorageType string `env:"LINEAGE_STORAGE_TYPE" env-description:"memory, fs or s3"`
	FSBaseDir   string `env:"LINEAGE_FS_BASE_DIR" env-description:"base directory for fs storage"`

	S3Bucket                 string `env:"LINEAGE_S3_BUCKET" env-description:"S3 bucket"`
	S3Region                 string `env:"LINEAGE_S3_REGION" env-description:"S3 region"`
	S3Endpoint               string `env:"LINEAGE_S3_ENDPOINT" env-description:"custom endpoint for S3-compatible services"`
	S3AccessKeyID            string `env:"LINEAGE_S3_ACCESS_KEY_ID" env-description:"S3 access key id"`
	S3SecretAccessKey        string `env:"LINEAGE_S3_SECRET_ACCESS_KEY" env-description:"S3 secret access key"`
	S3UsePathStyle           bool   `env:"LINEAGE_S3_USE_PATH_STYLE" env-description:"use path-style addressing"`
	S3KeyPrefix              string `env:"LINEAGE_S3_KEY_PREFIX" env-description:"prefix for every object key"`
	S3EnableSSE              bool   `env:"LINEAGE_S3_ENABLE_SSE" env-description:"enable server-side encryption"`
	S3SSEAlgorithm           string `env:"LINEAGE_S3_SSE_ALGORITHM" env-description:"AES256 or aws:kms"`
	S3SSEKMSKeyID            string `env:"LINEAGE_S3_SSE_KMS_KEY_ID" env-description:"KMS key id for aws:kms"`
	S3CreateBucketIfNotExist bool   `env:"LINEAGE_S3_CREATE_BUCKET" env-description:"create the bucket on startup"`

	SnapshotPolicy string `env:"LINEAGE_SNAPSHOT_POLICY" env-description:"unless_empty or always"`
	MaxRetries     int    `env:"LINEAGE_MAX_RETRIES" env-description:"attempts for a conflicting version write"`

	LogLevel  string `env:"LINEAGE_LOG_LEVEL" env-description:"debug, info, warn or error"`
	LogPretty bool   `env:"LINEAGE_LOG_PRETTY" env-description:"human readable console logs"`

	SeedProjects string `env:"LINEAGE_SEED_PROJECTS" env-description:"projects for the memory directory, id=name,..."`
	SeedUsers    string `env:"LINEAGE_SEED_USERS" env-description:"users for the memory directory, id=email,..."`

	CORSOrigins        []string `env:"LINEAGE_CORS_ORIGINS" env-separator:"," env-description:"allowed CORS origins"`
	EnableEventLogging bool     `env:"LINEAGE_EVENT_LOGGING" env-description:"log lineage events"`
}

// WithEnv applies LINEAGE_* environment variable overrides.
//
// Unset variables leave the current value in place, so WithEnv composes with
// the other options in either order.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		e := toEnv(c)
		if err := cleanenv.ReadEnv(&e); err != nil {
			return fmt.Errorf("reading environment: %w", err)
		}
		fromEnv(c, &e)
		return nil
	}
}

// EnvUsage describes the environment variables understood by WithEnv
func EnvUsage() (string, error) {
	header := "Environment variables:"
	return cleanenv.GetDescription(&envConfig{}, &header)
}

func toEnv(c *ServerConfig) envConfig {
	return envConfig{
		Port:                     c.Port,
		Environment:              c.Environment,
		DatabaseType:             c.DatabaseType,
		DatabaseURL:              c.DatabaseURL,
		DBSchema:                 c.DBSchema,
		StorageType:              c.StorageType,
		FSBaseDir:                c.FSBaseDir,
		S3Bucket:                 c.S3.Bucket,
		S3Region:                 c.S3.Region,
		S3Endpoint:               c.S3.Endpoint,
		S3AccessKeyID:            c.S3.AccessKeyID,
		S3SecretAccessKey:        c.S3.SecretAccessKey,
		S3UsePathStyle:           c.S3.UsePathStyle,
		S3KeyPrefix:              c.S3.KeyPrefix,
		S3EnableSSE:              c.S3.EnableSSE,
		S3SSEAlgorithm:           c.S3.SSEAlgorithm,
		S3SSEKMSKeyID:            c.S3.SSEKMSKeyID,
		S3CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		SnapshotPolicy:           c.SnapshotPolicy,
		MaxRetries:               c.MaxRetries,
		LogLevel:                 c.LogLevel,
		LogPretty:                c.LogPretty,
		SeedProjects:             c.SeedProjects,
		SeedUsers:                c.SeedUsers,
		CORSOrigins:              c.CORSOrigins,
		EnableEventLogging:       c.EnableEventLogging,
	}
}

func fromEnv(c *ServerConfig, e *envConfig) {
	c.Port = e.Port
	c.Environment = e.Environment
	c.DatabaseType = e.DatabaseType
	c.DatabaseURL = e.DatabaseURL
	c.DBSchema = e.DBSchema
	c.StorageType = e.StorageType
	c.FSBaseDir = e.FSBaseDir
	c.S3 = S3Config{
		Bucket:                 e.S3Bucket,
		Region:                 e.S3Region,
		Endpoint:               e.S3Endpoint,
		AccessKeyID:            e.S3AccessKeyID,
		SecretAccessKey:        e.S3SecretAccessKey,
		UsePathStyle:           e.S3UsePathStyle,
		KeyPrefix:              e.S3KeyPrefix,
		EnableSSE:              e.S3EnableSSE,
		SSEAlgorithm:           e.S3SSEAlgorithm,
		SSEKMSKeyID:            e.S3SSEKMSKeyID,
		CreateBucketIfNotExist: e.S3CreateBucketIfNotExist,
	}
	c.SnapshotPolicy = e.SnapshotPolicy
	c.MaxRetries = e.MaxRetries
	c.LogLevel = e.LogLevel
	c.LogPretty = e.LogPretty
	c.SeedProjects = e.SeedProjects
	c.SeedUsers = e.SeedUsers
	c.CORSOrigins = e.CORSOrigins
	c.EnableEventLogging = e.EnableEventLogging
}
