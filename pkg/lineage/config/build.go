package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/directory"
	"github.com/tendant/content-lineage/pkg/lineage/objectkey"
	"github.com/tendant/content-lineage/pkg/lineage/repo/memory"
	repopg "github.com/tendant/content-lineage/pkg/lineage/repo/postgres"
	reposqlite "github.com/tendant/content-lineage/pkg/lineage/repo/sqlite"
	fsstorage "github.com/tendant/content-lineage/pkg/lineage/storage/fs"
	memorystorage "github.com/tendant/content-lineage/pkg/lineage/storage/memory"
	s3storage "github.com/tendant/content-lineage/pkg/lineage/storage/s3"
)

// Directory resolves both projects and users
type Directory interface {
	lineage.ProjectLookup
	lineage.UserLookup
}

// Services is the wired pair of lineage services sharing one repository
type Services struct {
	Files      lineage.Service
	Documents  lineage.Service
	Repository lineage.Repository
	Directory  Directory // nil when project and author checks are disabled

	closers []func()
}

// Close releases database handles
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// BuildServices creates the file and document services described by the configuration.
// Both services share the repository, metrics and the per-item locker.
func (c *ServerConfig) BuildServices(ctx context.Context, log zerolog.Logger, reg prometheus.Registerer) (*Services, error) {
	svcs := &Services{}

	repo, dir, err := c.buildRepository(ctx, log, svcs)
	if err != nil {
		svcs.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	svcs.Repository = repo
	svcs.Directory = dir

	store, err := c.buildBlobStore(ctx)
	if err != nil {
		svcs.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}

	common := []lineage.Option{
		lineage.WithRepository(repo),
		lineage.WithLogger(log),
		lineage.WithMetrics(lineage.NewMetrics(reg)),
		lineage.WithLocker(lineage.NewKeyedLocker()),
		lineage.WithSnapshotPolicy(lineage.SnapshotPolicy(c.SnapshotPolicy)),
		lineage.WithMaxRetries(c.MaxRetries),
	}
	if dir != nil {
		common = append(common, lineage.WithProjects(dir), lineage.WithUsers(dir))
	}
	if c.EnableEventLogging {
		common = append(common, lineage.WithEventSink(lineage.NewLogEventSink(log)))
	}

	blobs := lineage.NewBlobBackend(c.StorageType, store, lineage.WithKeyGenerator(objectkey.NewRecommendedGenerator()))
	svcs.Files, err = lineage.New(append(common, lineage.WithBackend(blobs))...)
	if err != nil {
		svcs.Close()
		return nil, err
	}
	svcs.Documents, err = lineage.New(append(common, lineage.WithBackend(lineage.NewInlineBackend()))...)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	return svcs, nil
}

// buildRepository creates a Repository and, where the database provides one, a Directory
func (c *ServerConfig) buildRepository(ctx context.Context, log zerolog.Logger, svcs *Services) (lineage.Repository, Directory, error) {
	switch c.DatabaseType {
	case "memory":
		dir, err := c.memoryDirectory()
		if err != nil {
			return nil, nil, err
		}
		return memory.New(), dir, nil

	case "sqlite":
		db, err := reposqlite.Open(c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		svcs.closers = append(svcs.closers, func() { db.Close() })
		if err := reposqlite.Migrate(db); err != nil {
			return nil, nil, err
		}
		dir := reposqlite.NewDirectory(db)
		if err := c.seedSQLite(ctx, dir); err != nil {
			return nil, nil, err
		}
		return reposqlite.New(db), dir, nil

	case "postgres":
		pool, err := c.newPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		svcs.closers = append(svcs.closers, pool.Close)
		if err := repopg.Migrate(ctx, pool); err != nil {
			return nil, nil, err
		}
		if c.SeedProjects != "" || c.SeedUsers != "" {
			log.Warn().Msg("seed projects and users are ignored for postgres; the host database owns them")
		}
		return repopg.NewWithPool(pool), repopg.NewDirectory(pool), nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// memoryDirectory returns nil when nothing is seeded, which disables project and author checks
func (c *ServerConfig) memoryDirectory() (Directory, error) {
	if c.SeedProjects == "" && c.SeedUsers == "" {
		return nil, nil
	}
	projects, err := directory.ParseProjects(c.SeedProjects)
	if err != nil {
		return nil, err
	}
	users, err := directory.ParseUsers(c.SeedUsers)
	if err != nil {
		return nil, err
	}
	dir := directory.New()
	for _, p := range projects {
		dir.AddProject(p)
	}
	for _, u := range users {
		dir.AddUser(u)
	}
	return dir, nil
}

func (c *ServerConfig) seedSQLite(ctx context.Context, dir *reposqlite.Directory) error {
	projects, err := directory.ParseProjects(c.SeedProjects)
	if err != nil {
		return err
	}
	users, err := directory.ParseUsers(c.SeedUsers)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if err := dir.UpsertProject(ctx, p); err != nil {
			return err
		}
	}
	for _, u := range users {
		if err := dir.UpsertUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (c *ServerConfig) newPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		ident := pgx.Identifier{schema}.Sanitize()
		if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
			return err
		}
		_, err := conn.Exec(ctx, "SET search_path TO "+ident)
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildBlobStore creates the BlobStore holding file content
func (c *ServerConfig) buildBlobStore(ctx context.Context) (lineage.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})

	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			KeyPrefix:              c.S3.KeyPrefix,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}
