package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/rs/zerolog"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrator applies migrations to one database engine.
type migrator interface {
	ensureSchemaMigrationsTable(ctx context.Context) error
	getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
	// apply runs the migration and records it in schema_migrations.
	apply(ctx context.Context, migration Migration, appliedBy string) error
	close() error
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	cfg := config.FromEnv()
	driver := flag.String("driver", config.BackendBigQuery, "Database engine: bigquery or postgres")
	flag.StringVar(&cfg.GCPProject, "project", cfg.GCPProject, "GCP project ID (bigquery, or set GCP_PROJECT env)")
	flag.StringVar(&cfg.BQDataset, "dataset", cfg.BQDataset, "BigQuery dataset ID (or set BQ_DATASET env)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string (or set DATABASE_URL env)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Path to migrations directory (default migrations/<driver>)")
	flag.Parse()

	log := logger.New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *migrationsDir == "" {
		*migrationsDir = filepath.Join("migrations", *driver)
	}

	var (
		m            migrator
		replacements map[string]string
		err          error
	)
	switch *driver {
	case config.BackendBigQuery:
		if cfg.GCPProject == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		m, err = newBigQueryMigrator(ctx, cfg.GCPProject, cfg.BQDataset)
		replacements = map[string]string{
			"{{PROJECT_ID}}": cfg.GCPProject,
			"{{DATASET_ID}}": cfg.BQDataset,
		}
		log.Info().Str("project", cfg.GCPProject).Str("dataset", cfg.BQDataset).Msg("Connecting to BigQuery")
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			log.Fatal().Msg("Error: -database-url flag (or DATABASE_URL) is required.")
		}
		m, err = newPostgresMigrator(ctx, cfg.DatabaseURL)
		log.Info().Msg("Connecting to PostgreSQL")
	default:
		log.Fatal().Str("driver", *driver).Msg("Error: unknown driver")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer m.close()

	applied, err := run(ctx, log, m, *migrationsDir, replacements, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}

// run applies every pending migration in dir and returns how many it applied.
func run(ctx context.Context, log zerolog.Logger, m migrator, dir string, replacements map[string]string, appliedBy string) (int, error) {
	// Ensure schema_migrations table exists
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := readMigrations(log, dir, replacements)
	if err != nil {
		return 0, fmt.Errorf("reading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	appliedMigrations, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	pending, changed := pendingMigrations(migrations, appliedMigrations)
	for _, c := range changed {
		log.Warn().Str("migration", c.Filename).Msg("Applied migration file changed since it was applied")
	}

	for _, migration := range pending {
		log.Info().Str("migration", migration.Filename).Msg("[RUN]")

		if err := m.apply(ctx, migration, appliedBy); err != nil {
			return 0, fmt.Errorf("applying %s: %w", migration.Filename, err)
		}

		log.Info().Str("migration", migration.Filename).Msg("[OK]")
	}

	return len(pending), nil
}

// readMigrations reads all migration files from dir, substituting
// replacements in their SQL. Files not named NNNN_name.sql are skipped.
func readMigrations(log zerolog.Logger, dir string, replacements map[string]string) ([]Migration, error) {
	// Check if directory exists relative to current directory
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from parent directory (in case we're in cmd/migrate)
		alt := filepath.Join("..", "..", dir)
		if _, err := os.Stat(alt); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
		dir = alt
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		for placeholder, value := range replacements {
			sql = strings.ReplaceAll(sql, placeholder, value)
		}

		// Checksum covers the file before placeholder substitution so the same
		// migration matches across projects and datasets.
		checksum := fmt.Sprintf("%x", sha256.Sum256(content))

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum,
		})
	}

	// Sort by version
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// pendingMigrations returns the migrations not yet applied, in version order,
// and the applied ones whose checksum no longer matches the file.
func pendingMigrations(all []Migration, applied []AppliedMigration) (pending, changed []Migration) {
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	for _, m := range all {
		am, ok := appliedByVersion[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			changed = append(changed, m)
		}
	}
	return pending, changed
}
