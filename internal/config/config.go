// Package config reads service settings from the environment. Every setting
// can be overridden by a command-line flag of the same meaning.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds settings shared by the commands.
type Config struct {
	StoreBackend    string
	GCPProject      string
	BQDataset       string
	DatabaseURL     string
	ReportBucket    string
	NotionToken     string
	NotionBillsDBID string
	GenAIModel      string
	LogLevel        string
	Port            string
}

// FromEnv reads the configuration from environment variables, applying
// defaults for unset values.
func FromEnv() Config {
	return Config{
		StoreBackend:    getenv("STORE_BACKEND", BackendMemory),
		GCPProject:      os.Getenv("GCP_PROJECT"),
		BQDataset:       getenv("BQ_DATASET", "card_ledger"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ReportBucket:    os.Getenv("REPORT_BUCKET"),
		NotionToken:     os.Getenv("NOTION_TOKEN"),
		NotionBillsDBID: os.Getenv("NOTION_BILLS_DB_ID"),
		GenAIModel:      getenv("GENAI_MODEL", "gemini-2.5-flash"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Port:            getenv("PORT", "8080"),
	}
}

// RegisterStoreFlags binds the storage settings to fs, using the current
// values as defaults.
func (c *Config) RegisterStoreFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "Store backend: memory, bigquery or postgres (or set STORE_BACKEND env)")
	fs.StringVar(&c.GCPProject, "project", c.GCPProject, "GCP project ID (or set GCP_PROJECT env)")
	fs.StringVar(&c.BQDataset, "dataset", c.BQDataset, "BigQuery dataset ID (or set BQ_DATASET env)")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "PostgreSQL connection string (or set DATABASE_URL env)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error (or set LOG_LEVEL env)")
}

// RegisterServiceFlags binds the remaining integration settings to fs.
func (c *Config) RegisterServiceFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ReportBucket, "report-bucket", c.ReportBucket, "GCS bucket for repair reports (or set REPORT_BUCKET env)")
	fs.StringVar(&c.NotionToken, "notion-token", c.NotionToken, "Notion integration token (or set NOTION_TOKEN env)")
	fs.StringVar(&c.NotionBillsDBID, "notion-db", c.NotionBillsDBID, "Notion bills database ID (or set NOTION_BILLS_DB_ID env)")
	fs.StringVar(&c.GenAIModel, "model", c.GenAIModel, "GenAI model used for SMS extraction (or set GENAI_MODEL env)")
	fs.StringVar(&c.Port, "port", c.Port, "HTTP server port (or set PORT env)")
}

// ValidateStore checks the settings the selected backend needs.
func (c Config) ValidateStore() error {
	switch strings.ToLower(c.StoreBackend) {
	case BackendMemory:
		return nil
	case BackendBigQuery:
		if c.GCPProject == "" {
			return fmt.Errorf("%w: GCP_PROJECT is required for the bigquery backend", ErrInvalidConfig)
		}
		if c.BQDataset == "" {
			return fmt.Errorf("%w: BQ_DATASET is required for the bigquery backend", ErrInvalidConfig)
		}
		return nil
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres backend", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.StoreBackend)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
