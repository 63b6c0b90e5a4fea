package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/bulletin/pkg/adapter"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	store       string
	sqlitePath  string
	databaseURL string
	supabaseURL string
	supabaseKey string
	project     string
	database    string

	// Generator
	geminiProject  string
	geminiLocation string
	geminiAPIKey   string
	geminiModel    string
	withoutLLM     bool
	plannerConfig  string

	// Spreadsheet sync
	sheetID        string
	serviceAccount string

	timezone  string
	logLevel  string
	logFormat string
}

// globalFlags returns flags for the update store and common settings
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Update store: memory, sqlite, postgres, supabase or firestore",
			Value:       "sqlite",
			Sources:     cli.EnvVars("BULLETIN_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file",
			Value:       "bulletin.db",
			Sources:     cli.EnvVars("BULLETIN_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "database-url",
			Usage:       "PostgreSQL connection string",
			Sources:     cli.EnvVars("DATABASE_URL"),
			Destination: &cfg.databaseURL,
		},
		&cli.StringFlag{
			Name:        "supabase-url",
			Usage:       "Supabase project URL",
			Sources:     cli.EnvVars("SUPABASE_URL"),
			Destination: &cfg.supabaseURL,
		},
		&cli.StringFlag{
			Name:        "supabase-key",
			Usage:       "Supabase service role key (falls back to the anon key)",
			Sources:     cli.EnvVars("SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_ANON_KEY"),
			Destination: &cfg.supabaseKey,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "Time zone that relative dates like 'today' refer to",
			Value:       "UTC",
			Sources:     cli.EnvVars("BULLETIN_TIMEZONE"),
			Destination: &cfg.timezone,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level: debug, info, warn or error",
			Value:       "info",
			Sources:     cli.EnvVars("BULLETIN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format: console or json",
			Value:       "console",
			Sources:     cli.EnvVars("BULLETIN_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for answer generation
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key, used instead of Vertex AI when set",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.BoolFlag{
			Name:        "without-llm",
			Usage:       "Answer with the list of matching updates instead of generated text",
			Sources:     cli.EnvVars("BULLETIN_WITHOUT_LLM"),
			Destination: &cfg.withoutLLM,
		},
		&cli.StringFlag{
			Name:        "planner-config",
			Usage:       "YAML file selecting retrieval tiers and limits",
			Sources:     cli.EnvVars("BULLETIN_PLANNER_CONFIG"),
			Destination: &cfg.plannerConfig,
		},
	}
}

// sheetFlags returns flags for the spreadsheet copy of new updates
func sheetFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sheet-id",
			Usage:       "Google Sheets spreadsheet ID that new updates are appended to",
			Sources:     cli.EnvVars("GOOGLE_SHEET_ID"),
			Destination: &cfg.sheetID,
		},
		&cli.StringFlag{
			Name:        "service-account",
			Usage:       "Service account key for Sheets, as JSON or a file path",
			Sources:     cli.EnvVars("GOOGLE_SERVICE_ACCOUNT"),
			Destination: &cfg.serviceAccount,
		},
	}
}

// configureLogger installs the default logger and returns ctx carrying it
func (cfg *config) configureLogger(ctx context.Context, w io.Writer) (context.Context, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return ctx, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}

	logger := logging.New(w, logging.WithLevel(level), logging.WithFormat(format))
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) location() (*time.Location, error) {
	if cfg.timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid timezone", goerr.V("timezone", cfg.timezone))
	}
	return loc, nil
}

// closer releases a repository client; it is a no-op for stores without one
type closer func()

// newRepository creates the configured update store
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, closer, error) {
	nop := func() {}

	switch cfg.store {
	case "memory":
		return repository.NewMemory(), nop, nil

	case "sqlite":
		repo, err := repository.NewSQLite(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to open sqlite store")
		}
		return repo, func() { _ = repo.Close() }, nil

	case "postgres":
		if cfg.databaseURL == "" {
			return nil, nop, goerr.Wrap(ask.ErrNotConfigured, "database-url is required for postgres store")
		}
		repo, err := repository.NewPostgres(ctx, cfg.databaseURL)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to open postgres store")
		}
		return repo, func() { _ = repo.Close() }, nil

	case "supabase":
		if cfg.supabaseURL == "" || cfg.supabaseKey == "" {
			return nil, nop, goerr.Wrap(ask.ErrNotConfigured, "supabase-url and supabase-key are required for supabase store")
		}
		repo, err := repository.NewSupabase(cfg.supabaseURL, cfg.supabaseKey)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create supabase store")
		}
		return repo, nop, nil

	case "firestore":
		if cfg.project == "" {
			return nil, nop, goerr.Wrap(ask.ErrNotConfigured, "project is required for firestore store")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create firestore store")
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	return nil, nop, goerr.New("unknown store", goerr.V("store", cfg.store))
}

// newGemini creates the generator client behind a circuit breaker. It returns
// nil without error when running without LLM.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.withoutLLM {
		return nil, nil
	}

	var (
		client *adapter.GeminiClient
		err    error
	)
	switch {
	case cfg.geminiAPIKey != "":
		client, err = adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, adapter.WithGenerativeModel(cfg.geminiModel))
	case cfg.geminiProject != "":
		client, err = adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, adapter.WithGenerativeModel(cfg.geminiModel))
	default:
		return nil, goerr.Wrap(ask.ErrNotConfigured, "gemini-api-key or gemini-project is required (or use --without-llm)")
	}
	if err != nil {
		return nil, err
	}

	return adapter.NewBreakerGemini(client, adapter.DefaultBreakerConfig()), nil
}

// newSheets creates the spreadsheet sync. Sync is disabled (nil) unless both
// sheet ID and service account are set.
func (cfg *config) newSheets(ctx context.Context) (adapter.Sheets, error) {
	if cfg.sheetID == "" || cfg.serviceAccount == "" {
		if cfg.sheetID != "" || cfg.serviceAccount != "" {
			logging.From(ctx).Warn("sheet sync disabled, both sheet-id and service-account are required")
		}
		return nil, nil
	}

	credentials, err := loadServiceAccount(cfg.serviceAccount)
	if err != nil {
		return nil, err
	}
	return adapter.NewSheets(ctx, cfg.sheetID, credentials)
}

// loadServiceAccount accepts either the JSON key itself or a path to it
func loadServiceAccount(v string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(v), "{") {
		return []byte(v), nil
	}
	data, err := os.ReadFile(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read service account file", goerr.V("path", v))
	}
	return data, nil
}

func (cfg *config) askOptions() ([]ask.Option, error) {
	var opts []ask.Option
	if cfg.plannerConfig != "" {
		pc, err := ask.LoadPlannerConfig(cfg.plannerConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ask.WithPlannerConfig(pc))
	}
	if cfg.withoutLLM {
		opts = append(opts, ask.WithoutLLM())
	}
	return opts, nil
}
