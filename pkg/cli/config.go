package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/agent/inquiry"
	"github.com/m-mizutani/cygnet/pkg/catalog"
	"github.com/m-mizutani/cygnet/pkg/embedding"
	"github.com/m-mizutani/cygnet/pkg/repository"
	"github.com/m-mizutani/cygnet/pkg/usecase/archive"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Gemini
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string
	embeddingDim    int64
	llmTimeout      time.Duration

	// Graph store
	neo4jURI      string
	neo4jUser     string
	neo4jPassword string
	neo4jDatabase string
	queryTimeout  time.Duration

	// Session store / archive
	redisAddr     string
	archiveDBPath string

	// Pipeline
	catalogPath string
	schemaPath  string
	topK        int64
	maxAttempts int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CYGNET_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("CYGNET_GEMINI_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("CYGNET_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Model for query generation and summaries",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("CYGNET_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Model for text embeddings",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("CYGNET_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dim",
			Usage:       "Embedding vector dimensionality",
			Value:       768,
			Sources:     cli.EnvVars("CYGNET_EMBEDDING_DIM"),
			Destination: &cfg.embeddingDim,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Deadline for a single LLM generation call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("CYGNET_LLM_TIMEOUT"),
			Destination: &cfg.llmTimeout,
		},
	}
}

// graphFlags returns flags for the graph store connection
func graphFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "neo4j-uri",
			Usage:       "Neo4j connection URI",
			Value:       "bolt://localhost:7687",
			Sources:     cli.EnvVars("CYGNET_NEO4J_URI"),
			Destination: &cfg.neo4jURI,
		},
		&cli.StringFlag{
			Name:        "neo4j-user",
			Usage:       "Neo4j user",
			Value:       "neo4j",
			Sources:     cli.EnvVars("CYGNET_NEO4J_USER"),
			Destination: &cfg.neo4jUser,
		},
		&cli.StringFlag{
			Name:        "neo4j-password",
			Usage:       "Neo4j password",
			Sources:     cli.EnvVars("CYGNET_NEO4J_PASSWORD"),
			Destination: &cfg.neo4jPassword,
		},
		&cli.StringFlag{
			Name:        "neo4j-database",
			Usage:       "Neo4j database name",
			Value:       "neo4j",
			Sources:     cli.EnvVars("CYGNET_NEO4J_DATABASE"),
			Destination: &cfg.neo4jDatabase,
		},
		&cli.DurationFlag{
			Name:        "query-timeout",
			Usage:       "Graph query execution timeout",
			Value:       15 * time.Second,
			Sources:     cli.EnvVars("CYGNET_QUERY_TIMEOUT"),
			Destination: &cfg.queryTimeout,
		},
	}
}

// storeFlags returns flags for the session store and archive database
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the session store",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("CYGNET_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "archive-db",
			Usage:       "Path to the archive SQLite database",
			Value:       "cygnet-archive.db",
			Sources:     cli.EnvVars("CYGNET_ARCHIVE_DB"),
			Destination: &cfg.archiveDBPath,
		},
	}
}

// pipelineFlags returns flags for the query-translation pipeline
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Path to the few-shot example catalogue YAML",
			Sources:     cli.EnvVars("CYGNET_CATALOG"),
			Destination: &cfg.catalogPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "schema",
			Usage:       "Path to a graph schema description file (defaults to the built-in inventory schema)",
			Sources:     cli.EnvVars("CYGNET_SCHEMA"),
			Destination: &cfg.schemaPath,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of examples retrieved per question",
			Value:       4,
			Sources:     cli.EnvVars("CYGNET_TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.IntFlag{
			Name:        "max-attempts",
			Usage:       "Repair retries after the first draft",
			Value:       2,
			Sources:     cli.EnvVars("CYGNET_MAX_ATTEMPTS"),
			Destination: &cfg.maxAttempts,
		},
	}
}

// setupLogger installs the configured logger as default and attaches it to
// the context.
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	)
}

// newGraph creates a new graph store adapter instance
func (cfg *config) newGraph(ctx context.Context) (adapter.Graph, error) {
	if cfg.neo4jURI == "" {
		return nil, goerr.New("neo4j-uri is required")
	}
	return adapter.NewNeo4j(ctx, cfg.neo4jURI, cfg.neo4jUser, cfg.neo4jPassword,
		adapter.WithDatabase(cfg.neo4jDatabase),
		adapter.WithQueryTimeout(cfg.queryTimeout),
	)
}

// newSessions creates the Redis session repository
func (cfg *config) newSessions(ctx context.Context) (*repository.RedisSessions, error) {
	return repository.NewRedisSessions(ctx, cfg.redisAddr)
}

// newArchive creates the SQLite archive queue and memory store
func (cfg *config) newArchive() (*repository.SQLiteArchive, error) {
	return repository.NewSQLiteArchive(cfg.archiveDBPath)
}

// newEmbedder creates the embedding client
func (cfg *config) newEmbedder(gemini adapter.Gemini) *embedding.Embedder {
	return embedding.New(gemini, int(cfg.embeddingDim))
}

// loadSchema returns the schema description text for prompts
func (cfg *config) loadSchema() (string, error) {
	if cfg.schemaPath == "" {
		return inquiry.DefaultSchema(), nil
	}
	raw, err := os.ReadFile(cfg.schemaPath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read schema file", goerr.V("path", cfg.schemaPath))
	}
	return string(raw), nil
}

// newAgent loads the catalogue and assembles the inquiry pipeline
func (cfg *config) newAgent(ctx context.Context, gemini adapter.Gemini, graph adapter.Graph) (*inquiry.Agent, error) {
	cat, err := catalog.Load(cfg.catalogPath)
	if err != nil {
		return nil, err
	}

	embedder := cfg.newEmbedder(gemini)
	if err := cat.EnsureEmbeddings(ctx, embedder); err != nil {
		return nil, err
	}

	schema, err := cfg.loadSchema()
	if err != nil {
		return nil, err
	}

	guard, err := inquiry.NewGuard(ctx)
	if err != nil {
		return nil, err
	}

	return inquiry.NewAgent(
		catalog.NewRetriever(cat, embedder),
		inquiry.NewGenerator(gemini, schema, inquiry.WithDraftTimeout(cfg.llmTimeout)),
		inquiry.NewExecutor(graph, guard),
		gemini,
		inquiry.WithTopK(int(cfg.topK)),
		inquiry.WithMaxAttempts(int(cfg.maxAttempts)),
		inquiry.WithLLMTimeout(cfg.llmTimeout),
	), nil
}

// newArchiveWorker assembles the archival worker
func (cfg *config) newArchiveWorker(gemini adapter.Gemini, sessions repository.SessionRepository, store *repository.SQLiteArchive, opts ...archive.WorkerOption) *archive.Worker {
	summarizer := archive.NewSummarizer(gemini, archive.WithSummaryTimeout(cfg.llmTimeout))
	return archive.NewWorker(store, sessions, store, summarizer, opts...)
}
