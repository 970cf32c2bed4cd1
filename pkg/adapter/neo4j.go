package adapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Graph is the boundary to the graph store. It accepts a query string in the
// store's query language and returns a sequence of records or a typed failure.
// Usage through this interface is read-only; the inquiry executor enforces
// that before any query reaches Run.
type Graph interface {
	// Run executes a query with a bounded timeout and returns one map per
	// record. A structurally valid query with zero matches returns an empty
	// slice, not an error.
	Run(ctx context.Context, query string) ([]map[string]any, error)

	Close(ctx context.Context) error
}

type neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// Neo4jOption is a functional option for the Neo4j client
type Neo4jOption func(*neo4jClient)

// WithDatabase sets the target database name
func WithDatabase(name string) Neo4jOption {
	return func(c *neo4jClient) {
		c.database = name
	}
}

// WithQueryTimeout bounds each Run call
func WithQueryTimeout(d time.Duration) Neo4jOption {
	return func(c *neo4jClient) {
		c.timeout = d
	}
}

// NewNeo4j creates a Graph backed by a Neo4j server and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, user, password string, opts ...Neo4jOption) (Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create neo4j driver", goerr.V("uri", uri))
	}

	c := &neo4jClient{
		driver:   driver,
		database: "neo4j",
		timeout:  15 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, goerr.Wrap(model.ErrServiceUnavailable, "failed to connect to neo4j",
			goerr.V("uri", uri), goerr.V("cause", err.Error()))
	}

	return c, nil
}

func (c *neo4jClient) Run(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, classifyNeo4jError(err)
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, classifyNeo4jError(err)
	}

	return rows, nil
}

func (c *neo4jClient) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return goerr.Wrap(err, "failed to close neo4j driver")
	}
	return nil
}

// classifyNeo4jError maps driver errors onto the pipeline's failure taxonomy.
// Statement-level rejections keep the server message so the repair loop can
// feed it back to the generator.
func classifyNeo4jError(err error) error {
	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		if strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement") {
			return goerr.Wrap(model.ErrQuerySyntax, neoErr.Msg, goerr.V("code", neoErr.Code))
		}
		return goerr.Wrap(model.ErrServiceUnavailable, neoErr.Msg, goerr.V("code", neoErr.Code))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(model.ErrQueryTimeout, "graph store did not answer in time")
	}

	return goerr.Wrap(model.ErrServiceUnavailable, "graph store request failed", goerr.V("cause", err.Error()))
}
