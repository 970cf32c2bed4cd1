package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrServiceUnavailable indicates a backing service (embedding, LLM or
	// graph store) is unreachable or returned a non-success status. Not
	// retried automatically; the caller of the pipeline decides.
	ErrServiceUnavailable = goerr.New("backing service unavailable")

	// ErrMalformedResponse indicates a backing service violated its contract,
	// e.g. embedding count or dimensionality mismatch.
	ErrMalformedResponse = goerr.New("malformed response from backing service")

	// ErrNoQueryInOutput indicates the LLM output contained no extractable
	// query. Treated as a repair-triggering failure.
	ErrNoQueryInOutput = goerr.New("no query found in LLM output")

	// ErrQuerySyntax indicates the graph store rejected the query as
	// syntactically or semantically invalid.
	ErrQuerySyntax = goerr.New("graph store rejected query")

	// ErrQueryTimeout indicates query execution exceeded its deadline.
	ErrQueryTimeout = goerr.New("query execution timed out")

	// ErrMutationRejected indicates a generated query contained mutating
	// constructs and was refused before reaching the graph store.
	ErrMutationRejected = goerr.New("query contains mutating constructs")

	// ErrCannotAnswer is the terminal failure of the repair loop. It carries
	// a user-facing message, never a raw driver error.
	ErrCannotAnswer = goerr.New("could not answer the question")

	// ErrSessionNotFound indicates the requested session does not exist or
	// has expired from the session store.
	ErrSessionNotFound = goerr.New("session not found")

	// ErrInvalidRequest indicates caller input failed validation. Transport
	// layers map it to a client error, never a server error.
	ErrInvalidRequest = goerr.New("invalid request")
)
