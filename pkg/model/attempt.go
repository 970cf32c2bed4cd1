package model

// GenerationAttempt records one generation within a repair cycle. Attempts are
// ordered by Index and immutable once produced.
type GenerationAttempt struct {
	Prompt     string
	RawOutput  string
	Query      string // empty when extraction failed
	Index      int
	PriorError string // empty on the first draft
}

// ExecutionKind tags the outcome of running a query against the graph store.
type ExecutionKind string

const (
	// ExecutionRows is a successful execution. Zero rows is still a success,
	// not a retry trigger.
	ExecutionRows ExecutionKind = "rows"

	ExecutionSyntaxError ExecutionKind = "syntax_error"
	ExecutionTimeout     ExecutionKind = "timeout"
)

// ExecutionOutcome is the classified result of one query execution.
type ExecutionOutcome struct {
	Kind    ExecutionKind
	Rows    []map[string]any
	Message string // store-reported error for syntax_error / timeout
}

// Empty reports whether the execution succeeded with zero rows.
func (o *ExecutionOutcome) Empty() bool {
	return o.Kind == ExecutionRows && len(o.Rows) == 0
}
