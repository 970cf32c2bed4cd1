package inquiry

import (
	"context"
	"errors"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/model"
)

// Executor runs a candidate query against the graph store and classifies the
// result. The read-only guard sits in front of every execution.
type Executor struct {
	graph adapter.Graph
	guard *Guard
}

// NewExecutor creates an Executor over the given graph store.
func NewExecutor(graph adapter.Graph, guard *Guard) *Executor {
	return &Executor{graph: graph, guard: guard}
}

// Execute classifies the run into an ExecutionOutcome. Syntax errors and
// timeouts become outcomes so the repair loop can feed them back; mutation
// rejection and store unavailability are returned as errors since neither is
// repairable by regenerating against the same message.
func (x *Executor) Execute(ctx context.Context, query string) (*model.ExecutionOutcome, error) {
	if err := x.guard.Check(ctx, query); err != nil {
		return nil, err
	}

	rows, err := x.graph.Run(ctx, query)
	switch {
	case err == nil:
		return &model.ExecutionOutcome{Kind: model.ExecutionRows, Rows: rows}, nil

	case errors.Is(err, model.ErrQuerySyntax):
		return &model.ExecutionOutcome{Kind: model.ExecutionSyntaxError, Message: err.Error()}, nil

	case errors.Is(err, model.ErrQueryTimeout):
		return &model.ExecutionOutcome{Kind: model.ExecutionTimeout, Message: err.Error()}, nil

	default:
		return nil, err
	}
}
