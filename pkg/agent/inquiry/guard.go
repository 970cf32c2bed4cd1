package inquiry

import (
	"context"
	_ "embed"
	"regexp"
	"strings"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed policy/readonly.rego
var readonlyPolicyRaw string

// Guard rejects generated queries containing mutating constructs before they
// reach the graph store. The policy fails closed: anything the policy denies
// never executes.
type Guard struct {
	query rego.PreparedEvalQuery
}

// NewGuard prepares the embedded read-only policy for evaluation.
func NewGuard(ctx context.Context) (*Guard, error) {
	pq, err := rego.New(
		rego.Query("data.cygnet.query.deny"),
		rego.Module("readonly.rego", readonlyPolicyRaw),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare read-only policy")
	}

	return &Guard{query: pq}, nil
}

var (
	tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Check returns ErrMutationRejected when the query contains any construct the
// policy denies.
func (g *Guard) Check(ctx context.Context, query string) error {
	// Collapse runs of whitespace so multi-word constructs match even when
	// the clause is split across lines.
	upper := strings.ToUpper(spacePattern.ReplaceAllString(query, " "))

	var tokens []string
	var procedures []string
	for _, tok := range tokenPattern.FindAllString(query, -1) {
		if strings.Contains(tok, ".") {
			procedures = append(procedures, strings.ToLower(tok))
			continue
		}
		tokens = append(tokens, strings.ToUpper(tok))
	}

	input := map[string]any{
		"text":       upper,
		"tokens":     tokens,
		"procedures": procedures,
	}

	rs, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate read-only policy")
	}

	var denied []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, v := range values {
				if s, ok := v.(string); ok {
					denied = append(denied, s)
				}
			}
		}
	}

	if len(denied) > 0 {
		return goerr.Wrap(model.ErrMutationRejected, "query is not read-only",
			goerr.V("constructs", denied))
	}
	return nil
}
