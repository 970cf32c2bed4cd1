// Package inquiry implements the query-translation pipeline: example
// retrieval, prompt-based query generation, guarded execution and a bounded
// repair loop.
package inquiry

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/catalog"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/answer.md
var answerPromptRaw string

var answerPromptTmpl = template.Must(template.New("answer").Parse(answerPromptRaw))

const (
	defaultTopK        = 4
	defaultMaxAttempts = 2 // repair retries after the first draft
	defaultLLMTimeout  = 60 * time.Second
	maxRowsInAnswer    = 50
)

// Agent orchestrates one user question end to end. Stages within a repair
// cycle run strictly sequentially; independent requests may run Agent.Ask in
// parallel since the agent holds no per-request state.
type Agent struct {
	retriever *catalog.Retriever
	generator *Generator
	executor  *Executor
	gemini    adapter.Gemini

	topK        int
	maxAttempts int
	llmTimeout  time.Duration
}

// AgentOption is a functional option for Agent
type AgentOption func(*Agent)

// WithTopK sets how many examples are retrieved per question
func WithTopK(k int) AgentOption {
	return func(a *Agent) {
		a.topK = k
	}
}

// WithMaxAttempts sets how many repair retries follow the first draft
func WithMaxAttempts(n int) AgentOption {
	return func(a *Agent) {
		a.maxAttempts = n
	}
}

// WithLLMTimeout sets the deadline for the answer summarization call
func WithLLMTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.llmTimeout = d
		}
	}
}

// NewAgent creates the inquiry agent.
func NewAgent(retriever *catalog.Retriever, generator *Generator, executor *Executor, gemini adapter.Gemini, opts ...AgentOption) *Agent {
	a := &Agent{
		retriever:   retriever,
		generator:   generator,
		executor:    executor,
		gemini:      gemini,
		topK:        defaultTopK,
		maxAttempts: defaultMaxAttempts,
		llmTimeout:  defaultLLMTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is a successfully answered question.
type Result struct {
	Answer   string
	Query    string
	Rows     []map[string]any
	Attempts []*model.GenerationAttempt
}

// Ask runs the Drafting → Executing → {Answered, Repairing, GivingUp} state
// machine. It performs at most maxAttempts+1 generation calls and always
// terminates; exhausting the budget yields ErrCannotAnswer, never a raw
// driver error. On ErrCannotAnswer the returned Result is non-nil and still
// carries the attempt log so callers can report how much work was spent.
func (a *Agent) Ask(ctx context.Context, question string) (*Result, error) {
	logger := logging.From(ctx)

	examples, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve examples")
	}

	var attempts []*model.GenerationAttempt
	var priorQuery, priorError string

	for i := 0; i <= a.maxAttempts; i++ {
		attempt, err := a.generator.Draft(ctx, DraftInput{
			Question:   question,
			Examples:   examples,
			Attempt:    i,
			PriorQuery: priorQuery,
			PriorError: priorError,
		})
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)

		if attempt.Query == "" {
			logger.Warn("no query extracted from LLM output", "attempt", i)
			priorQuery = ""
			priorError = model.ErrNoQueryInOutput.Error() + "; reply with exactly one fenced cypher block"
			continue
		}

		outcome, err := a.executor.Execute(ctx, attempt.Query)
		if err != nil {
			if errors.Is(err, model.ErrMutationRejected) {
				logger.Warn("generated query rejected by read-only guard", "query", attempt.Query)
				return &Result{Attempts: attempts}, goerr.Wrap(model.ErrCannotAnswer, "generated query was not read-only",
					goerr.V("attempts", len(attempts)))
			}
			return nil, err
		}

		switch outcome.Kind {
		case model.ExecutionRows:
			answer, err := a.summarize(ctx, question, attempt.Query, outcome.Rows)
			if err != nil {
				return nil, err
			}
			return &Result{
				Answer:   answer,
				Query:    attempt.Query,
				Rows:     outcome.Rows,
				Attempts: attempts,
			}, nil

		default:
			logger.Info("query execution failed, repairing",
				"attempt", i, "kind", outcome.Kind, "error", outcome.Message)
			priorQuery = attempt.Query
			priorError = outcome.Message
		}
	}

	return &Result{Attempts: attempts}, goerr.Wrap(model.ErrCannotAnswer, "exhausted repair attempts",
		goerr.V("attempts", len(attempts)), goerr.V("last_error", priorError))
}

type answerPromptData struct {
	Question   string
	Query      string
	RowCount   int
	ShownCount int
	Truncated  bool
	RowsJSON   string
}

func (a *Agent) summarize(ctx context.Context, question, query string, rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "The query ran successfully but matched no records in the inventory.", nil
	}

	shown := rows
	truncated := false
	if len(shown) > maxRowsInAnswer {
		shown = shown[:maxRowsInAnswer]
		truncated = true
	}

	rowsJSON, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal result rows")
	}

	var prompt bytes.Buffer
	if err := answerPromptTmpl.Execute(&prompt, answerPromptData{
		Question:   question,
		Query:      query,
		RowCount:   len(rows),
		ShownCount: len(shown),
		Truncated:  truncated,
		RowsJSON:   string(rowsJSON),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render answer prompt")
	}

	genCtx, cancel := context.WithTimeout(ctx, a.llmTimeout)
	defer cancel()

	resp, err := a.gemini.GenerateContent(genCtx, []*genai.Content{
		genai.NewContentFromText(prompt.String(), genai.RoleUser),
	}, &genai.GenerateContentConfig{})
	if err != nil {
		return "", goerr.Wrap(err, "failed to summarize results")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.Wrap(model.ErrMalformedResponse, "empty summary from LLM")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}
	return strings.Join(textParts, "\n"), nil
}
