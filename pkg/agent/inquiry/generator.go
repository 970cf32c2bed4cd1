package inquiry

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

//go:embed prompt/schema.md
var defaultSchemaRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// DefaultSchema is the built-in description of the inventory graph, used when
// no schema file is configured.
func DefaultSchema() string {
	return defaultSchemaRaw
}

// Generator turns a question plus retrieved examples into a candidate query.
// The underlying LLM is nondeterministic; the only contract is that every
// Draft call returns a well-formed GenerationAttempt.
type Generator struct {
	gemini  adapter.Gemini
	schema  string
	timeout time.Duration
}

// GeneratorOption is a functional option for Generator
type GeneratorOption func(*Generator)

// WithDraftTimeout sets the deadline for a single generation call
func WithDraftTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerator creates a Generator with the given schema description text.
func NewGenerator(gemini adapter.Gemini, schema string, opts ...GeneratorOption) *Generator {
	if schema == "" {
		schema = defaultSchemaRaw
	}
	g := &Generator{gemini: gemini, schema: schema, timeout: defaultLLMTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DraftInput is one generation request within a repair cycle.
type DraftInput struct {
	Question string
	Examples []model.ScoredExample // ranked order, highest similarity first
	Attempt  int

	// Set on repair attempts only
	PriorQuery string
	PriorError string
}

type systemPromptData struct {
	Schema   string
	Examples []model.ScoredExample
}

// Draft renders the prompt, invokes the LLM and extracts a candidate query
// from its free-text output. Extraction failure yields an attempt with an
// empty Query, not an error: the repair loop decides what to do with it.
func (g *Generator) Draft(ctx context.Context, in DraftInput) (*model.GenerationAttempt, error) {
	var systemPrompt bytes.Buffer
	if err := systemPromptTmpl.Execute(&systemPrompt, systemPromptData{
		Schema:   g.schema,
		Examples: in.Examples,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render system prompt")
	}

	userMsg := g.buildUserMessage(in)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt.String(), ""),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(userMsg, genai.RoleUser),
	}

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.gemini.GenerateContent(genCtx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to draft query", goerr.V("attempt", in.Attempt))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "empty completion from LLM")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}
	raw := strings.Join(textParts, "\n")

	return &model.GenerationAttempt{
		Prompt:     systemPrompt.String() + "\n\n---\n\n" + userMsg,
		RawOutput:  raw,
		Query:      extractQuery(raw),
		Index:      in.Attempt,
		PriorError: in.PriorError,
	}, nil
}

func (g *Generator) buildUserMessage(in DraftInput) string {
	if in.PriorError == "" {
		return in.Question
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", in.Question)
	if in.PriorQuery != "" {
		fmt.Fprintf(&b, "The previous query failed:\n\n```cypher\n%s\n```\n\n", in.PriorQuery)
	}
	fmt.Fprintf(&b, "Error: %s\n\n", in.PriorError)
	b.WriteString("Produce a corrected read-only Cypher query in a fenced code block.")
	return b.String()
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:cypher|sql)?[ \t]*\n(.+?)```")

var queryPrefixes = []string{
	"MATCH", "OPTIONAL MATCH", "WITH", "UNWIND", "RETURN", "CALL", "PROFILE", "EXPLAIN",
}

// extractQuery pulls a query out of free-text LLM output. Fenced code blocks
// win; otherwise the first run of lines starting with a Cypher clause is
// taken. Returns "" when nothing query-shaped is found.
func extractQuery(raw string) string {
	for _, m := range fencedBlockPattern.FindAllStringSubmatch(raw, -1) {
		q := strings.TrimSpace(m[1])
		if looksLikeQuery(q) {
			return strings.TrimSuffix(q, ";")
		}
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if !looksLikeQuery(strings.TrimSpace(line)) {
			continue
		}
		j := i
		for j < len(lines) && strings.TrimSpace(lines[j]) != "" && !strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
			j++
		}
		q := strings.TrimSpace(strings.Join(lines[i:j], "\n"))
		return strings.TrimSuffix(q, ";")
	}

	return ""
}

func looksLikeQuery(s string) bool {
	upper := strings.ToUpper(s)
	for _, prefix := range queryPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
