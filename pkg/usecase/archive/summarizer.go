package archive

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/memory.md
var memoryPromptRaw string

var memoryPromptTmpl = template.Must(template.New("memory").Parse(memoryPromptRaw))

const defaultSummaryTimeout = 60 * time.Second

// Summarizer produces the condensed long-term representation of a session.
type Summarizer struct {
	gemini  adapter.Gemini
	timeout time.Duration
}

// SummarizerOption is a functional option for Summarizer
type SummarizerOption func(*Summarizer)

// WithSummaryTimeout sets the deadline for one summarization call
func WithSummaryTimeout(d time.Duration) SummarizerOption {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSummarizer(gemini adapter.Gemini, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{gemini: gemini, timeout: defaultSummaryTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize renders the transcript into the memory prompt and asks the LLM
// for a condensed note.
func (s *Summarizer) Summarize(ctx context.Context, session *model.Session) (string, error) {
	if len(session.Turns) == 0 {
		return "", goerr.New("session has no turns to summarize", goerr.V("session_id", session.ID))
	}

	var prompt bytes.Buffer
	if err := memoryPromptTmpl.Execute(&prompt, session); err != nil {
		return "", goerr.Wrap(err, "failed to render memory prompt")
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gemini.GenerateContent(genCtx, []*genai.Content{
		genai.NewContentFromText(prompt.String(), genai.RoleUser),
	}, &genai.GenerateContentConfig{})
	if err != nil {
		return "", goerr.Wrap(err, "failed to summarize session", goerr.V("session_id", session.ID))
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

	summary := strings.TrimSpace(strings.Join(textParts, "\n"))
	if summary == "" {
		return "", goerr.Wrap(model.ErrMalformedResponse, "blank summary from LLM")
	}
	return summary, nil
}
