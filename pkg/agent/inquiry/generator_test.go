package inquiry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/cygnet/pkg/agent/inquiry"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestDraftExtractsQuery(t *testing.T) {
	testCases := []struct {
		name     string
		rawText  string
		expected string
	}{
		{
			name:     "fenced cypher block",
			rawText:  "Here is the query:\n\n```cypher\nMATCH (t:Terminal) RETURN t.name\n```\n\nLet me know if you need more.",
			expected: "MATCH (t:Terminal) RETURN t.name",
		},
		{
			name:     "unlabeled fence",
			rawText:  "```\nMATCH (n:Network) RETURN n\n```",
			expected: "MATCH (n:Network) RETURN n",
		},
		{
			name:     "multiline query in fence",
			rawText:  "```cypher\nMATCH (n:Network)-[:CONTAINS]->(t:Terminal)\nWHERE n.name = 'office'\nRETURN t.name\n```",
			expected: "MATCH (n:Network)-[:CONTAINS]->(t:Terminal)\nWHERE n.name = 'office'\nRETURN t.name",
		},
		{
			name:     "trailing semicolon stripped",
			rawText:  "```cypher\nMATCH (t:Terminal) RETURN t;\n```",
			expected: "MATCH (t:Terminal) RETURN t",
		},
		{
			name:     "bare query without fence",
			rawText:  "The following should work.\n\nMATCH (u:Unit)-[:BUILT]->(n:Network)\nRETURN u.name, n.name\n\nThis lists all builders.",
			expected: "MATCH (u:Unit)-[:BUILT]->(n:Network)\nRETURN u.name, n.name",
		},
		{
			name:     "first of multiple fences wins",
			rawText:  "```cypher\nMATCH (a) RETURN a\n```\nor alternatively\n```cypher\nMATCH (b) RETURN b\n```",
			expected: "MATCH (a) RETURN a",
		},
		{
			name:     "non-query fence skipped",
			rawText:  "```\nthis is just prose in a fence\n```\nUse this instead:\n```cypher\nRETURN 42\n```",
			expected: "RETURN 42",
		},
		{
			name:     "no query at all",
			rawText:  "I cannot answer that question with the available schema.",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockGemini{
				generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return textResponse(tc.rawText), nil
				},
			}

			g := inquiry.NewGenerator(mock, "")
			attempt, err := g.Draft(context.Background(), inquiry.DraftInput{Question: "q"})
			gt.NoError(t, err)
			gt.Equal(t, attempt.Query, tc.expected)
			gt.Equal(t, attempt.RawOutput, tc.rawText)
		})
	}
}

func TestDraftIncludesExamplesInPrompt(t *testing.T) {
	var systemPrompt string
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gt.V(t, config.SystemInstruction).NotNil()
			systemPrompt = config.SystemInstruction.Parts[0].Text
			return textResponse("```cypher\nRETURN 1\n```"), nil
		},
	}

	g := inquiry.NewGenerator(mock, "graph schema goes here")
	_, err := g.Draft(context.Background(), inquiry.DraftInput{
		Question: "which networks exist",
		Examples: []model.ScoredExample{
			{Example: &model.Example{Question: "example question one", Query: "MATCH (n:Network) RETURN n"}, Score: 0.9},
			{Example: &model.Example{Question: "example question two", Query: "MATCH (t:Terminal) RETURN t"}, Score: 0.7},
		},
	})
	gt.NoError(t, err)

	gt.S(t, systemPrompt).Contains("graph schema goes here")
	gt.S(t, systemPrompt).Contains("example question one")
	gt.S(t, systemPrompt).Contains("MATCH (n:Network) RETURN n")
	gt.S(t, systemPrompt).Contains("example question two")
}

func TestDraftRepairMessage(t *testing.T) {
	var userMsg string
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gt.A(t, contents).Length(1)
			userMsg = contents[0].Parts[0].Text
			return textResponse("```cypher\nRETURN 1\n```"), nil
		},
	}

	g := inquiry.NewGenerator(mock, "")
	attempt, err := g.Draft(context.Background(), inquiry.DraftInput{
		Question:   "which networks exist",
		Attempt:    1,
		PriorQuery: "MATCH (n:Netwrk) RETURN n",
		PriorError: "unknown label Netwrk",
	})
	gt.NoError(t, err)
	gt.Equal(t, attempt.Index, 1)

	gt.S(t, userMsg).Contains("which networks exist")
	gt.S(t, userMsg).Contains("MATCH (n:Netwrk) RETURN n")
	gt.S(t, userMsg).Contains("unknown label Netwrk")
}

func TestDraftAbandonsHungLLM(t *testing.T) {
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	g := inquiry.NewGenerator(mock, "", inquiry.WithDraftTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := g.Draft(context.Background(), inquiry.DraftInput{Question: "q"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.DeadlineExceeded))
	gt.True(t, time.Since(start) < 5*time.Second)
}

func TestDefaultSchema(t *testing.T) {
	gt.S(t, inquiry.DefaultSchema()).Contains("Terminal")
}
