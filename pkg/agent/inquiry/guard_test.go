package inquiry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/cygnet/pkg/agent/inquiry"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestGuardCheck(t *testing.T) {
	guard, err := inquiry.NewGuard(context.Background())
	gt.NoError(t, err)

	testCases := []struct {
		name   string
		query  string
		denied bool
	}{
		{
			name:  "simple match",
			query: "MATCH (t:Terminal) RETURN t.name",
		},
		{
			name:  "match with where and aggregation",
			query: "MATCH (n:Network)-[:CONTAINS]->(t:Terminal) WHERE n.name = 'office' RETURN n.name, count(t)",
		},
		{
			name:  "optional match",
			query: "OPTIONAL MATCH (t:Terminal)-[:PROTECTED_BY]->(p:SecurityProduct) RETURN t.name, p.name",
		},
		{
			name:  "read procedure",
			query: "CALL db.labels() YIELD label RETURN label",
		},
		{
			name:   "create node",
			query:  "CREATE (t:Terminal {name: 'rogue'})",
			denied: true,
		},
		{
			name:   "merge",
			query:  "MERGE (t:Terminal {name: 'rogue'}) RETURN t",
			denied: true,
		},
		{
			name:   "detach delete",
			query:  "MATCH (t:Terminal) DETACH DELETE t",
			denied: true,
		},
		{
			name:   "set property",
			query:  "MATCH (t:Terminal) SET t.compromised = true RETURN t",
			denied: true,
		},
		{
			name:   "remove label",
			query:  "MATCH (t:Terminal) REMOVE t:Active RETURN t",
			denied: true,
		},
		{
			name:   "lowercase mutation",
			query:  "match (t:Terminal) detach delete t",
			denied: true,
		},
		{
			name:   "load csv",
			query:  "LOAD CSV FROM 'file:///etc/passwd' AS row RETURN row",
			denied: true,
		},
		{
			name:   "load csv split across lines",
			query:  "LOAD\nCSV FROM 'file:///etc/passwd' AS row RETURN row",
			denied: true,
		},
		{
			name:   "load csv with extra whitespace",
			query:  "load \t csv WITH HEADERS FROM 'http://evil/rows.csv' AS row RETURN row",
			denied: true,
		},
		{
			name:   "write procedure",
			query:  "CALL apoc.create.node(['Terminal'], {name: 'rogue'}) YIELD node RETURN node",
			denied: true,
		},
		{
			name:   "batching procedure",
			query:  "CALL apoc.periodic.iterate('MATCH (n) RETURN n', 'RETURN n', {}) YIELD batches RETURN batches",
			denied: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.Check(context.Background(), tc.query)
			if tc.denied {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrMutationRejected))
			} else {
				gt.NoError(t, err)
			}
		})
	}
}
