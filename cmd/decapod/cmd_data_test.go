package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"decapod/internal/knowledge"
)

func TestRunDataSchemaKnownSubsystem(t *testing.T) {
	newTestApp(t)
	dataSchemaSubsystem = "todo"
	t.Cleanup(func() { dataSchemaSubsystem = "" })

	err := runDataSchema(newTestCmd(), nil)
	require.NoError(t, err)
}

func TestRunDataSchemaUnknownSubsystem(t *testing.T) {
	newTestApp(t)
	dataSchemaSubsystem = "bogus"
	t.Cleanup(func() { dataSchemaSubsystem = "" })

	err := runDataSchema(newTestCmd(), nil)
	require.Error(t, err)
}

func TestRunDataKnowledgeAddAndPromote(t *testing.T) {
	newTestApp(t)
	knowledgeConcept = "retry-budget"
	knowledgeContent = "cap retries at 3 per op"
	knowledgeSource = "test"
	knowledgeConfidence = 0.75
	knowledgeTags = []string{"reliability"}
	t.Cleanup(func() {
		knowledgeConcept, knowledgeContent, knowledgeSource = "", "", ""
		knowledgeConfidence = 0
		knowledgeTags = nil
	})

	require.NoError(t, runDataKnowledgeAdd(newTestCmd(), nil))

	ctx := context.Background()
	var id string
	require.NoError(t, app.WithRead(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT id FROM knowledge_atoms WHERE concept = ?`, knowledgeConcept).Scan(&id)
	}))
	require.NotEmpty(t, id)

	require.NoError(t, runDataKnowledgePromote(newTestCmd(), []string{id}))

	var got knowledge.Atom
	require.NoError(t, app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		got, err = knowledge.Get(ctx, db, id)
		return err
	}))
	require.Equal(t, knowledge.StatusPromoted, got.Status)
}

func TestRunDataBrokerVerifiesCleanDomain(t *testing.T) {
	newTestApp(t)
	dataBrokerDomain = "todo"
	t.Cleanup(func() { dataBrokerDomain = "" })

	err := runDataBroker(newTestCmd(), nil)
	require.NoError(t, err)
}
