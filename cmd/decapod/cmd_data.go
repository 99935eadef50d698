package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"decapod/internal/knowledge"
)

var (
	dataSchemaSubsystem string

	knowledgeConcept    string
	knowledgeContent    string
	knowledgeSource     string
	knowledgeConfidence float64
	knowledgeTags       []string

	dataBrokerDomain string
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Schema introspection, knowledge atoms, and broker diagnosis",
}

var dataSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for a named subsystem",
	RunE:  runDataSchema,
}

var dataKnowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Knowledge-atom candidate/promoted lifecycle",
}

var dataKnowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a candidate knowledge atom, deduplicated by content hash",
	RunE:  runDataKnowledgeAdd,
}

var dataKnowledgePromoteCmd = &cobra.Command{
	Use:   "promote <atom-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Promote a candidate knowledge atom",
	RunE:  runDataKnowledgePromote,
}

var dataBrokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run broker.VerifyReplay over a domain's event log for operator diagnosis",
	RunE:  runDataBroker,
}

func init() {
	dataSchemaCmd.Flags().StringVar(&dataSchemaSubsystem, "subsystem", "", "Subsystem name: todo|workunit|plan|capsule|knowledge (required)")
	dataSchemaCmd.MarkFlagRequired("subsystem")

	dataKnowledgeAddCmd.Flags().StringVar(&knowledgeConcept, "concept", "", "Concept name (required)")
	dataKnowledgeAddCmd.Flags().StringVar(&knowledgeContent, "content", "", "Atom content (required)")
	dataKnowledgeAddCmd.Flags().StringVar(&knowledgeSource, "source", "", "Provenance source")
	dataKnowledgeAddCmd.Flags().Float64Var(&knowledgeConfidence, "confidence", 1.0, "Confidence score in [0,1]")
	dataKnowledgeAddCmd.Flags().StringArrayVar(&knowledgeTags, "tag", nil, "Tag (repeatable)")
	dataKnowledgeAddCmd.MarkFlagRequired("concept")
	dataKnowledgeAddCmd.MarkFlagRequired("content")

	dataBrokerCmd.Flags().StringVar(&dataBrokerDomain, "domain", "todo", "Event-log domain to verify")

	dataKnowledgeCmd.AddCommand(dataKnowledgeAddCmd, dataKnowledgePromoteCmd)
	dataCmd.AddCommand(dataSchemaCmd, dataKnowledgeCmd, dataBrokerCmd)
}

// subsystemSchemas is the static table backing `data schema`: decapod favors
// tables over polymorphism for anything that would otherwise dispatch on a
// doc-shaped name (SPEC_FULL.md §9).
var subsystemSchemas = map[string]map[string]any{
	"todo": {
		"type": "object",
		"properties": map[string]any{
			"id":         map[string]any{"type": "string"},
			"title":      map[string]any{"type": "string"},
			"status":     map[string]any{"type": "string", "enum": []string{"open", "claimed", "done", "archived"}},
			"owner":      map[string]any{"type": "string"},
			"priority":   map[string]any{"type": "string"},
			"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"depends_on": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"blocks":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"parent":     map[string]any{"type": "string"},
			"due_at":     map[string]any{"type": "string", "format": "date-time"},
			"created_at": map[string]any{"type": "string", "format": "date-time"},
		},
		"required": []string{"id", "title", "status", "created_at"},
	},
	"workunit": {
		"type": "object",
		"properties": map[string]any{
			"task_id":       map[string]any{"type": "string"},
			"intent_ref":    map[string]any{"type": "string"},
			"spec_refs":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"state_refs":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"proof_plan":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"proof_results": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"status":        map[string]any{"type": "string", "enum": []string{"draft", "claimed", "executing", "verified"}},
		},
		"required": []string{"task_id", "intent_ref", "status"},
	},
	"plan": {
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string"},
			"title":          map[string]any{"type": "string"},
			"status":         map[string]any{"type": "string", "enum": []string{"draft", "approved", "executing", "closed"}},
			"open_questions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"open_unknowns":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"id", "title", "status"},
	},
	"capsule": {
		"type": "object",
		"properties": map[string]any{
			"schema_version": map[string]any{"type": "integer"},
			"topic":          map[string]any{"type": "string"},
			"scope":          map[string]any{"type": "string"},
			"task_id":        map[string]any{"type": "string"},
			"workunit_id":    map[string]any{"type": "string"},
			"sources":        map[string]any{"type": "array"},
			"snippets":       map[string]any{"type": "array"},
			"policy":         map[string]any{"type": "string"},
			"capsule_hash":   map[string]any{"type": "string"},
		},
		"required": []string{"schema_version", "topic", "scope", "capsule_hash"},
	},
	"knowledge": {
		"type": "object",
		"properties": map[string]any{
			"id":         map[string]any{"type": "string"},
			"concept":    map[string]any{"type": "string"},
			"content":    map[string]any{"type": "string"},
			"source":     map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number"},
			"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"status":     map[string]any{"type": "string", "enum": []string{"candidate", "promoted"}},
			"created_at": map[string]any{"type": "string", "format": "date-time"},
		},
		"required": []string{"id", "concept", "content", "status"},
	},
}

func runDataSchema(cmd *cobra.Command, args []string) error {
	schema, ok := subsystemSchemas[dataSchemaSubsystem]
	if !ok {
		return fmt.Errorf("data schema: unknown subsystem %q", dataSchemaSubsystem)
	}
	return printResult(cmd, app.Format, schema, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "schema for subsystem %q: %d top-level properties\n", dataSchemaSubsystem, len(schema["properties"].(map[string]any)))
	})
}

func runDataKnowledgeAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var atom knowledge.Atom
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := knowledge.EnsureSchema(ctx, db); err != nil {
			return err
		}
		var addErr error
		atom, addErr = knowledge.Add(ctx, db, knowledgeConcept, knowledgeContent, knowledgeSource, knowledgeConfidence, knowledgeTags)
		return addErr
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, atom, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "knowledge atom %s added (candidate)\n", atom.ID)
	})
}

func runDataKnowledgePromote(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	id := args[0]
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := knowledge.EnsureSchema(ctx, db); err != nil {
			return err
		}
		return knowledge.Promote(ctx, db, id)
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"id": id, "status": "promoted"}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "knowledge atom %s promoted\n", id)
	})
}

func runDataBroker(cmd *cobra.Command, args []string) error {
	b := app.Broker(dataBrokerDomain)
	report, err := b.VerifyReplay()
	if err != nil {
		return fmt.Errorf("data broker: %w", err)
	}
	return printResult(cmd, app.Format, report, func() {
		if len(report.Divergences) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "data broker: domain %q replay-clean\n", dataBrokerDomain)
			return
		}
		for _, d := range report.Divergences {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d.Op, d.Reason)
		}
	})
}
