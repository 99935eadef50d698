package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"decapod/internal/auditlog"
	"decapod/internal/capsule"
	"decapod/internal/constitution"
	"decapod/internal/decerr"
	"decapod/internal/govmap"
	"decapod/internal/knowledge"
	"decapod/internal/plan"
	"decapod/internal/rpcdispatch"
	"decapod/internal/session"
	"decapod/internal/todostore"
	"decapod/internal/todostore/agentdir"
	"decapod/internal/validate"
	"decapod/internal/workunit"
)

var rpcStdin bool

var rpcCmd = &cobra.Command{
	Use:   "rpc [request-json]",
	Short: "Dispatch one or more RPC requests through the static op routing table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRPC,
}

func init() {
	rpcCmd.Flags().BoolVar(&rpcStdin, "stdin", false, "Read newline-delimited RPC requests from stdin until EOF")
}

func runRPC(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	dispatcher := rpcdispatch.New(buildRPCRoutes(ctx))
	sess := &rpcdispatch.Session{ID: uuid.NewString()}

	if rpcStdin {
		started := time.Now()
		n, err := dispatchStream(cmd, dispatcher, sess, cmd.InOrStdin())
		app.Audit.Write(auditlog.Record{
			TS:         time.Now(),
			Category:   auditlog.CategoryRPC,
			Op:         "rpc.stream",
			Actor:      app.Actor,
			SubjectID:  sess.ID,
			Outcome:    outcomeOf(err),
			DurationMS: time.Since(started).Milliseconds(),
			Fields:     map[string]any{"requests": n},
		})
		return err
	}

	if len(args) == 0 {
		return decerr.New(decerr.KindInvalidArgument, "rpc: provide a request JSON argument or pass --stdin")
	}
	var req rpcdispatch.Request
	if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
		return fmt.Errorf("rpc: decode request: %w", err)
	}
	resp := dispatcher.Dispatch(req, sess)
	return printResult(cmd, app.Format, resp, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", resp)
	})
}

func dispatchStream(cmd *cobra.Command, dispatcher *rpcdispatch.Dispatcher, sess *rpcdispatch.Session, in io.Reader) (int, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(cmd.OutOrStdout())
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcdispatch.Request
		if err := json.Unmarshal(line, &req); err != nil {
			return n, fmt.Errorf("rpc: decode request line: %w", err)
		}
		resp := dispatcher.Dispatch(req, sess)
		n++
		if err := enc.Encode(resp); err != nil {
			return n, fmt.Errorf("rpc: encode response: %w", err)
		}
	}
	return n, sc.Err()
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func rpcOpNames() []string {
	names := make([]string, 0, len(rpcRouteNames))
	for _, n := range rpcRouteNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var rpcRouteNames = []string{
	"agent.init", "session.acquire", "context.bindings", "context.resolve",
	"schema.get", "store.upsert",
	"workunit.init", "workunit.set-proof-plan", "workunit.record-proof", "workunit.transition",
	"capsule.query",
	"knowledge.add", "knowledge.promote",
	"plan.init", "plan.approve", "plan.update", "plan.check-execute",
	"trace.export",
}

// buildRPCRoutes wires every op named in spec.md §4.9's enumeration to the
// same package calls the CLI commands use, so the RPC surface and the CLI
// surface never drift into two implementations of the same operation.
func buildRPCRoutes(ctx context.Context) map[string]rpcdispatch.OpHandler {
	return map[string]rpcdispatch.OpHandler{
		"agent.init": {AllowedNext: []string{"context.resolve"}, Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "agent.init: %v", err)
			}
			var err error
			writeErr := app.WithWrite(ctx, func(db *sql.DB) error {
				if e := agentdir.EnsureSchema(ctx, db); e != nil {
					return e
				}
				err = agentdir.RegisterAgent(ctx, db, p.AgentID)
				return err
			})
			if writeErr != nil {
				return nil, nil, writeErr
			}
			return map[string]any{"agent_id": p.AgentID}, nil, nil
		}},

		"session.acquire": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "session.acquire: %v", err)
			}
			sess, err := session.Acquire(app.Workspace, p.AgentID)
			if err != nil {
				return nil, nil, err
			}
			return sess, nil, nil
		}},

		"context.bindings": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Topic string `json:"topic"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "context.bindings: %v", err)
			}
			return govmap.Resolve(p.Topic), nil, nil
		}},

		"context.resolve": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "context.resolve: %v", err)
			}
			path, _ := splitDocAnchor(p.Path)
			text, err := constitution.Read(path)
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{"path": path, "text": text}, nil, nil
		}},

		"schema.get": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Subsystem string `json:"subsystem"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "schema.get: %v", err)
			}
			schema, ok := subsystemSchemas[p.Subsystem]
			if !ok {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "schema.get: unknown subsystem %q", p.Subsystem)
			}
			return schema, nil, nil
		}},

		"store.upsert": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var t todostore.Task
			if err := json.Unmarshal(params, &t); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "store.upsert: %v", err)
			}
			store := &todostore.Store{Broker: app.Broker("todo")}
			var out todostore.Task
			writeErr := app.WithWrite(ctx, func(db *sql.DB) error {
				if e := todostore.EnsureSchema(ctx, db); e != nil {
					return e
				}
				var addErr error
				out, addErr = store.AddTask(ctx, db, app.Actor, t)
				return addErr
			})
			if writeErr != nil {
				return nil, nil, writeErr
			}
			return out, nil, nil
		}},

		"workunit.init": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				TaskID    string `json:"task_id"`
				IntentRef string `json:"intent_ref"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "workunit.init: %v", err)
			}
			m := workunit.Init(p.TaskID, p.IntentRef)
			if err := workunit.Save(app.Workspace, m); err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}},

		"workunit.set-proof-plan": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				TaskID string   `json:"task_id"`
				Plan   []string `json:"proof_plan"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "workunit.set-proof-plan: %v", err)
			}
			m, err := workunit.Load(app.Workspace, p.TaskID)
			if err != nil {
				return nil, nil, err
			}
			m, err = m.SetProofPlan(p.Plan)
			if err != nil {
				return nil, nil, err
			}
			if err := workunit.Save(app.Workspace, m); err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}},

		"workunit.record-proof": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				TaskID string `json:"task_id"`
				Ref    string `json:"ref"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "workunit.record-proof: %v", err)
			}
			m, err := workunit.Load(app.Workspace, p.TaskID)
			if err != nil {
				return nil, nil, err
			}
			m = m.RecordProof(p.Ref)
			if err := workunit.Save(app.Workspace, m); err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}},

		"workunit.transition": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				TaskID string `json:"task_id"`
				Status string `json:"status"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "workunit.transition: %v", err)
			}
			m, err := workunit.Load(app.Workspace, p.TaskID)
			if err != nil {
				return nil, nil, err
			}
			m, err = m.Transition(workunit.Status(p.Status))
			if err != nil {
				return nil, nil, err
			}
			if err := workunit.Save(app.Workspace, m); err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}},

		"capsule.query": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Topic      string `json:"topic"`
				Scope      string `json:"scope"`
				TaskID     string `json:"task_id"`
				WorkunitID string `json:"workunit_id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "capsule.query: %v", err)
			}
			resolver, err := newConstitutionResolver(app.Workspace)
			if err != nil {
				return nil, nil, err
			}
			c, err := capsule.Build(ctx, resolver, p.Topic, p.Scope, p.TaskID, p.WorkunitID)
			if err != nil {
				return nil, nil, err
			}
			if err := capsule.Persist(app.Workspace, c); err != nil {
				return nil, nil, err
			}
			return c, nil, nil
		}},

		"knowledge.add": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Concept    string   `json:"concept"`
				Content    string   `json:"content"`
				Source     string   `json:"source"`
				Confidence float64  `json:"confidence"`
				Tags       []string `json:"tags"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "knowledge.add: %v", err)
			}
			var atom knowledge.Atom
			writeErr := app.WithWrite(ctx, func(db *sql.DB) error {
				if e := knowledge.EnsureSchema(ctx, db); e != nil {
					return e
				}
				var addErr error
				atom, addErr = knowledge.Add(ctx, db, p.Concept, p.Content, p.Source, p.Confidence, p.Tags)
				return addErr
			})
			if writeErr != nil {
				return nil, nil, writeErr
			}
			return atom, nil, nil
		}},

		"knowledge.promote": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "knowledge.promote: %v", err)
			}
			writeErr := app.WithWrite(ctx, func(db *sql.DB) error {
				if e := knowledge.EnsureSchema(ctx, db); e != nil {
					return e
				}
				return knowledge.Promote(ctx, db, p.ID)
			})
			if writeErr != nil {
				return nil, nil, writeErr
			}
			return map[string]any{"id": p.ID, "status": "promoted"}, nil, nil
		}},

		"plan.init": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "plan.init: %v", err)
			}
			pl := plan.Init(p.ID, p.Title)
			if err := plan.Save(app.Workspace, pl); err != nil {
				return nil, nil, err
			}
			return pl, nil, nil
		}},

		"plan.approve": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "plan.approve: %v", err)
			}
			pl, err := plan.Load(app.Workspace, p.ID)
			if err != nil {
				return nil, nil, err
			}
			pl, err = pl.Approve()
			if err != nil {
				return nil, nil, err
			}
			if err := plan.Save(app.Workspace, pl); err != nil {
				return nil, nil, err
			}
			return pl, nil, nil
		}},

		"plan.update": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				ID            string   `json:"id"`
				Clear         bool     `json:"clear"`
				AddQuestions  []string `json:"add_questions"`
				AddUnknowns   []string `json:"add_unknowns"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "plan.update: %v", err)
			}
			pl, err := plan.Load(app.Workspace, p.ID)
			if err != nil {
				return nil, nil, err
			}
			pl = pl.Apply(plan.Update{ClearQuestions: p.Clear, ClearUnknowns: p.Clear, AddQuestions: p.AddQuestions, AddUnknowns: p.AddUnknowns})
			if err := plan.Save(app.Workspace, pl); err != nil {
				return nil, nil, err
			}
			return pl, nil, nil
		}},

		"plan.check-execute": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "plan.check-execute: %v", err)
			}
			pl, err := plan.Load(app.Workspace, p.ID)
			if err != nil {
				return nil, nil, err
			}
			pl, err = pl.Execute()
			if err != nil {
				return nil, nil, err
			}
			if err := plan.Save(app.Workspace, pl); err != nil {
				return nil, nil, err
			}
			validate.WirePlanGate(pl)
			return pl, nil, nil
		}},

		"trace.export": {Fn: func(params json.RawMessage, s *rpcdispatch.Session) (any, []string, error) {
			var p struct {
				Domain string `json:"domain"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, nil, decerr.New(decerr.KindInvalidArgument, "trace.export: %v", err)
			}
			if p.Domain == "" {
				p.Domain = "todo"
			}
			events, err := app.Broker(p.Domain).Log.All()
			if err != nil {
				return nil, nil, err
			}
			return events, nil, nil
		}},
	}
}
