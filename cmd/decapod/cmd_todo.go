package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"decapod/internal/todostore"
	"decapod/internal/todostore/agentdir"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Task entity: add, claim, verify, and track work",
}

var (
	todoTitle    string
	todoPriority string
	todoTags     []string
	todoOwner    string
	todoParent   string
	todoStatus   string
	todoNotes    string
)

var todoAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task",
	RunE:  runTodoAdd,
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by status",
	RunE:  runTodoList,
}

var todoGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Get a task by ID",
	RunE:  runTodoGet,
}

var todoDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Mark a task done",
	RunE:  runTodoTransition(todostore.StatusDone),
}

var todoArchiveCmd = &cobra.Command{
	Use:   "archive <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Archive a task",
	RunE:  runTodoTransition(todostore.StatusArchived),
}

var todoClaimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Claim a task for the acting agent",
	RunE:  runTodoClaim,
}

var todoReleaseCmd = &cobra.Command{
	Use:   "release <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Release a claimed task back to open",
	RunE:  runTodoRelease,
}

var todoCommentCmd = &cobra.Command{
	Use:   "comment <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Comment on a task",
	RunE:  runTodoComment,
}

var todoEditCmd = &cobra.Command{
	Use:   "edit <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Edit a task's title/priority/tags",
	RunE:  runTodoEdit,
}

var todoRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the tasks table from the event log",
	RunE:  runTodoRebuild,
}

var todoCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the distinct tags in use across tasks",
	RunE:  runTodoCategories,
}

var todoRegisterAgentCmd = &cobra.Command{
	Use:   "register-agent <agent-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Register an agent as a workspace participant",
	RunE:  runTodoRegisterAgent,
}

var todoOwnershipsCmd = &cobra.Command{
	Use:   "ownerships <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "List ownership rows for a task (alias of list-owners)",
	RunE:  runTodoListOwners,
}

var todoHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat <agent-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Record a liveness heartbeat for an agent",
	RunE:  runTodoHeartbeat,
}

var todoPresenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "List agent presence, derived from heartbeat recency",
	RunE:  runTodoPresence,
}

var todoHandoffCmd = &cobra.Command{
	Use:   "handoff <task-id> <from-agent> <to-agent>",
	Args:  cobra.ExactArgs(3),
	Short: "Move every ownership row for a task from one agent to another",
	RunE:  runTodoHandoff,
}

var todoAddOwnerCmd = &cobra.Command{
	Use:   "add-owner <task-id> <agent-id> <role>",
	Args:  cobra.ExactArgs(3),
	Short: "Add an ownership role to a task",
	RunE:  runTodoAddOwner,
}

var todoRemoveOwnerCmd = &cobra.Command{
	Use:   "remove-owner <task-id> <agent-id> <role>",
	Args:  cobra.ExactArgs(3),
	Short: "Remove an ownership role from a task",
	RunE:  runTodoRemoveOwner,
}

var todoListOwnersCmd = &cobra.Command{
	Use:   "list-owners <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "List ownership rows for a task",
	RunE:  runTodoListOwners,
}

var todoRegisterExpertiseCmd = &cobra.Command{
	Use:   "register-expertise <agent-id> <tag>",
	Args:  cobra.ExactArgs(2),
	Short: "Tag an agent with a skill/topic",
	RunE:  runTodoRegisterExpertise,
}

var todoExpertiseCmd = &cobra.Command{
	Use:   "expertise <agent-id>",
	Args:  cobra.ExactArgs(1),
	Short: "List an agent's registered expertise tags",
	RunE:  runTodoExpertise,
}

func init() {
	todoAddCmd.Flags().StringVar(&todoTitle, "title", "", "Task title (required)")
	todoAddCmd.Flags().StringVar(&todoPriority, "priority", "", "Task priority")
	todoAddCmd.Flags().StringSliceVar(&todoTags, "tags", nil, "Comma-separated tags")
	todoAddCmd.Flags().StringVar(&todoParent, "parent", "", "Parent task ID")
	todoAddCmd.MarkFlagRequired("title")

	todoListCmd.Flags().StringVar(&todoStatus, "status", "", "Filter by status (open|claimed|done|archived)")

	todoClaimCmd.Flags().StringVar(&todoOwner, "owner", "", "Owner to claim as (default: acting agent)")

	todoCommentCmd.Flags().StringVar(&todoNotes, "body", "", "Comment body (required)")
	todoCommentCmd.MarkFlagRequired("body")

	todoEditCmd.Flags().StringVar(&todoTitle, "title", "", "New title")
	todoEditCmd.Flags().StringVar(&todoPriority, "priority", "", "New priority")
	todoEditCmd.Flags().StringSliceVar(&todoTags, "tags", nil, "New tags (replaces existing)")

	todoCmd.AddCommand(
		todoAddCmd, todoListCmd, todoGetCmd, todoDoneCmd, todoArchiveCmd,
		todoCommentCmd, todoEditCmd, todoClaimCmd, todoReleaseCmd, todoRebuildCmd,
		todoCategoriesCmd, todoRegisterAgentCmd, todoOwnershipsCmd, todoHeartbeatCmd,
		todoPresenceCmd, todoHandoffCmd, todoAddOwnerCmd, todoRemoveOwnerCmd,
		todoListOwnersCmd, todoRegisterExpertiseCmd, todoExpertiseCmd,
	)
}

func todoStore() *todostore.Store {
	return &todostore.Store{Broker: app.Broker("todo")}
}

func runTodoAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var task todostore.Task
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		var err error
		task, err = todoStore().AddTask(ctx, db, app.Actor, todostore.Task{
			Title: todoTitle, Priority: todoPriority, Tags: todoTags, Parent: todoParent,
		})
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, task, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "added task %s: %s\n", task.ID, task.Title)
	})
}

func runTodoList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var tasks []todostore.Task
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		tasks, err = todostore.ListTasks(ctx, db, todostore.Status(todoStatus))
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, tasks, func() {
		for _, t := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Status, t.Title)
		}
	})
}

func runTodoGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var task todostore.Task
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		task, err = todostore.GetTask(ctx, db, args[0])
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, task, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\towner=%s\n", task.ID, task.Status, task.Title, task.Owner)
	})
}

func runTodoTransition(status todostore.Status) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		err := app.WithWrite(ctx, func(db *sql.DB) error {
			return todoStore().UpdateStatus(ctx, db, app.Actor, args[0], status)
		})
		if err != nil {
			return err
		}
		return printResult(cmd, app.Format, map[string]any{"id": args[0], "status": status}, func() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], status)
		})
	}
}

func runTodoClaim(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	owner := todoOwner
	if owner == "" {
		owner = app.Actor
	}
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return todoStore().Claim(ctx, db, app.Actor, args[0], owner)
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"id": args[0], "owner": owner}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s claimed by %s\n", args[0], owner)
	})
}

func runTodoRelease(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return todoStore().Release(ctx, db, app.Actor, args[0])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"id": args[0]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s released\n", args[0])
	})
}

func runTodoComment(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var comment todostore.Comment
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := todostore.EnsureCommentSchema(ctx, db); err != nil {
			return err
		}
		var err error
		comment, err = todoStore().AddComment(ctx, db, app.Actor, args[0], todoNotes)
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, comment, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", comment.ID, comment.Body)
	})
}

func runTodoEdit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	fields := todostore.EditFields{}
	if cmd.Flags().Changed("title") {
		fields.Title = &todoTitle
	}
	if cmd.Flags().Changed("priority") {
		fields.Priority = &todoPriority
	}
	if cmd.Flags().Changed("tags") {
		fields.Tags = &todoTags
	}

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return todoStore().EditTask(ctx, db, app.Actor, args[0], fields)
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"id": args[0]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s edited\n", args[0])
	})
}

func runTodoRebuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var n int
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		var err error
		n, err = todostore.RebuildFromEvents(ctx, db, app.EventsPath("todo"))
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"replayed": n}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d tasks from event log\n", n)
	})
}

func runTodoCategories(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var cats []string
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		cats, err = todostore.Categories(ctx, db)
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, cats, func() {
		for _, c := range cats {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
	})
}

func runTodoRegisterAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := agentdir.EnsureSchema(ctx, db); err != nil {
			return err
		}
		return agentdir.RegisterAgent(ctx, db, args[0])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"agent_id": args[0]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
	})
}

func runTodoHeartbeat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return agentdir.Heartbeat(ctx, db, args[0])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"agent_id": args[0]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "heartbeat recorded for %s\n", args[0])
	})
}

func runTodoPresence(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var agents []agentdir.Agent
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		agents, err = agentdir.Presence(ctx, db, 5*time.Minute)
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, agents, func() {
		for _, a := range agents {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a.AgentID, a.Status)
		}
	})
}

func runTodoHandoff(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return agentdir.Handoff(ctx, db, args[0], args[1], args[2])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"task_id": args[0], "from": args[1], "to": args[2]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s handed off from %s to %s\n", args[0], args[1], args[2])
	})
}

func runTodoAddOwner(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return agentdir.AddOwner(ctx, db, args[0], args[1], args[2])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"task_id": args[0], "agent_id": args[1], "role": args[2]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "added owner %s (%s) on %s\n", args[1], args[2], args[0])
	})
}

func runTodoRemoveOwner(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return agentdir.RemoveOwner(ctx, db, args[0], args[1], args[2])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"task_id": args[0], "agent_id": args[1], "role": args[2]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "removed owner %s (%s) from %s\n", args[1], args[2], args[0])
	})
}

func runTodoListOwners(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var owners []agentdir.Ownership
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		owners, err = agentdir.ListOwners(ctx, db, args[0])
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, owners, func() {
		for _, o := range owners {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", o.AgentID, o.Role)
		}
	})
}

func runTodoRegisterExpertise(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err := app.WithWrite(ctx, func(db *sql.DB) error {
		return agentdir.RegisterExpertise(ctx, db, args[0], args[1])
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, map[string]any{"agent_id": args[0], "tag": args[1]}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s tagged with %s\n", args[0], args[1])
	})
}

func runTodoExpertise(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var tags []string
	err := app.WithRead(ctx, func(db *sql.DB) error {
		var err error
		tags, err = agentdir.Expertise(ctx, db, args[0])
		return err
	})
	if err != nil {
		return err
	}
	return printResult(cmd, app.Format, tags, func() {
		for _, t := range tags {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
	})
}
