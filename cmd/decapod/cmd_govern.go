package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"decapod/internal/capsule"
	"decapod/internal/claimhealth"
	"decapod/internal/config"
	"decapod/internal/constitution"
	"decapod/internal/decerr"
	"decapod/internal/eventlog"
	"decapod/internal/plan"
	"decapod/internal/policyindex"
	"decapod/internal/validate"
	"decapod/internal/workunit"
)

var governCmd = &cobra.Command{
	Use:   "govern",
	Short: "Plan, workunit, and capsule governance operations",
}

var governPlanCmd = &cobra.Command{Use: "plan", Short: "Plan lifecycle: draft -> approved -> executing -> closed"}
var governWorkunitCmd = &cobra.Command{Use: "workunit", Short: "Workunit manifest lifecycle"}
var governCapsuleCmd = &cobra.Command{Use: "capsule", Short: "Context Capsule builder"}
var governHealthCmd = &cobra.Command{Use: "health", Short: "Claim/proof health: assert, record proof, compute state"}

var (
	planTitle     string
	planQuestions []string
	planUnknowns  []string
	planClear     bool

	workunitIntentRef string
	workunitProofPlan []string
	workunitProofRef  string
	workunitNext      string

	capsuleTopic      string
	capsuleScope      string
	capsuleTaskID     string
	capsuleWorkunitID string

	healthClaimSubject    string
	healthClaimKind       string
	healthClaimProvenance string

	healthProofSurface    string
	healthProofResult     string
	healthProofSLASeconds int64

	riskApprover string
	riskScope    string
	riskCmd      string
	riskPath     string
)

var governPlanInitCmd = &cobra.Command{
	Use:   "init <plan-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Create a new draft plan",
	RunE:  runGovernPlanInit,
}

var governPlanApproveCmd = &cobra.Command{
	Use:   "approve <plan-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Approve a draft plan",
	RunE:  runGovernPlanApprove,
}

var governPlanUpdateCmd = &cobra.Command{
	Use:   "update <plan-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Add or clear a plan's open questions/unknowns",
	RunE:  runGovernPlanUpdate,
}

var governPlanCheckExecuteCmd = &cobra.Command{
	Use:   "check-execute <plan-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Transition an approved plan to executing, gated on open questions/unknowns and risk approval",
	RunE:  runGovernPlanCheckExecute,
}

var governPlanApproveRiskCmd = &cobra.Command{
	Use:   "approve-risk <cmd> <path>",
	Args:  cobra.ExactArgs(2),
	Short: "Record approval for a risky command/path pair, per the configured risk map",
	RunE:  runGovernPlanApproveRisk,
}

var governWorkunitInitCmd = &cobra.Command{
	Use:   "init <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Create a new draft workunit manifest",
	RunE:  runGovernWorkunitInit,
}

var governWorkunitSetProofPlanCmd = &cobra.Command{
	Use:   "set-proof-plan <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Set a manifest's planned proof obligations",
	RunE:  runGovernWorkunitSetProofPlan,
}

var governWorkunitRecordProofCmd = &cobra.Command{
	Use:   "record-proof <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Append a proof result reference to a manifest",
	RunE:  runGovernWorkunitRecordProof,
}

var governWorkunitTransitionCmd = &cobra.Command{
	Use:   "transition <task-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Move a manifest forward one lifecycle state",
	RunE:  runGovernWorkunitTransition,
}

var governCapsuleQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Build and persist a Context Capsule for a (topic, scope) pair",
	RunE:  runGovernCapsuleQuery,
}

var governHealthAssertCmd = &cobra.Command{
	Use:   "assert <claim-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Assert a new claim",
	RunE:  runGovernHealthAssert,
}

var governHealthRecordProofCmd = &cobra.Command{
	Use:   "record-proof <claim-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Record a proof event against a claim",
	RunE:  runGovernHealthRecordProof,
}

var governHealthShowCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Args:  cobra.ExactArgs(1),
	Short: "Compute a claim's current health state",
	RunE:  runGovernHealthShow,
}

func init() {
	governPlanInitCmd.Flags().StringVar(&planTitle, "title", "", "Plan title (required)")
	governPlanInitCmd.MarkFlagRequired("title")

	governPlanUpdateCmd.Flags().StringArrayVar(&planQuestions, "add-question", nil, "Open question to add")
	governPlanUpdateCmd.Flags().StringArrayVar(&planUnknowns, "add-unknown", nil, "Open unknown to add")
	governPlanUpdateCmd.Flags().BoolVar(&planClear, "clear", false, "Clear all open questions and unknowns before adding")

	governWorkunitInitCmd.Flags().StringVar(&workunitIntentRef, "intent-ref", "", "Intent document reference (required)")
	governWorkunitInitCmd.MarkFlagRequired("intent-ref")

	governWorkunitSetProofPlanCmd.Flags().StringArrayVar(&workunitProofPlan, "obligation", nil, "Proof obligation reference")

	governWorkunitRecordProofCmd.Flags().StringVar(&workunitProofRef, "ref", "", "Proof result reference (required)")
	governWorkunitRecordProofCmd.MarkFlagRequired("ref")

	governWorkunitTransitionCmd.Flags().StringVar(&workunitNext, "status", "", "Next status: claimed|executing|verified (required)")
	governWorkunitTransitionCmd.MarkFlagRequired("status")

	governPlanCheckExecuteCmd.Flags().StringVar(&riskCmd, "risk-cmd", "", "Command name to risk-classify before executing (e.g. workunit.delete)")
	governPlanCheckExecuteCmd.Flags().StringVar(&riskPath, "risk-path", "", "Path the risky command acts on")

	governPlanApproveRiskCmd.Flags().StringVar(&riskApprover, "approver", "", "Actor granting the approval (required)")
	governPlanApproveRiskCmd.Flags().StringVar(&riskScope, "scope", string(plan.ScopeLocal), "Approval scope: local|global")
	governPlanApproveRiskCmd.MarkFlagRequired("approver")

	governCapsuleQueryCmd.Flags().StringVar(&capsuleTopic, "topic", "", "Governance-map topic (required)")
	governCapsuleQueryCmd.Flags().StringVar(&capsuleScope, "scope", "", "Requested scope (required)")
	governCapsuleQueryCmd.Flags().StringVar(&capsuleTaskID, "task", "", "Associated task ID")
	governCapsuleQueryCmd.Flags().StringVar(&capsuleWorkunitID, "workunit", "", "Associated workunit ID")
	governCapsuleQueryCmd.MarkFlagRequired("topic")
	governCapsuleQueryCmd.MarkFlagRequired("scope")

	governHealthAssertCmd.Flags().StringVar(&healthClaimSubject, "subject", "", "Claim subject (required)")
	governHealthAssertCmd.Flags().StringVar(&healthClaimKind, "kind", "", "Claim kind (required)")
	governHealthAssertCmd.Flags().StringVar(&healthClaimProvenance, "provenance", "", "Claim provenance")
	governHealthAssertCmd.MarkFlagRequired("subject")
	governHealthAssertCmd.MarkFlagRequired("kind")

	governHealthRecordProofCmd.Flags().StringVar(&healthProofSurface, "surface", "", "Verification surface (required)")
	governHealthRecordProofCmd.Flags().StringVar(&healthProofResult, "result", "", "pass|fail (required)")
	governHealthRecordProofCmd.Flags().Int64Var(&healthProofSLASeconds, "sla-seconds", 0, "Seconds this proof stays valid before STALE (0 = no SLA)")
	governHealthRecordProofCmd.MarkFlagRequired("surface")
	governHealthRecordProofCmd.MarkFlagRequired("result")

	governPlanCmd.AddCommand(governPlanInitCmd, governPlanApproveCmd, governPlanUpdateCmd, governPlanCheckExecuteCmd, governPlanApproveRiskCmd)
	governWorkunitCmd.AddCommand(governWorkunitInitCmd, governWorkunitSetProofPlanCmd, governWorkunitRecordProofCmd, governWorkunitTransitionCmd)
	governCapsuleCmd.AddCommand(governCapsuleQueryCmd)
	governHealthCmd.AddCommand(governHealthAssertCmd, governHealthRecordProofCmd, governHealthShowCmd)
	governCmd.AddCommand(governPlanCmd, governWorkunitCmd, governCapsuleCmd, governHealthCmd)
}

func runGovernPlanInit(cmd *cobra.Command, args []string) error {
	p := plan.Init(args[0], planTitle)
	if err := plan.Save(app.Workspace, p); err != nil {
		return err
	}
	return printResult(cmd, app.Format, p, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s created (draft)\n", p.ID)
	})
}

func runGovernPlanApprove(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}
	p, err = p.Approve()
	if err != nil {
		return err
	}
	if err := plan.Save(app.Workspace, p); err != nil {
		return err
	}
	return printResult(cmd, app.Format, p, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s approved\n", p.ID)
	})
}

func runGovernPlanUpdate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}
	p = p.Apply(plan.Update{
		ClearQuestions: planClear,
		ClearUnknowns:  planClear,
		AddQuestions:   planQuestions,
		AddUnknowns:    planUnknowns,
	})
	if err := plan.Save(app.Workspace, p); err != nil {
		return err
	}
	return printResult(cmd, app.Format, p, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s updated (%d open questions, %d open unknowns)\n", p.ID, len(p.OpenQuestions), len(p.OpenUnknowns))
	})
}

// riskMapFromConfig converts the workspace config's risk zones into the
// plan.RiskMap EvalRisk consults, preserving config.yaml's declared order so
// plan.EvalRisk's longest-prefix tie-break still applies among zones of
// equal prefix length.
func riskMapFromConfig(cfg config.RiskConfig) plan.RiskMap {
	zones := make([]plan.RiskZone, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zones = append(zones, plan.RiskZone{
			PathPrefix: z.PathPrefix,
			LevelValue: plan.Level(strings.ToUpper(z.Level)),
			Rules:      []string{"config-zone:" + z.PathPrefix},
		})
	}
	return plan.RiskMap{Zones: zones}
}

// riskApprovalLevels are the risk levels that require a recorded approval
// before a plan may move to executing.
var riskApprovalLevels = map[plan.Level]bool{
	plan.LevelHigh:     true,
	plan.LevelCritical: true,
}

func runGovernPlanCheckExecute(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}

	if riskCmd != "" {
		level, _ := plan.EvalRisk(riskCmd, riskPath, riskMapFromConfig(app.Cfg.Risk))
		if riskApprovalLevels[level] {
			approvals, err := plan.LoadApprovals(app.Workspace)
			if err != nil {
				return err
			}
			if err := approvals.CheckApproval(riskCmd, riskPath, plan.ScopeLocal); err != nil {
				if checkErr := approvals.CheckApproval(riskCmd, riskPath, plan.ScopeGlobal); checkErr != nil {
					return decerr.New(decerr.KindRiskUnapproved, "plan %s: %s on %s is %s risk and unapproved", p.ID, riskCmd, riskPath, level)
				}
			}
		}
	}

	p, err = p.Execute()
	if err != nil {
		return err
	}
	if err := plan.Save(app.Workspace, p); err != nil {
		return err
	}
	validate.WirePlanGate(p)
	return printResult(cmd, app.Format, p, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s executing\n", p.ID)
	})
}

func runGovernPlanApproveRisk(cmd *cobra.Command, args []string) error {
	cmdName, path := args[0], args[1]
	approvals, err := plan.LoadApprovals(app.Workspace)
	if err != nil {
		return err
	}
	scope := plan.Scope(riskScope)
	if scope != plan.ScopeLocal && scope != plan.ScopeGlobal {
		return decerr.New(decerr.KindInvalidArgument, "approve-risk: scope must be local or global, got %q", riskScope)
	}
	approvals.ApproveAction(cmdName, path, riskApprover, scope, time.Now().UTC().Format(time.RFC3339))
	if err := plan.SaveApprovals(app.Workspace, approvals); err != nil {
		return err
	}
	return printResult(cmd, app.Format, approvals, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "approved %s on %s (%s) by %s\n", cmdName, path, scope, riskApprover)
	})
}

func runGovernWorkunitInit(cmd *cobra.Command, args []string) error {
	m := workunit.Init(args[0], workunitIntentRef)
	if err := workunit.Save(app.Workspace, m); err != nil {
		return err
	}
	return printResult(cmd, app.Format, m, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workunit %s created (draft)\n", m.TaskID)
	})
}

func runGovernWorkunitSetProofPlan(cmd *cobra.Command, args []string) error {
	m, err := workunit.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}
	m, err = m.SetProofPlan(workunitProofPlan)
	if err != nil {
		return err
	}
	if err := workunit.Save(app.Workspace, m); err != nil {
		return err
	}
	return printResult(cmd, app.Format, m, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workunit %s proof plan set (%d obligations)\n", m.TaskID, len(m.ProofPlan))
	})
}

func runGovernWorkunitRecordProof(cmd *cobra.Command, args []string) error {
	m, err := workunit.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}
	m = m.RecordProof(workunitProofRef)
	if err := workunit.Save(app.Workspace, m); err != nil {
		return err
	}
	return printResult(cmd, app.Format, m, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workunit %s recorded proof %s\n", m.TaskID, workunitProofRef)
	})
}

func runGovernWorkunitTransition(cmd *cobra.Command, args []string) error {
	m, err := workunit.Load(app.Workspace, args[0])
	if err != nil {
		return err
	}
	m, err = m.Transition(workunit.Status(workunitNext))
	if err != nil {
		return err
	}
	if err := workunit.Save(app.Workspace, m); err != nil {
		return err
	}
	return printResult(cmd, app.Format, m, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "workunit %s -> %s\n", m.TaskID, m.Status)
	})
}

// constitutionResolver backs capsule.ScopeResolver with the embedded
// constitution corpus and the generated policy index (spec.md §6's
// .decapod/generated/policy/context_capsule_policy.json).
type constitutionResolver struct {
	policy *policyindex.Index
}

func newConstitutionResolver(workspace string) (*constitutionResolver, error) {
	idx, err := policyindex.Load(workspace)
	if err != nil {
		return nil, err
	}
	return &constitutionResolver{policy: idx}, nil
}

func (r *constitutionResolver) AllowScope(topic, scope string) bool {
	return r.policy.AllowScope(topic, scope)
}

func (r *constitutionResolver) ReadSource(path string) (string, error) {
	return constitution.Read(path)
}

func runGovernCapsuleQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resolver, err := newConstitutionResolver(app.Workspace)
	if err != nil {
		return fmt.Errorf("govern capsule query: load policy: %w", err)
	}

	c, err := capsule.Build(ctx, resolver, capsuleTopic, capsuleScope, capsuleTaskID, capsuleWorkunitID)
	if err != nil {
		return err
	}
	if err := capsule.Persist(app.Workspace, c); err != nil {
		return fmt.Errorf("govern capsule query: persist: %w", err)
	}

	return printResult(cmd, app.Format, c, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "capsule %s built (%d sources)\n", c.CapsuleHash, len(c.Sources))
	})
}

func runGovernHealthAssert(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	claim := claimhealth.Claim{
		ID:         args[0],
		Subject:    healthClaimSubject,
		Kind:       healthClaimKind,
		Provenance: healthClaimProvenance,
		CreatedAt:  time.Now(),
	}
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if err := claimhealth.EnsureSchema(ctx, db); err != nil {
			return err
		}
		return claimhealth.SaveClaim(ctx, db, claim)
	})
	if err != nil {
		return fmt.Errorf("govern health assert: %w", err)
	}
	return printResult(cmd, app.Format, claim, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "asserted claim %s: %s (%s)\n", claim.ID, claim.Subject, claim.Kind)
	})
}

func runGovernHealthRecordProof(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ev := claimhealth.ProofEvent{
		EventID:    eventlog.NewEventID(),
		ClaimID:    args[0],
		TS:         time.Now(),
		Surface:    healthProofSurface,
		Result:     healthProofResult,
		SLASeconds: healthProofSLASeconds,
	}
	err := app.WithWrite(ctx, func(db *sql.DB) error {
		if _, err := claimhealth.LoadClaim(ctx, db, ev.ClaimID); err != nil {
			return err
		}
		return claimhealth.RecordProofEvent(ctx, db, ev)
	})
	if err != nil {
		return fmt.Errorf("govern health record-proof: %w", err)
	}
	return printResult(cmd, app.Format, ev, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "recorded proof %s on claim %s: %s=%s\n", ev.EventID, ev.ClaimID, ev.Surface, ev.Result)
	})
}

// healthReport is runGovernHealthShow's printed result: a claim's computed
// state alongside the reasoning message ComputeHealth returned for it.
type healthReport struct {
	Claim   claimhealth.Claim        `json:"claim"`
	Events  []claimhealth.ProofEvent `json:"events"`
	State   claimhealth.State        `json:"state"`
	Message string                   `json:"message"`
}

func runGovernHealthShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var report healthReport
	err := app.WithRead(ctx, func(db *sql.DB) error {
		claim, err := claimhealth.LoadClaim(ctx, db, args[0])
		if err != nil {
			return err
		}
		events, err := claimhealth.LoadProofEvents(ctx, db, args[0])
		if err != nil {
			return err
		}
		state, msg := claimhealth.ComputeHealth(claim, events, time.Now())
		report = healthReport{Claim: claim, Events: events, State: state, Message: msg}
		return nil
	})
	if err != nil {
		return fmt.Errorf("govern health show: %w", err)
	}
	return printResult(cmd, app.Format, report, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "claim %s: %s (%s)\n", report.Claim.ID, report.State, report.Message)
	})
}
