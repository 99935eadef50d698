// Package claimhealth implements decapod's claim/proof health computation:
// the pure function mapping a claim and its proof events to one of four
// health states, and the autonomy tier derived from a rolling window of
// verified claims.
package claimhealth

import (
	"sort"
	"time"
)

// State is a claim's computed health.
type State string

const (
	Asserted    State = "ASSERTED"
	Verified    State = "VERIFIED"
	Contradicted State = "CONTRADICTED"
	Stale       State = "STALE"
)

// Claim is an assertion made by an agent about some subject.
type Claim struct {
	ID         string
	Subject    string
	Kind       string
	Provenance string
	CreatedAt  time.Time
}

// ProofEvent is one observation bearing on a Claim's truth. SLASeconds is
// carried per event (not per Claim) so two surfaces verifying the same
// claim can each define their own staleness window, per spec.md §3's
// ProofEvent row shape.
type ProofEvent struct {
	EventID    string
	ClaimID    string
	TS         time.Time
	Surface    string
	Result     string // pass | fail
	SLASeconds int64
}

// ComputeHealth implements spec.md §4.4's exact rule order:
//  1. no proof events at all -> ASSERTED, "No proof events"
//  2. any surface's latest result is "fail" -> CONTRADICTED, "<surface> failed"
//  3. the latest "pass" is older than its own SLASeconds -> STALE, "expired SLA"
//  4. otherwise -> VERIFIED, "Valid proof"
//
// Ties within a surface are broken by (ts, event_id) ascending, so the last
// event in that order is each surface's "latest".
func ComputeHealth(claim Claim, events []ProofEvent, now time.Time) (State, string) {
	if len(events) == 0 {
		return Asserted, "No proof events"
	}

	sorted := make([]ProofEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].TS.Equal(sorted[j].TS) {
			return sorted[i].TS.Before(sorted[j].TS)
		}
		return sorted[i].EventID < sorted[j].EventID
	})

	latestBySurface := map[string]ProofEvent{}
	for _, ev := range sorted {
		latestBySurface[ev.Surface] = ev
	}

	surfaces := make([]string, 0, len(latestBySurface))
	for s := range latestBySurface {
		surfaces = append(surfaces, s)
	}
	sort.Strings(surfaces)

	for _, s := range surfaces {
		ev := latestBySurface[s]
		if ev.Result == "fail" {
			return Contradicted, ev.Surface + " failed"
		}
	}

	var latestPass *ProofEvent
	for i := range sorted {
		ev := sorted[i]
		if ev.Result == "pass" {
			if latestPass == nil || ev.TS.After(latestPass.TS) || (ev.TS.Equal(latestPass.TS) && ev.EventID > latestPass.EventID) {
				latestPass = &sorted[i]
			}
		}
	}
	if latestPass == nil {
		return Asserted, "No proof events"
	}

	if latestPass.SLASeconds > 0 {
		deadline := latestPass.TS.Add(time.Duration(latestPass.SLASeconds) * time.Second)
		if now.After(deadline) {
			return Stale, "expired SLA"
		}
	}

	return Verified, "Valid proof"
}

// AutonomyTier is the trust tier an agent earns from consecutive verified
// claims.
type AutonomyTier string

const (
	TierUntrusted AutonomyTier = "untrusted"
	TierBasic     AutonomyTier = "basic"
	TierVerified  AutonomyTier = "verified"
	TierCore      AutonomyTier = "core"
)

// DeriveAutonomyTier counts the trailing run of consecutive VERIFIED
// states in chronological order and maps it to a tier.
func DeriveAutonomyTier(statesInOrder []State) AutonomyTier {
	run := 0
	for i := len(statesInOrder) - 1; i >= 0; i-- {
		if statesInOrder[i] != Verified {
			break
		}
		run++
	}
	switch {
	case run >= 10:
		return TierCore
	case run >= 3:
		return TierVerified
	case run >= 1:
		return TierBasic
	default:
		return TierUntrusted
	}
}
