// Package rpcdispatch implements decapod's RPC dispatcher: a static
// map[string]OpHandler routing table (the teacher's "dynamic dispatch as a
// static routing table" design note), allowed_next_ops gating per session,
// and key-based redaction before params reach the audit trail. Per
// spec.md §4.9.
package rpcdispatch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"decapod/internal/decerr"
)

// Request is one RPC call envelope.
type Request struct {
	ID     string          `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Receipt records which op produced a Response and when, per spec.md §4.9's
// receipt:{op, ts} shape.
type Receipt struct {
	Op string `json:"op"`
	TS string `json:"ts"`
}

// NextOp is one entry of allowed_next_ops: an op the session may now call,
// and why it was unlocked.
type NextOp struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// Response is one RPC reply envelope.
type Response struct {
	ID             string   `json:"id"`
	Success        bool     `json:"success"`
	Result         any      `json:"result,omitempty"`
	Error          string   `json:"error,omitempty"`
	Receipt        *Receipt `json:"receipt,omitempty"`
	AllowedNextOps []NextOp `json:"allowed_next_ops,omitempty"`
}

// Handler processes one op's params and returns a result plus the ops the
// session is allowed to call next.
type Handler func(params json.RawMessage, session *Session) (result any, allowedNext []string, err error)

// OpHandler binds a handler to its own statically-declared allowed-next set,
// used when a handler wants to unconditionally seed next ops regardless of
// what its own Handler returns (e.g. agent.init always seeds context.resolve).
type OpHandler struct {
	Fn          Handler
	AllowedNext []string
}

// Session tracks per-connection dispatch state: which ops the caller may
// invoke next. A nil Allowed set means "no restriction" (pre-session). ID
// is an opaque correlator a caller may set (e.g. to the uuid generated for
// one stdin stream's lifetime) so every audit record emitted by handlers
// run against this Session can be tied back to the same RPC connection;
// dispatch itself never reads or requires it.
type Session struct {
	Allowed map[string]bool
	ID      string
}

func (s *Session) allows(op string) bool {
	if s == nil || s.Allowed == nil {
		return true
	}
	return s.Allowed[op]
}

func (s *Session) seed(ops []string) {
	if s == nil {
		return
	}
	if s.Allowed == nil {
		s.Allowed = map[string]bool{}
	}
	for _, op := range ops {
		s.Allowed[op] = true
	}
}

// Dispatcher routes requests through a static table.
type Dispatcher struct {
	routes map[string]OpHandler
}

// New builds a Dispatcher over the given static routing table.
func New(routes map[string]OpHandler) *Dispatcher {
	return &Dispatcher{routes: routes}
}

// Dispatch looks up req.Op, checks the session's allowed-next gate, runs
// the handler, and seeds the next allowed ops (agent.init always seeds
// context.resolve, per the golden-vector fixture).
func (d *Dispatcher) Dispatch(req Request, session *Session) Response {
	resp := Response{ID: req.ID}

	handler, ok := d.routes[req.Op]
	if !ok {
		resp.Error = fmt.Sprintf("OP_NOT_ALLOWED: unknown op %q", req.Op)
		return resp
	}
	if !session.allows(req.Op) {
		resp.Error = fmt.Sprintf("OP_NOT_ALLOWED: op %q not in allowed_next_ops", req.Op)
		return resp
	}

	result, allowedNext, err := handler.Fn(req.Params, session)
	if err != nil {
		if kind, ok := decerr.KindOf(err); ok {
			resp.Error = fmt.Sprintf("%s: %s", kind, err.Error())
		} else {
			resp.Error = err.Error()
		}
		return resp
	}

	next := append(append([]string{}, handler.AllowedNext...), allowedNext...)
	if req.Op == "agent.init" {
		next = append(next, "context.resolve")
	}
	session.seed(next)

	resp.Success = true
	resp.Result = result
	resp.Receipt = &Receipt{Op: req.Op, TS: time.Now().UTC().Format(time.RFC3339Nano)}
	resp.AllowedNextOps = dedupSortedNextOps(next, req.Op)
	return resp
}

func dedupSortedNextOps(items []string, unlockedBy string) []NextOp {
	seen := map[string]bool{}
	var out []NextOp
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, NextOp{Op: it, Reason: fmt.Sprintf("unlocked by %s", unlockedBy)})
		}
	}
	return out
}

// sensitiveSubstrings lists the case-insensitive key substrings that must be
// redacted before persistence.
var sensitiveSubstrings = []string{"password", "secret", "token"}

// Redact returns a copy of params with any key matching "password",
// "secret", "token", or a "_password"/"_secret" suffix replaced by
// "[REDACTED]". The original map is used for dispatch only and must never
// be what reaches the audit trail.
func Redact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		lower := strings.ToLower(k)
		redact := false
		for _, substr := range sensitiveSubstrings {
			if strings.Contains(lower, substr) {
				redact = true
				break
			}
		}
		if redact {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
