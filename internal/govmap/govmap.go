// Package govmap is decapod's static, ordered map from dotted CLI/RPC op
// names to canonical constitution doc anchors. It is pure data — exact
// match, then longest-dotted-prefix match, then a fixed fallback — verbatim
// ported from the governing Rust implementation's get_governance_map/
// related_docs, per spec.md §6.
package govmap

import "strings"

// DocRef is one anchor into the embedded constitution corpus.
type DocRef string

var entries = map[string][]DocRef{
	"todo": {"plugins/TODO.md"},
	"todo.add": {
		"plugins/TODO.md#lifecycle-management",
		"specs/INTENT.md",
	},
	"todo.claim": {
		"plugins/TODO.md#claims-and-exclusive-mode",
		"interfaces/CLAIMS.md",
	},
	"todo.done": {
		"plugins/TODO.md#completion-and-verification",
		"specs/SYSTEM.md#proof-doctrine",
	},

	"docs": {
		"core/DECAPOD.md#navigation-charter",
		"interfaces/DOC_RULES.md",
	},
	"docs.show": {
		"core/DECAPOD.md#topic-specific-navigation",
	},

	"validate": {
		"plugins/VERIFY.md",
		"specs/SYSTEM.md#validation-gates",
	},

	"govern.policy": {
		"plugins/POLICY.md",
		"specs/SECURITY.md#policy-gates",
	},
	"govern.health": {
		"plugins/HEALTH.md",
		"interfaces/CLAIMS.md",
	},
	"govern.proof": {
		"specs/SYSTEM.md#proof-doctrine",
		"interfaces/TESTING.md",
	},

	"agent.init": {
		"core/DECAPOD.md#mandatory-session-start-protocol",
		"AGENTS.md",
	},
	"exec": {
		"core/DECAPOD.md#the-thin-waist",
		"interfaces/CONTROL_PLANE.md",
	},
	"fs": {
		"interfaces/STORE_MODEL.md",
		"specs/SYSTEM.md#weights-and-balances",
	},
	"fs.write": {
		"interfaces/STORE_MODEL.md#mutation-rules",
		"core/DECAPOD.md#weights-and-balances",
	},
	"fs.read": {
		"interfaces/STORE_MODEL.md#access-patterns",
	},

	"data.schema": {
		"core/PLUGINS.md",
		"interfaces/STORE_MODEL.md",
	},
	"data.broker": {
		"core/DECAPOD.md#the-thin-waist",
		"interfaces/STORE_MODEL.md",
	},
}

// fallback is returned when neither an exact nor a prefix match exists.
var fallback = []DocRef{"core/DECAPOD.md"}

// Resolve returns the doc anchors governing op: exact match first, then the
// longest dotted prefix of op that has an entry (e.g. "todo.add.x" ->
// "todo.add", "todo.x" -> "todo"), then fallback.
func Resolve(op string) []DocRef {
	if docs, ok := entries[op]; ok {
		return docs
	}
	prefix := op
	for {
		idx := strings.LastIndexByte(prefix, '.')
		if idx <= 0 {
			break
		}
		prefix = prefix[:idx]
		if docs, ok := entries[prefix]; ok {
			return docs
		}
	}
	return fallback
}
