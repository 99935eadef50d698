// Package session implements decapod's password-scoped session acquisition
// and protected-branch interlock, per spec.md §4.10/§6.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"decapod/internal/decerr"
)

// Session is a per-worktree credential handed to an agent on first
// acquisition and thereafter presented via DECAPOD_SESSION_PASSWORD.
type Session struct {
	AgentID  string `json:"agent_id"`
	Password string `json:"password"`
}

// Path returns the generated session artifact path under root.
func Path(root string) string {
	return filepath.Join(root, ".decapod", "generated", "session.json")
}

// Acquire returns the existing session for root if one was already
// generated this worktree, else generates and persists a new one.
func Acquire(root, agentID string) (Session, error) {
	path := Path(root)
	if b, err := os.ReadFile(path); err == nil {
		var s Session
		if err := json.Unmarshal(b, &s); err == nil {
			return s, nil
		}
	}

	pw := make([]byte, 32)
	if _, err := rand.Read(pw); err != nil {
		return Session{}, fmt.Errorf("session: generate password: %w", err)
	}
	s := Session{AgentID: agentID, Password: hex.EncodeToString(pw)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Session{}, fmt.Errorf("session: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return Session{}, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return Session{}, fmt.Errorf("session: write: %w", err)
	}
	return s, nil
}

// Load reads the session persisted for root, without acquiring a new one.
func Load(root string) (Session, error) {
	b, err := os.ReadFile(Path(root))
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("session: decode %s: %w", Path(root), err)
	}
	return s, nil
}

// Verify confirms that password matches the session already acquired for
// root and that it was acquired by actor — spec.md §4.8 item 1's "valid
// password, matches actor". The password comparison is constant-time so a
// caller probing arbitrary strings can't time its way to the real secret.
func Verify(root, actor, password string) error {
	s, err := Load(root)
	if err != nil {
		if os.IsNotExist(err) {
			return decerr.New(decerr.KindSessionInvalid, "SESSION_INVALID: no active session for %s", root)
		}
		return fmt.Errorf("session: verify: %w", err)
	}
	if password == "" || subtle.ConstantTimeCompare([]byte(s.Password), []byte(password)) != 1 {
		return decerr.New(decerr.KindSessionInvalid, "SESSION_INVALID: password does not match the acquired session")
	}
	if s.AgentID != actor {
		return decerr.New(decerr.KindSessionInvalid, "SESSION_INVALID: session was acquired by %q, not %q", s.AgentID, actor)
	}
	return nil
}

// DefaultProtectedBranches is spec.md §9 Open Question 2's resolved
// default.
var DefaultProtectedBranches = map[string]bool{"main": true, "master": true}

// Interlock returns decerr.KindWorkspaceInterlockDirtyProtected when branch
// is protected and the worktree is dirty.
func Interlock(branch string, dirty bool, protectedBranches map[string]bool) error {
	if protectedBranches == nil {
		protectedBranches = DefaultProtectedBranches
	}
	if protectedBranches[branch] && dirty {
		return decerr.New(decerr.KindWorkspaceInterlockDirtyProtected,
			"WORKSPACE_INTERLOCK_DIRTY_PROTECTED: %s is protected and dirty", branch)
	}
	return nil
}
