// Package gitutil wraps the git CLI as decapod's external collaborator for
// worktree status, per spec.md §1/§4.10. Modeled on
// cmd/nerd/chat/helpers.go's exec.Command("git", ...) usage.
package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// CurrentBranch runs `git rev-parse --abbrev-ref HEAD` in dir.
func CurrentBranch(dir string) (string, error) {
	out, err := run(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsDirty reports whether `git status --porcelain` has any output.
func IsDirty(dir string) (bool, error) {
	out, err := run(dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// DirtyFileCount counts the lines of `git status --porcelain` output.
func DirtyFileCount(dir string) (int, error) {
	out, err := run(dir, "status", "--porcelain")
	if err != nil {
		return 0, err
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return 0, nil
	}
	return len(strings.Split(trimmed, "\n")), nil
}

// ChangedFiles lists paths modified relative to HEAD: unstaged, staged, and
// untracked, via `git status --porcelain` name parsing. Used by `release
// check`'s schema/interface changelog policy.
func ChangedFiles(dir string) ([]string, error) {
	out, err := run(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	// Only trailing newlines are trimmed: a leading space is part of the
	// first line's two-column status code (" M a.txt").
	trimmed := strings.TrimRight(out, "\n")
	if strings.TrimSpace(trimmed) == "" {
		return nil, nil
	}
	var files []string
	for _, line := range strings.Split(trimmed, "\n") {
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files, nil
}

// HasMergeMarkers reports whether any tracked file under dir still
// contains an unresolved conflict marker, via `git diff --check`.
func HasMergeMarkers(dir string) (bool, error) {
	out, err := run(dir, "diff", "--check")
	if err != nil {
		// git diff --check exits non-zero when markers are found; that is
		// the positive signal, not a failure to run git.
		if out != "" {
			return true, nil
		}
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stdout.Len() > 0 {
			return stdout.String(), nil
		}
		return "", fmt.Errorf("gitutil: git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}
