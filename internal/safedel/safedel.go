// Package safedel executes deletions that the security sentinel has approved.
// It is the only code in the repository allowed to remove user data, and it
// re-checks the kill switch, symlink status, and sentinel approval on every
// call rather than trusting its caller.
package safedel

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/cleanslate-tools/cleanslate/internal/audit"
	"github.com/cleanslate-tools/cleanslate/internal/pathcheck"
	"github.com/cleanslate-tools/cleanslate/internal/sentinel"
)

// KillSwitchEnv disables every deletion in the process when set to an enabled
// value. It is an emergency stop: no flag or policy overrides it.
const KillSwitchEnv = "CLEANSLATE_DISABLE_DELETIONS"

// SafetyError reports a deletion blocked or failed for safety or mechanical
// reasons.
type SafetyError struct {
	Path   string
	Reason string
}

func (e *SafetyError) Error() string {
	if e.Path == "" {
		return "deletion blocked: " + e.Reason
	}
	return fmt.Sprintf("deletion of %s blocked: %s", e.Path, e.Reason)
}

// Guard is the slice of the sentinel the deleter depends on.
type Guard interface {
	GuardDelete(path pathcheck.CanonicalPath, context string, mode sentinel.Mode) error
}

// Recorder is the slice of the audit logger the deleter depends on.
type Recorder interface {
	LogDeletion(path, mode, outcome, reason string)
	LogUserConfirmation(action string, confirmed bool, details map[string]any)
}

// ConfirmFunc asks the user to confirm a permanent deletion of target and
// reports whether they typed the confirmation phrase. The default
// implementation refuses when stdin is not a terminal.
type ConfirmFunc func(target string) bool

// Deleter moves approved targets to trash or deletes them permanently. All
// methods are safe for concurrent use; operations on the same canonical path
// are serialized.
type Deleter struct {
	guard   Guard
	rec     Recorder
	confirm ConfirmFunc

	trashRoot string // override for tests; "" selects the platform default

	mu    sync.Mutex
	locks map[pathcheck.CanonicalPath]*sync.Mutex
}

// Option configures a Deleter.
type Option func(*Deleter)

// WithConfirm replaces the interactive confirmation prompt.
func WithConfirm(fn ConfirmFunc) Option {
	return func(d *Deleter) { d.confirm = fn }
}

// WithTrashRoot redirects trash moves to the given directory, using the
// files/info layout regardless of platform.
func WithTrashRoot(dir string) Option {
	return func(d *Deleter) { d.trashRoot = dir }
}

// New builds a Deleter. guard may be nil, in which case every deletion falls
// back to a bare critical-path check; rec may be nil to drop audit events
// (tests only).
func New(guard Guard, rec Recorder, opts ...Option) *Deleter {
	d := &Deleter{
		guard: guard,
		rec:   rec,
		locks: make(map[pathcheck.CanonicalPath]*sync.Mutex),
	}
	d.confirm = d.promptTyped
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// killSwitchEngaged reads the kill switch from the environment on every call.
func killSwitchEngaged() bool {
	switch strings.ToLower(os.Getenv(KillSwitchEnv)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// lockFor returns the mutex serializing operations on a canonical path.
// Entries are never removed; the table stays small for the life of a run.
func (d *Deleter) lockFor(path pathcheck.CanonicalPath) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[path]
	if !ok {
		l = &sync.Mutex{}
		d.locks[path] = l
	}
	return l
}

func (d *Deleter) logDeletion(path string, mode sentinel.Mode, outcome, reason string) {
	if d.rec != nil {
		d.rec.LogDeletion(path, string(mode), outcome, reason)
	}
}

// Delete runs the full check chain and, if everything passes, removes the
// target. It returns true when the target is gone (or would be gone, for dry
// runs) and false with a nil error when the user cancelled. Checks run in a
// fixed order and each can abort before any filesystem mutation.
func (d *Deleter) Delete(rawPath string, mode sentinel.Mode, dryRun, force bool, context string) (bool, error) {
	// (a) Kill switch, before anything else, dry runs included.
	if killSwitchEngaged() {
		err := &SafetyError{Path: rawPath, Reason: KillSwitchEnv + " is set, all deletions disabled"}
		d.logDeletion(rawPath, mode, "failed", err.Reason)
		return false, err
	}

	// (b) Symlink check on the original path. Canonicalizing first would
	// validate the link target instead of the link itself.
	if pathcheck.IsSymlinkOrReparse(rawPath) {
		err := &SafetyError{Path: rawPath, Reason: "target is a symlink or reparse point"}
		d.logDeletion(rawPath, mode, "failed", err.Reason)
		return false, err
	}

	// (c) Canonicalization, fail closed.
	path, err := pathcheck.Canonicalize(rawPath)
	if err != nil {
		d.logDeletion(rawPath, mode, "failed", err.Error())
		return false, &SafetyError{Path: rawPath, Reason: "path validation failed: " + err.Error()}
	}

	// Guard approval and execution form one critical section per path, so
	// concurrent calls cannot both act on an approval.
	lock := d.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	// (d) Sentinel approval, or the minimal fallback when no sentinel is
	// wired. Denials propagate unchanged; they carry the triggering rule.
	if d.guard != nil {
		if err := d.guard.GuardDelete(path, context, mode); err != nil {
			d.logDeletion(path.String(), mode, "failed", err.Error())
			return false, err
		}
	} else if pathcheck.IsCriticalSystemPath(path) {
		err := &SafetyError{Path: path.String(), Reason: "critical system path (no sentinel available)"}
		d.logDeletion(path.String(), mode, "failed", err.Reason)
		return false, err
	}

	if dryRun {
		d.logDeletion(path.String(), mode, "dry_run", "")
		return true, nil
	}

	if _, err := os.Lstat(path.String()); os.IsNotExist(err) {
		// The goal state already holds.
		d.logDeletion(path.String(), mode, "success", "target already absent")
		return true, nil
	}

	switch mode {
	case sentinel.ModeTrash:
		if err := d.moveToTrash(path); err != nil {
			d.logDeletion(path.String(), mode, "failed", err.Error())
			return false, err
		}
	case sentinel.ModePermanent:
		if !force {
			confirmed := d.confirm(path.String())
			if d.rec != nil {
				d.rec.LogUserConfirmation("permanent_delete", confirmed, map[string]any{
					"path": path.String(),
				})
			}
			if !confirmed {
				d.logDeletion(path.String(), mode, "cancelled", "confirmation not given")
				return false, nil
			}
		}
		if err := os.RemoveAll(path.String()); err != nil {
			d.logDeletion(path.String(), mode, "failed", err.Error())
			return false, &SafetyError{Path: path.String(), Reason: "permanent deletion failed: " + err.Error()}
		}
	default:
		err := &SafetyError{Path: path.String(), Reason: fmt.Sprintf("unknown deletion mode %q", mode)}
		d.logDeletion(path.String(), mode, "failed", err.Reason)
		return false, err
	}

	d.logDeletion(path.String(), mode, "success", "")
	return true, nil
}

// promptTyped is the default confirmation: a literal phrase typed on an
// interactive terminal. Non-interactive sessions must pass force explicitly.
func (d *Deleter) promptTyped(target string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stderr, "permanent deletion requires --force when not attached to a terminal")
		return false
	}
	fmt.Fprintf(os.Stderr, "Permanently delete %s? This cannot be undone.\nType DELETE to confirm: ", target)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "DELETE"
}

var _ Recorder = (*audit.Logger)(nil)
