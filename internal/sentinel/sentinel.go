// Package sentinel is the enforcement point for destructive operations.
// Every deletion request passes through GuardDelete, which consults the
// security policy and the path validator and denies on any ambiguity,
// missing policy, or internal error. No destructive call may bypass it.
package sentinel

import (
	"fmt"
	"log/slog"

	"github.com/cleanslate-tools/cleanslate/internal/audit"
	"github.com/cleanslate-tools/cleanslate/internal/pathcheck"
	"github.com/cleanslate-tools/cleanslate/internal/policy"
)

// Mode selects how an approved deletion will be executed.
type Mode string

const (
	ModeTrash     Mode = "trash"
	ModePermanent Mode = "permanent"
)

// State is the sentinel lifecycle. Active and Failed are terminal for the
// process: a failed sentinel means startup must abort, and there is no
// re-initialization.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// EventLogger is the slice of the audit logger the sentinel needs.
type EventLogger interface {
	LogEvent(eventType audit.EventType, severity audit.Severity, message string, details map[string]any)
}

// Sentinel guards destructive operations against a loaded, immutable policy.
// Construct with New; the zero value denies everything.
type Sentinel struct {
	policy   *policy.Policy
	log      EventLogger
	platform string
	state    State
}

// New initializes a sentinel over the given policy and runs the startup
// self-test: guarding a delete of the user's home directory must itself be
// denied. If that denial does not happen the denial path has regressed, the
// sentinel enters StateFailed, and the caller must abort startup.
func New(p *policy.Policy, log EventLogger) (*Sentinel, error) {
	s := &Sentinel{
		policy:   p,
		log:      log,
		platform: pathcheck.Platform(),
		state:    StateInitializing,
	}
	if p == nil {
		s.state = StateFailed
		return nil, &policy.PolicyError{Reason: "sentinel requires a loaded policy"}
	}

	if err := s.selfTest(); err != nil {
		s.state = StateFailed
		s.logEvent(audit.EventSecurityViolation, audit.SeverityCritical,
			"Sentinel self-test FAILED, startup must abort", map[string]any{
				"error":       err.Error(),
				"policy_hash": p.Hash(),
			})
		return nil, err
	}

	s.state = StateActive
	slog.Info("security sentinel active",
		"policy_hash", p.Hash(), "policy_version", p.Version, "platform", s.platform)
	return s, nil
}

// selfTest is a deliberate canary: the home directory must always be denied.
func (s *Sentinel) selfTest() error {
	home, err := pathcheck.Canonicalize("~")
	if err != nil {
		return &policy.PolicyError{Reason: "self-test cannot resolve home directory: " + err.Error()}
	}

	err = s.guard(home, "general", ModeTrash)
	if err == nil {
		return &policy.PolicyError{Reason: "self-test failed: deleting the home directory was not denied"}
	}
	if _, ok := err.(*policy.PolicyError); !ok {
		return &policy.PolicyError{Reason: "self-test failed with unexpected error: " + err.Error()}
	}
	return nil
}

// State returns the sentinel lifecycle state.
func (s *Sentinel) State() State { return s.state }

// PolicyHash returns the hash of the policy in effect, or "" before
// initialization completes.
func (s *Sentinel) PolicyHash() string {
	if s.policy == nil {
		return ""
	}
	return s.policy.Hash()
}

func (s *Sentinel) logEvent(eventType audit.EventType, severity audit.Severity, message string, details map[string]any) {
	if s.log != nil {
		s.log.LogEvent(eventType, severity, message, details)
	}
}

// GuardDelete approves or denies a deletion request. It returns nil only
// when every policy check passes; the returned error identifies the specific
// rule that triggered. It never touches the filesystem beyond reading
// policy roots, and both outcomes are logged.
func (s *Sentinel) GuardDelete(path pathcheck.CanonicalPath, context string, mode Mode) error {
	if s.state != StateActive {
		err := &policy.PolicyError{Reason: fmt.Sprintf("sentinel is %s, refusing all operations", s.state)}
		s.logDenial(path, context, mode, "sentinel_state", err)
		return err
	}

	if err := s.guard(path, context, mode); err != nil {
		return err
	}

	if s.policy.LogPolicyDecisions() {
		s.logEvent(audit.EventPolicyDecision, audit.SeverityInfo,
			"Security approval granted: "+path.String(), map[string]any{
				"path":        path.String(),
				"context":     context,
				"mode":        string(mode),
				"platform":    s.platform,
				"decision":    "approve",
				"policy_hash": s.policy.Hash(),
			})
	}
	return nil
}

// guard runs the denial checks in their fixed order; first match wins.
func (s *Sentinel) guard(path pathcheck.CanonicalPath, context string, mode Mode) error {
	if path == "" {
		err := &policy.PolicyError{Reason: "empty canonical path"}
		s.logDenial(path, context, mode, "validation", err)
		return err
	}

	// 1. Platform deny patterns.
	if rule, matched := s.matchDenyPattern(path); matched {
		err := &policy.PolicyError{Reason: fmt.Sprintf(
			"path %s matches deny pattern %q for platform %s", path, rule, s.platform)}
		s.logDenial(path, context, mode, "deny_pattern:"+rule, err)
		return err
	}

	// 2. Critical system paths, unless the policy explicitly opts out.
	if s.policy.FailOnCriticalPaths() && pathcheck.IsCriticalSystemPath(path) {
		err := &policy.PolicyError{Reason: "critical system path deletion denied: " + path.String()}
		s.logDenial(path, context, mode, "critical_path", err)
		return err
	}

	// 3. Trash-first.
	if mode == ModePermanent && s.policy.ShouldRequireTrashFirst() {
		err := &policy.PolicyError{Reason: "permanent deletion blocked by policy, use trash mode first"}
		s.logDenial(path, context, mode, "require_trash_first", err)
		return err
	}

	// 4. Context allowed roots.
	if context != "general" {
		if roots := s.policy.AllowedRootsFor(context); len(roots) > 0 {
			if !s.withinRoots(path, roots) {
				err := &policy.PolicyError{Reason: fmt.Sprintf(
					"path %s not within allowed roots for context %q", path, context)}
				s.logDenial(path, context, mode, "allowed_roots:"+context, err)
				return err
			}
		}
	}

	return nil
}

// matchDenyPattern reports the first deny pattern matching the path. Any
// internal error evaluating patterns counts as a match: when in doubt, deny.
func (s *Sentinel) matchDenyPattern(path pathcheck.CanonicalPath) (string, bool) {
	patterns := s.policy.DenyPatternsFor(s.platform)
	sources := s.policy.DenySourceFor(s.platform)
	for i, re := range patterns {
		if re.MatchString(path.String()) {
			if i < len(sources) {
				return sources[i], true
			}
			return re.String(), true
		}
	}
	return "", false
}

// withinRoots canonicalizes the configured roots and checks containment.
// Roots that fail canonicalization are skipped; if none survive, the answer
// is no (fail closed).
func (s *Sentinel) withinRoots(path pathcheck.CanonicalPath, roots []string) bool {
	canonical := make([]pathcheck.CanonicalPath, 0, len(roots))
	for _, root := range roots {
		c, err := pathcheck.Canonicalize(root)
		if err != nil {
			slog.Warn("skipping invalid allowed root", "root", root, "error", err)
			continue
		}
		canonical = append(canonical, c)
	}
	return pathcheck.IsWithinAllowedRoots(path, canonical)
}

func (s *Sentinel) logDenial(path pathcheck.CanonicalPath, context string, mode Mode, rule string, err error) {
	s.logEvent(audit.EventSecurityViolation, audit.SeverityWarning,
		"Security denial: "+path.String(), map[string]any{
			"path":        path.String(),
			"context":     context,
			"mode":        string(mode),
			"platform":    s.platform,
			"decision":    "deny",
			"rule":        rule,
			"reason":      err.Error(),
			"policy_hash": s.PolicyHash(),
		})
}
