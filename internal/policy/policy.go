// Package policy loads and validates the declarative security ruleset that
// gates every destructive operation. A policy is loaded once at startup and
// is immutable for the life of the process; changing it requires a restart.
//
// Validation is fail-closed: a document missing any required section, any
// required flag, or carrying a malformed audit sub-config is rejected whole.
package policy

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

//go:embed default_policy.json
var defaultPolicyJSON []byte

// PolicyError reports a policy load failure or a policy-driven denial.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return "security policy: " + e.Reason
}

func errorf(format string, args ...any) *PolicyError {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

// BehaviorFlags are the policy switches controlling deletion behavior.
// FailOnCriticalPaths is optional in the document and defaults to true.
type BehaviorFlags struct {
	RequireTrashFirst        bool  `json:"require_trash_first"`
	InteractiveDoubleConfirm bool  `json:"interactive_double_confirm"`
	BlockSymlinks            bool  `json:"block_symlinks"`
	FailOnCriticalPaths      *bool `json:"fail_on_critical_paths,omitempty"`
}

// SizeLimits are the policy's size thresholds, in megabytes.
type SizeLimits struct {
	LargeDirectoryThresholdMB float64 `json:"large_directory_threshold_mb"`
	MaxDeletionSizeMB         float64 `json:"max_deletion_size_mb"`
}

// Policy is a loaded, validated, immutable security policy. The zero value is
// not usable; construct through Load or LoadBytes.
type Policy struct {
	Version       string              `json:"version"`
	BehaviorFlags BehaviorFlags       `json:"behavior_flags"`
	SizeLimits    SizeLimits          `json:"size_limits"`
	AllowedRoots  map[string][]string `json:"allowed_roots"`
	DenyPatterns  map[string][]string `json:"deny_patterns"`
	Audit         *AuditConfig        `json:"audit,omitempty"`

	hash         string
	denyCompiled map[string][]*regexp.Regexp
}

// requiredSections must all be present or the document is rejected entirely.
var requiredSections = []string{
	"behavior_flags", "size_limits", "allowed_roots", "deny_patterns",
}

var requiredFlags = []string{
	"require_trash_first", "interactive_double_confirm", "block_symlinks",
}

var requiredLimits = []string{
	"large_directory_threshold_mb", "max_deletion_size_mb",
}

// Load reads a policy document. With a non-empty path the file must exist and
// parse; there is no silent fallback. With an empty path the user override at
// ~/.config/cleanslate/policy.json is tried first, then the bundled default.
func Load(path string) (*Policy, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errorf("cannot read policy file %s: %v", path, err)
		}
		return LoadBytes(data)
	}

	if user := userPolicyPath(); user != "" {
		if data, err := os.ReadFile(user); err == nil {
			p, err := LoadBytes(data)
			if err != nil {
				return nil, errorf("user policy %s: %v", user, err)
			}
			return p, nil
		}
	}

	return LoadBytes(defaultPolicyJSON)
}

// userPolicyPath returns the conventional user override location, or "" if
// the home directory cannot be determined.
func userPolicyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cleanslate", "policy.json")
}

// LoadBytes parses and validates a policy document and computes its content
// hash.
func LoadBytes(data []byte) (*Policy, error) {
	// Raw decode first: required-section checks must distinguish "absent"
	// from "present but zero", which a typed decode cannot.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errorf("invalid JSON: %v", err)
	}

	for _, section := range requiredSections {
		if _, ok := raw[section]; !ok {
			return nil, errorf("missing required section: %s", section)
		}
	}

	var flagKeys map[string]json.RawMessage
	if err := json.Unmarshal(raw["behavior_flags"], &flagKeys); err != nil {
		return nil, errorf("behavior_flags is not an object: %v", err)
	}
	for _, flag := range requiredFlags {
		if _, ok := flagKeys[flag]; !ok {
			return nil, errorf("missing required behavior flag: %s", flag)
		}
	}

	var limitKeys map[string]json.RawMessage
	if err := json.Unmarshal(raw["size_limits"], &limitKeys); err != nil {
		return nil, errorf("size_limits is not an object: %v", err)
	}
	for _, limit := range requiredLimits {
		if _, ok := limitKeys[limit]; !ok {
			return nil, errorf("missing required size limit: %s", limit)
		}
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errorf("malformed policy document: %v", err)
	}

	if p.Audit != nil {
		if err := p.Audit.validate(); err != nil {
			return nil, errorf("audit configuration: %v", err)
		}
	}

	if err := p.compileDenyPatterns(); err != nil {
		return nil, err
	}

	hash, err := contentHash(data)
	if err != nil {
		return nil, errorf("cannot hash policy: %v", err)
	}
	p.hash = hash

	return &p, nil
}

// contentHash is the first 12 hex characters of SHA-256 over the canonical
// (sorted-key) JSON rendering of the document. It identifies the exact policy
// in effect and appears in every audit entry referencing a policy decision.
func contentHash(data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(doc) // map keys marshal sorted
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:12], nil
}

// compileDenyPatterns compiles every deny regex up front. The patterns match
// from the start of the path; a broken pattern invalidates the whole policy.
func (p *Policy) compileDenyPatterns() error {
	p.denyCompiled = make(map[string][]*regexp.Regexp, len(p.DenyPatterns))
	for platform, patterns := range p.DenyPatterns {
		for _, pat := range patterns {
			re, err := regexp.Compile("^(?:" + pat + ")")
			if err != nil {
				return errorf("invalid deny pattern %q for %s: %v", pat, platform, err)
			}
			p.denyCompiled[platform] = append(p.denyCompiled[platform], re)
		}
	}
	return nil
}

// Hash returns the policy content hash.
func (p *Policy) Hash() string { return p.hash }

// AllowedRootsFor returns the ordered allowed roots for a context, or nil if
// the context defines none.
func (p *Policy) AllowedRootsFor(context string) []string {
	return p.AllowedRoots[context]
}

// DenyPatternsFor returns the compiled deny patterns for a platform.
func (p *Policy) DenyPatternsFor(platform string) []*regexp.Regexp {
	return p.denyCompiled[platform]
}

// DenySourceFor returns the original pattern strings for a platform, index
// aligned with DenyPatternsFor, for rule-identifying denial messages.
func (p *Policy) DenySourceFor(platform string) []string {
	return p.DenyPatterns[platform]
}

func (p *Policy) ShouldRequireTrashFirst() bool { return p.BehaviorFlags.RequireTrashFirst }

func (p *Policy) ShouldBlockSymlinks() bool { return p.BehaviorFlags.BlockSymlinks }

func (p *Policy) ShouldDoubleConfirm() bool { return p.BehaviorFlags.InteractiveDoubleConfirm }

// FailOnCriticalPaths defaults to true when the flag is absent.
func (p *Policy) FailOnCriticalPaths() bool {
	if p.BehaviorFlags.FailOnCriticalPaths == nil {
		return true
	}
	return *p.BehaviorFlags.FailOnCriticalPaths
}

func (p *Policy) LargeDirectoryThresholdMB() float64 {
	return p.SizeLimits.LargeDirectoryThresholdMB
}

func (p *Policy) MaxDeletionSizeMB() float64 {
	return p.SizeLimits.MaxDeletionSizeMB
}

// LogPolicyDecisions defaults to true when no audit section is present.
func (p *Policy) LogPolicyDecisions() bool {
	if p.Audit == nil {
		return true
	}
	return p.Audit.logPolicyDecisions()
}
