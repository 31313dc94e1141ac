package sentinel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanslate-tools/cleanslate/internal/audit"
	"github.com/cleanslate-tools/cleanslate/internal/pathcheck"
	"github.com/cleanslate-tools/cleanslate/internal/policy"
)

type capturedEvent struct {
	Type    audit.EventType
	Message string
	Details map[string]any
}

// recordingLog captures audit events for assertions.
type recordingLog struct {
	events []capturedEvent
}

func (r *recordingLog) LogEvent(t audit.EventType, _ audit.Severity, msg string, details map[string]any) {
	r.events = append(r.events, capturedEvent{Type: t, Message: msg, Details: details})
}

func (r *recordingLog) last() capturedEvent {
	return r.events[len(r.events)-1]
}

// testPolicy builds a policy document and applies optional mutations before
// loading it.
func testPolicy(t *testing.T, mutate func(doc map[string]any)) *policy.Policy {
	t.Helper()
	doc := map[string]any{
		"version": "test",
		"behavior_flags": map[string]any{
			"require_trash_first":        true,
			"interactive_double_confirm": true,
			"block_symlinks":             true,
		},
		"size_limits": map[string]any{
			"large_directory_threshold_mb": 500,
			"max_deletion_size_mb":         50000,
		},
		"allowed_roots": map[string]any{},
		"deny_patterns": map[string]any{
			"linux":   []string{"^/$", "^/etc(/|$)"},
			"macos":   []string{"^/$", "^/System(/|$)"},
			"windows": []string{`^[A-Za-z]:\\$`},
		},
	}
	if mutate != nil {
		mutate(doc)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	p, err := policy.LoadBytes(data)
	require.NoError(t, err)
	return p
}

func newTestSentinel(t *testing.T, mutate func(doc map[string]any)) (*Sentinel, *recordingLog) {
	t.Helper()
	log := &recordingLog{}
	s, err := New(testPolicy(t, mutate), log)
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State())
	return s, log
}

func canonical(t *testing.T, raw string) pathcheck.CanonicalPath {
	t.Helper()
	c, err := pathcheck.Canonicalize(raw)
	require.NoError(t, err)
	return c
}

func TestNewRunsSelfTestAndActivates(t *testing.T) {
	s, _ := newTestSentinel(t, nil)
	assert.Equal(t, "active", s.State().String())
	assert.NotEmpty(t, s.PolicyHash())
}

func TestNewRejectsNilPolicy(t *testing.T) {
	s, err := New(nil, nil)
	assert.Nil(t, s)
	var perr *policy.PolicyError
	require.ErrorAs(t, err, &perr)
}

func TestSelfTestFailsUnderPermissivePolicy(t *testing.T) {
	// No deny patterns and critical-path checking disabled: nothing is left
	// to deny the home directory, which the self-test must catch.
	log := &recordingLog{}
	p := testPolicy(t, func(doc map[string]any) {
		doc["deny_patterns"] = map[string]any{}
		doc["behavior_flags"].(map[string]any)["fail_on_critical_paths"] = false
	})
	s, err := New(p, log)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "self-test")

	require.NotEmpty(t, log.events)
	assert.Equal(t, audit.EventSecurityViolation, log.last().Type)
}

func TestHomeDirectoryAlwaysDenied(t *testing.T) {
	s, _ := newTestSentinel(t, nil)
	home := canonical(t, "~")

	for _, mode := range []Mode{ModeTrash, ModePermanent} {
		err := s.GuardDelete(home, "general", mode)
		require.Error(t, err, "mode %s", mode)
		assert.Contains(t, err.Error(), "critical system path")
	}
}

func TestRootDeniedByPatternEvenWithoutCriticalChecks(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	// With critical-path checking off, the deny patterns alone must still
	// cover the filesystem root. The home pattern keeps the startup
	// self-test satisfied.
	s, _ := newTestSentinel(t, func(doc map[string]any) {
		doc["behavior_flags"].(map[string]any)["fail_on_critical_paths"] = false
		doc["deny_patterns"] = map[string]any{
			pathcheck.Platform(): []string{"^/$", "^" + regexp.QuoteMeta(home) + "(/|$)"},
		}
	})

	err = s.GuardDelete(pathcheck.CanonicalPath("/"), "general", ModeTrash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny pattern")
	assert.Contains(t, err.Error(), "^/$")
}

func TestDenyPatternCheckedBeforeCriticalPath(t *testing.T) {
	s, log := newTestSentinel(t, nil)

	// "/" is both a deny-pattern match and a critical path; the pattern rule
	// must be the one reported.
	err := s.GuardDelete(pathcheck.CanonicalPath("/"), "general", ModeTrash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny pattern")

	last := log.last()
	assert.Equal(t, audit.EventSecurityViolation, last.Type)
	assert.Equal(t, "deny", last.Details["decision"])
	assert.Contains(t, last.Details["rule"], "deny_pattern:")
}

func TestPermanentModeRequiresTrashFirst(t *testing.T) {
	s, _ := newTestSentinel(t, nil)
	target := canonical(t, filepath.Join(t.TempDir(), "cache"))

	err := s.GuardDelete(target, "general", ModePermanent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trash")

	assert.NoError(t, s.GuardDelete(target, "general", ModeTrash))
}

func TestPermanentModeAllowedWhenPolicyPermits(t *testing.T) {
	s, _ := newTestSentinel(t, func(doc map[string]any) {
		doc["behavior_flags"].(map[string]any)["require_trash_first"] = false
	})
	target := canonical(t, filepath.Join(t.TempDir(), "cache"))
	assert.NoError(t, s.GuardDelete(target, "general", ModePermanent))
}

func TestAllowedRootsEnforcedPerContext(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Library"), 0o755))

	s, _ := newTestSentinel(t, func(doc map[string]any) {
		doc["allowed_roots"] = map[string]any{
			"unity": []string{root},
		}
	})

	inside := canonical(t, filepath.Join(root, "Library", "cache.bin"))
	assert.NoError(t, s.GuardDelete(inside, "unity", ModeTrash))

	err := s.GuardDelete(canonical(t, filepath.Join(outside, "cache.bin")), "unity", ModeTrash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed roots")
	assert.Contains(t, err.Error(), "unity")
}

func TestGeneralContextSkipsRootCheck(t *testing.T) {
	s, _ := newTestSentinel(t, func(doc map[string]any) {
		doc["allowed_roots"] = map[string]any{
			"unity": []string{t.TempDir()},
		}
	})
	target := canonical(t, filepath.Join(t.TempDir(), "anywhere.bin"))
	assert.NoError(t, s.GuardDelete(target, "general", ModeTrash))
}

func TestContextWithoutRootsIsUnrestricted(t *testing.T) {
	s, _ := newTestSentinel(t, nil)
	target := canonical(t, filepath.Join(t.TempDir(), "cache.bin"))
	assert.NoError(t, s.GuardDelete(target, "browser", ModeTrash))
}

func TestEmptyPathDenied(t *testing.T) {
	s, _ := newTestSentinel(t, nil)
	err := s.GuardDelete("", "general", ModeTrash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestApprovalAndDenialAreAudited(t *testing.T) {
	s, log := newTestSentinel(t, nil)
	target := canonical(t, filepath.Join(t.TempDir(), "cache.bin"))

	require.NoError(t, s.GuardDelete(target, "general", ModeTrash))
	approval := log.last()
	assert.Equal(t, audit.EventPolicyDecision, approval.Type)
	assert.Equal(t, "approve", approval.Details["decision"])
	assert.Equal(t, s.PolicyHash(), approval.Details["policy_hash"])

	require.Error(t, s.GuardDelete(canonical(t, "~"), "general", ModeTrash))
	denial := log.last()
	assert.Equal(t, audit.EventSecurityViolation, denial.Type)
	assert.Equal(t, "deny", denial.Details["decision"])
	assert.Equal(t, s.PolicyHash(), denial.Details["policy_hash"])
}

func TestInactiveSentinelDeniesEverything(t *testing.T) {
	s := &Sentinel{state: StateUninitialized}
	err := s.GuardDelete(pathcheck.CanonicalPath("/tmp/x"), "general", ModeTrash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uninitialized")
}
