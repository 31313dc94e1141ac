package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDoc(t *testing.T, mutate func(map[string]any)) []byte {
	t.Helper()
	doc := map[string]any{
		"version": "1.1",
		"behavior_flags": map[string]any{
			"require_trash_first":        true,
			"interactive_double_confirm": true,
			"block_symlinks":             true,
		},
		"size_limits": map[string]any{
			"large_directory_threshold_mb": 100,
			"max_deletion_size_mb":         10000,
		},
		"allowed_roots": map[string]any{
			"unity": []string{"~/Projects"},
		},
		"deny_patterns": map[string]any{
			"macos": []string{"^/$", "^/System(/|$)"},
			"linux": []string{"^/$"},
		},
	}
	if mutate != nil {
		mutate(doc)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestLoadBytesValid(t *testing.T) {
	p, err := LoadBytes(validDoc(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "1.1", p.Version)
	assert.True(t, p.ShouldRequireTrashFirst())
	assert.True(t, p.ShouldBlockSymlinks())
	assert.True(t, p.FailOnCriticalPaths()) // absent flag defaults to true
	assert.Equal(t, float64(100), p.LargeDirectoryThresholdMB())
	assert.Equal(t, []string{"~/Projects"}, p.AllowedRootsFor("unity"))
	assert.Nil(t, p.AllowedRootsFor("unknown"))
	assert.Len(t, p.DenyPatternsFor("macos"), 2)
	assert.Len(t, p.Hash(), 12)
}

func TestLoadBytesMissingSectionsFailClosed(t *testing.T) {
	for _, section := range []string{"behavior_flags", "size_limits", "allowed_roots", "deny_patterns"} {
		t.Run(section, func(t *testing.T) {
			doc := validDoc(t, func(m map[string]any) { delete(m, section) })
			p, err := LoadBytes(doc)
			require.Error(t, err)
			assert.Nil(t, p)
			var perr *PolicyError
			assert.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), section)
		})
	}
}

func TestLoadBytesMissingFlag(t *testing.T) {
	doc := validDoc(t, func(m map[string]any) {
		m["behavior_flags"] = map[string]any{
			"require_trash_first": true,
			"block_symlinks":      true,
		}
	})
	_, err := LoadBytes(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive_double_confirm")
}

func TestLoadBytesMissingSizeLimit(t *testing.T) {
	doc := validDoc(t, func(m map[string]any) {
		m["size_limits"] = map[string]any{"large_directory_threshold_mb": 100}
	})
	_, err := LoadBytes(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_deletion_size_mb")
}

func TestLoadBytesInvalidJSON(t *testing.T) {
	_, err := LoadBytes([]byte("{not json"))
	require.Error(t, err)
}

func TestLoadBytesBrokenDenyPattern(t *testing.T) {
	doc := validDoc(t, func(m map[string]any) {
		m["deny_patterns"] = map[string]any{"macos": []string{"["}}
	})
	_, err := LoadBytes(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny pattern")
}

func TestDenyPatternsAnchoredAtStart(t *testing.T) {
	p, err := LoadBytes(validDoc(t, nil))
	require.NoError(t, err)

	res := p.DenyPatternsFor("macos")
	require.Len(t, res, 2)
	assert.True(t, res[0].MatchString("/"))
	assert.False(t, res[0].MatchString("/tmp"))
	assert.True(t, res[1].MatchString("/System/Library"))
	assert.False(t, res[1].MatchString("/tmp/System"))
}

func TestContentHashIsStableAcrossKeyOrder(t *testing.T) {
	a := []byte(`{"b": 1, "a": {"y": 2, "x": 3}}`)
	b := []byte(`{"a": {"x": 3, "y": 2}, "b": 1}`)
	ha, err := contentHash(a)
	require.NoError(t, err)
	hb, err := contentHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 12)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	var perr *PolicyError
	assert.ErrorAs(t, err, &perr)
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, validDoc(t, nil), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.1", p.Version)
}

func TestBundledDefaultPolicyIsValid(t *testing.T) {
	p, err := LoadBytes(defaultPolicyJSON)
	require.NoError(t, err)
	assert.True(t, p.ShouldRequireTrashFirst())
	assert.True(t, p.ShouldBlockSymlinks())
	assert.NotEmpty(t, p.DenyPatternsFor("macos"))
	assert.NotEmpty(t, p.DenyPatternsFor("linux"))
	assert.NotEmpty(t, p.DenyPatternsFor("windows"))
}

func TestAuditConfigLegacyForm(t *testing.T) {
	doc := validDoc(t, func(m map[string]any) {
		m["audit"] = map[string]any{
			"log_all_validations":  true,
			"log_policy_decisions": false,
		}
	})
	p, err := LoadBytes(doc)
	require.NoError(t, err)
	assert.False(t, p.LogPolicyDecisions())
}

func TestAuditConfigExtendedFormRejections(t *testing.T) {
	cases := []struct {
		name  string
		audit map[string]any
	}{
		{
			"bad algorithm",
			map[string]any{"encryption": map[string]any{"enabled": true, "algorithm": "ROT13"}},
		},
		{
			"bad key provider",
			map[string]any{"encryption": map[string]any{"enabled": true, "key_provider": "floppy"}},
		},
		{
			"negative rotation",
			map[string]any{"encryption": map[string]any{"enabled": true, "key_rotation_days": -1}},
		},
		{
			"bad migration mode",
			map[string]any{"encryption": map[string]any{"enabled": true, "migration_mode": "yolo"}},
		},
		{
			"tamper detection off while enabled",
			map[string]any{"encryption": map[string]any{"enabled": true, "tamper_detection": false}},
		},
		{
			"recovery decryption off while enabled",
			map[string]any{"encryption": map[string]any{"enabled": true, "recovery_decryption": false}},
		},
		{
			"nonpositive migration timeout",
			map[string]any{"compatibility": map[string]any{"migration_timeout_seconds": 0}},
		},
		{
			"negative plaintext retention",
			map[string]any{"compatibility": map[string]any{"plaintext_retention_days": -3}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := validDoc(t, func(m map[string]any) { m["audit"] = tc.audit })
			_, err := LoadBytes(doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "audit configuration")
		})
	}
}

func TestAuditConfigDisabledEncryptionToleratesFlagsOff(t *testing.T) {
	doc := validDoc(t, func(m map[string]any) {
		m["audit"] = map[string]any{
			"encryption": map[string]any{
				"enabled":          false,
				"tamper_detection": false,
			},
		}
	})
	_, err := LoadBytes(doc)
	require.NoError(t, err)
}
