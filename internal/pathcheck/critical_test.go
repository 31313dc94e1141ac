package pathcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCriticalOnLinux(t *testing.T) {
	critical := []string{"/", "/usr", "/etc", "/home", "/root"}
	for _, p := range critical {
		assert.True(t, isCriticalOn(CanonicalPath(p), "linux"), p)
	}

	// Descendants of critical paths are not themselves critical here; deny
	// patterns and allowed roots decide their fate.
	assert.False(t, isCriticalOn("/usr/share/doc", "linux"))
	assert.False(t, isCriticalOn("/tmp/cache", "linux"))
}

func TestIsCriticalOnMacOS(t *testing.T) {
	assert.True(t, isCriticalOn("/", "macos"))
	assert.True(t, isCriticalOn("/System", "macos"))
	assert.True(t, isCriticalOn("/Applications", "macos"))
	assert.False(t, isCriticalOn("/private/tmp/cache", "macos"))
}

func TestIsCriticalOnWindows(t *testing.T) {
	assert.True(t, isCriticalOn(`C:\Windows`, "windows"))
	assert.True(t, isCriticalOn(`C:\Program Files`, "windows"))
}

func TestAncestorOfCriticalIsCritical(t *testing.T) {
	// Deleting / would delete /usr with it; the root is an ancestor of every
	// critical entry and must always be flagged.
	assert.True(t, isCriticalOn("/", "linux"))
	assert.True(t, isCriticalOn("/lib", "linux"))
}

func TestHomeDirectoryIsCritical(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, isCriticalOn(CanonicalPath(home), Platform()))
}

func TestUnknownPlatformFailsClosed(t *testing.T) {
	assert.True(t, isCriticalOn("/tmp/anything", "plan9"))
	assert.True(t, isCriticalOn("", "linux"))
}

func TestSubdirectoryOfHomeIsNotCriticalByThisCheck(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	sub := CanonicalPath(filepath.Join(home, ".cache", "cleanslate-test"))
	assert.False(t, isCriticalOn(sub, Platform()))
}
