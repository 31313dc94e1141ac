package pathcheck

import "os"

// criticalSystemPaths lists directories that must never be deleted, keyed by
// policy platform. Ported from the project's reviewed per-OS lists; treat as
// security configuration data, not something to re-derive.
var criticalSystemPaths = map[string][]string{
	"macos": {
		"/",
		"/System",
		"/usr",
		"/var",
		"/etc",
		"/bin",
		"/sbin",
		"/boot",
		"/Applications",
		"/Library",
		"/Users",
		"/Volumes",
	},
	"windows": {
		`C:\`,
		`C:\Windows`,
		`C:\Program Files`,
		`C:\Program Files (x86)`,
		`C:\Users`,
		`C:\ProgramData`,
	},
	"linux": {
		"/",
		"/usr",
		"/var",
		"/etc",
		"/bin",
		"/sbin",
		"/boot",
		"/home",
		"/root",
		"/opt",
		"/lib",
		"/lib64",
	},
}

// IsCriticalSystemPath reports whether the path is a critical system
// directory, an ancestor of one (deleting it would take the system directory
// with it), or the user's home directory. Any error while deciding resolves
// to true: when in doubt, the path is critical.
func IsCriticalSystemPath(path CanonicalPath) bool {
	return isCriticalOn(path, Platform())
}

// isCriticalOn is the platform-parameterized body of IsCriticalSystemPath,
// split out so tests can exercise every OS list on one machine.
func isCriticalOn(path CanonicalPath, platform string) bool {
	if path == "" {
		return true
	}

	critical, ok := criticalSystemPaths[platform]
	if !ok {
		// Unknown platform: no list to consult, deny.
		return true
	}

	p := string(path)
	for _, c := range critical {
		// Deleting the critical path itself, or deleting an ancestor that
		// contains it, are equally fatal. Descendants of critical paths are
		// the deny patterns' and allowed roots' job, not this check's.
		if isAncestorOrSelf(p, c) {
			return true
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return true
	}
	if isAncestorOrSelf(p, home) {
		return true
	}

	return false
}
