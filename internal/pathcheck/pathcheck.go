// Package pathcheck canonicalizes and sanity-checks filesystem paths before
// they are used in destructive operations. Nothing in this package touches
// the filesystem beyond stat/readlink; it never creates or removes anything.
package pathcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CanonicalPath is an absolute, symlink-resolved, user-expanded path that has
// passed format validation. Components that perform destructive work accept
// only this type, never raw strings.
type CanonicalPath string

func (p CanonicalPath) String() string { return string(p) }

// ValidationError reports a path that failed canonicalization or a safety
// predicate.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// windowsReservedNames are device names that Windows reserves in every
// directory, with or without an extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Platform returns the policy platform key for the running OS:
// "macos", "windows", or "linux". Anything that is not darwin or windows is
// treated as linux, which carries the most conservative critical-path list.
func Platform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// Canonicalize validates the raw path format, expands ~, and resolves it to
// an absolute symlink-free form. The target does not have to exist: deletion
// targets may already be gone, and validation must still succeed so callers
// can treat "already deleted" as success.
func Canonicalize(raw string) (CanonicalPath, error) {
	if raw == "" {
		return "", &ValidationError{Path: raw, Reason: "path is empty"}
	}

	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return "", &ValidationError{Path: raw, Reason: "path contains control characters"}
		}
	}

	if strings.ContainsRune(raw, '\\') && strings.ContainsRune(raw, '/') {
		return "", &ValidationError{Path: raw, Reason: "path mixes \\ and / separators"}
	}

	if raw != strings.TrimSpace(raw) {
		return "", &ValidationError{Path: raw, Reason: "path has leading or trailing whitespace"}
	}

	if runtime.GOOS == "windows" {
		if err := checkWindowsComponents(raw); err != nil {
			return "", err
		}
	}

	expanded, err := expandHome(raw)
	if err != nil {
		return "", &ValidationError{Path: raw, Reason: err.Error()}
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", &ValidationError{Path: raw, Reason: fmt.Sprintf("cannot make absolute: %v", err)}
	}

	resolved, err := resolveLenient(abs)
	if err != nil {
		return "", &ValidationError{Path: raw, Reason: fmt.Sprintf("cannot resolve: %v", err)}
	}

	return CanonicalPath(filepath.Clean(resolved)), nil
}

// checkWindowsComponents rejects reserved device names and components ending
// in a dot or space.
func checkWindowsComponents(raw string) error {
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\\' || r == '/'
	}) {
		name := part
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		if windowsReservedNames[strings.ToUpper(name)] {
			return &ValidationError{Path: raw, Reason: fmt.Sprintf("component %q is a reserved device name", part)}
		}
		if strings.HasSuffix(part, ".") || strings.HasSuffix(part, " ") {
			return &ValidationError{Path: raw, Reason: fmt.Sprintf("component %q ends with dot or space", part)}
		}
	}
	return nil
}

// expandHome replaces a leading ~ with the current user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// resolveLenient resolves symlinks like filepath.EvalSymlinks but tolerates a
// missing suffix: the longest existing ancestor is resolved and the remaining
// components are appended unchanged.
func resolveLenient(abs string) (string, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(underlying(err)) {
		return "", err
	}

	// Walk up until an existing ancestor resolves, then rejoin the tail.
	var tail []string
	cur := abs
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			// Hit the root without finding anything that exists.
			return abs, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent

		resolved, err = filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(underlying(err)) {
			return "", err
		}
	}
}

func underlying(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}

// IsSymlinkOrReparse reports whether the path itself is a symlink (or, on
// Windows, any reparse point such as a junction). Errors resolve to true:
// if the nature of the path cannot be determined it is treated as suspect.
func IsSymlinkOrReparse(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		return true
	}
	return info.Mode()&os.ModeSymlink != 0
}

// IsWithinAllowedRoots reports whether path equals, or is a descendant of, at
// least one of the given roots. The relationship is computed per component,
// never by string prefix, so /home/userX does not match the root /home/user.
func IsWithinAllowedRoots(path CanonicalPath, roots []CanonicalPath) bool {
	for _, root := range roots {
		if isAncestorOrSelf(string(root), string(path)) {
			return true
		}
	}
	return false
}

// isAncestorOrSelf reports whether ancestor == child or ancestor contains
// child. Both arguments must already be absolute cleaned paths.
func isAncestorOrSelf(ancestor, child string) bool {
	a, c := filepath.Clean(ancestor), filepath.Clean(child)
	if runtime.GOOS == "windows" {
		a, c = strings.ToLower(a), strings.ToLower(c)
	}
	if a == c {
		return true
	}
	rel, err := filepath.Rel(a, c)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
