package safedel

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cleanslate-tools/cleanslate/internal/pathcheck"
)

// trashDirs returns the directory receiving trashed items and, where the
// platform convention calls for them, the directory for metadata sidecars.
// infoDir is "" when no sidecar is written.
func (d *Deleter) trashDirs() (filesDir, infoDir string, err error) {
	if d.trashRoot != "" {
		return filepath.Join(d.trashRoot, "files"), filepath.Join(d.trashRoot, "info"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".Trash"), "", nil
	case "windows":
		// No recycle bin API without shell COM calls. A visible holding
		// directory keeps the trash-first contract recoverable by hand.
		return filepath.Join(home, ".cleanslate", "trash"), "", nil
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		trash := filepath.Join(dataHome, "Trash")
		return filepath.Join(trash, "files"), filepath.Join(trash, "info"), nil
	}
}

// moveToTrash renames the target into the trash directory, resolving name
// collisions by numeric suffix. A failed rename fails the deletion; there is
// no copy-and-delete fallback, because a half-copied "trash" entry is worse
// than a clear error.
func (d *Deleter) moveToTrash(path pathcheck.CanonicalPath) error {
	filesDir, infoDir, err := d.trashDirs()
	if err != nil {
		return &SafetyError{Path: path.String(), Reason: "trash unavailable: " + err.Error()}
	}
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return &SafetyError{Path: path.String(), Reason: "trash unavailable: " + err.Error()}
	}
	if infoDir != "" {
		if err := os.MkdirAll(infoDir, 0o700); err != nil {
			return &SafetyError{Path: path.String(), Reason: "trash unavailable: " + err.Error()}
		}
	}

	name := uniqueTrashName(filesDir, filepath.Base(path.String()))
	dest := filepath.Join(filesDir, name)
	if err := os.Rename(path.String(), dest); err != nil {
		return &SafetyError{Path: path.String(), Reason: "move to trash failed: " + err.Error()}
	}

	if infoDir != "" {
		writeTrashInfo(infoDir, name, path.String())
	}
	return nil
}

// uniqueTrashName picks a destination name that does not collide with an
// existing trash entry.
func uniqueTrashName(dir, base string) string {
	candidate := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", base, i)
	}
}

// writeTrashInfo writes the freedesktop .trashinfo sidecar so desktop trash
// tools can restore the item. Failure to write it is not fatal; the payload
// move already succeeded.
func writeTrashInfo(infoDir, name, originalPath string) {
	content := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		originalPath, time.Now().Format("2006-01-02T15:04:05"))
	_ = os.WriteFile(filepath.Join(infoDir, name+".trashinfo"), []byte(content), 0o600)
}
