package recovery

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// restorePath copies a backup back to its original location, creating
// missing parent directories. It returns the number of files and bytes
// restored. The backup payload is left in place; retention cleans it up.
func restorePath(backup, original string) (int, int64, error) {
	info, err := os.Lstat(backup)
	if err != nil {
		return 0, 0, fmt.Errorf("backup not found: %w", err)
	}

	if parent := filepath.Dir(original); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return 0, 0, fmt.Errorf("create parent directories: %w", err)
		}
	}

	if info.IsDir() {
		return copyTree(backup, original)
	}
	if err := copyFile(backup, original, info.Mode()); err != nil {
		return 0, 0, err
	}
	return 1, info.Size(), nil
}

// CreateBackup copies each source path into the per-operation directory
// under the manager's backup root and returns the backup paths, index
// aligned with sources. Any failure aborts the whole backup: a deletion must
// never proceed on a partial safety net.
func (m *Manager) CreateBackup(operationID string, sources []string) ([]string, error) {
	opDir := filepath.Join(m.backupsDir, operationID)
	if err := os.MkdirAll(opDir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	backups := make([]string, 0, len(sources))
	for i, src := range sources {
		info, err := os.Lstat(src)
		if err != nil {
			return nil, fmt.Errorf("stat backup source %s: %w", src, err)
		}
		dst := filepath.Join(opDir, fmt.Sprintf("%03d_%s", i, filepath.Base(src)))

		if info.IsDir() {
			if _, _, err := copyTree(src, dst); err != nil {
				return nil, fmt.Errorf("backup %s: %w", src, err)
			}
		} else if info.Mode().IsRegular() {
			if err := copyFile(src, dst, info.Mode()); err != nil {
				return nil, fmt.Errorf("backup %s: %w", src, err)
			}
		} else {
			return nil, fmt.Errorf("backup %s: unsupported file type %v", src, info.Mode().Type())
		}
		backups = append(backups, dst)
	}
	return backups, nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree recursively copies a directory. Symlinks inside the tree are
// skipped rather than followed; a cache backup must never reach outside
// itself through a link.
func copyTree(src, dst string) (int, int64, error) {
	var files int
	var size int64

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			return nil
		case info.Mode().IsRegular():
			if err := copyFile(path, target, info.Mode()); err != nil {
				return err
			}
			files++
			size += info.Size()
			return nil
		default:
			// Sockets, devices and the like have no business in a cache.
			return nil
		}
	})
	if err != nil {
		return files, size, err
	}
	return files, size, nil
}

// TreeStats returns the file count and total size under path (path itself if
// it is a file). Errors on individual entries are skipped; the scan is
// advisory, not authoritative.
func TreeStats(path string) (int, int64) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, 0
	}
	if !info.IsDir() {
		return 1, info.Size()
	}
	var files int
	var size int64
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				files++
				size += fi.Size()
			}
		}
		return nil
	})
	return files, size
}
