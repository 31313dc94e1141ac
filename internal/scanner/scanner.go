// Package scanner measures cache targets with a bounded-concurrency parallel
// tree walk. It is strictly read-only and never follows symlinks or Windows
// reparse points, so a link inside a cache cannot pull foreign data into a
// size report or, later, a deletion batch.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Result is the measurement of one scan root.
type Result struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Files   int64     `json:"files"`
	ModTime time.Time `json:"mod_time"`
	Exists  bool      `json:"exists"`
}

// IsOld reports whether the root has been untouched for 6+ months.
func (r Result) IsOld() bool {
	return r.Exists && time.Since(r.ModTime) > 180*24*time.Hour
}

// Scanner performs parallel recursive directory measurement.
type Scanner struct {
	sem          chan struct{}
	exclude      map[string]bool
	mu           sync.Mutex
	warnings     []string
	scannedCount atomic.Int64
}

// New creates a scanner with bounded concurrency. exclude lists directory
// names (case-insensitive) to skip.
func New(maxConcurrency int, exclude []string) *Scanner {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	excMap := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excMap[strings.ToLower(e)] = true
	}
	return &Scanner{
		sem:     make(chan struct{}, maxConcurrency),
		exclude: excMap,
	}
}

// Warnings returns any warnings accumulated during scanning.
func (s *Scanner) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// ScannedCount returns the number of entries visited so far.
func (s *Scanner) ScannedCount() int64 {
	return s.scannedCount.Load()
}

func (s *Scanner) addWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.warnings) < 500 {
		s.warnings = append(s.warnings, msg)
	}
}

// Measure returns the total size and file count under root. A missing root is
// not an error; the result reports Exists=false so callers can show "not
// present" instead of failing a whole scan.
func (s *Scanner) Measure(ctx context.Context, root string) (Result, error) {
	root = filepath.Clean(root)
	res := Result{Path: root}

	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, err
	}
	res.Exists = true
	res.ModTime = info.ModTime()

	if info.Mode()&fs.ModeSymlink != 0 {
		s.addWarning("skipping symlinked root: " + root)
		res.Exists = false
		return res, nil
	}
	if !info.IsDir() {
		res.Size = info.Size()
		res.Files = 1
		return res, nil
	}

	files, size := s.scanDir(ctx, root)
	res.Files = files
	res.Size = size
	return res, ctx.Err()
}

// MeasureAll measures every root in parallel and returns results sorted by
// size descending. Per-root errors become warnings; the batch never fails as
// a whole.
func (s *Scanner) MeasureAll(ctx context.Context, roots []string) []Result {
	results := make([]Result, len(roots))
	var wg sync.WaitGroup
	for i, root := range roots {
		wg.Add(1)
		go func(i int, root string) {
			defer wg.Done()
			res, err := s.Measure(ctx, root)
			if err != nil {
				s.addWarning("cannot scan " + root + ": " + err.Error())
			}
			results[i] = res
		}(i, root)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Size > results[j].Size
	})
	return results
}

// scanDir recursively sums a directory, holding the semaphore only during the
// ReadDir I/O to prevent deadlocks from nested goroutine acquisition.
func (s *Scanner) scanDir(ctx context.Context, dirPath string) (int64, int64) {
	if ctx.Err() != nil {
		return 0, 0
	}

	s.sem <- struct{}{}
	entries, err := os.ReadDir(dirPath)
	<-s.sem

	if err != nil {
		s.addWarning("cannot read " + dirPath + ": " + err.Error())
		return 0, 0
	}

	var files, size atomic.Int64
	var wg sync.WaitGroup

	for _, e := range entries {
		childPath := filepath.Join(dirPath, e.Name())
		s.scannedCount.Add(1)

		if e.IsDir() && s.exclude[strings.ToLower(e.Name())] {
			continue
		}

		// NEVER follow links, junctions or reparse points.
		if e.Type()&fs.ModeSymlink != 0 || e.Type()&fs.ModeIrregular != 0 {
			continue
		}

		if e.IsDir() {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				f, sz := s.scanDir(ctx, p)
				files.Add(f)
				size.Add(sz)
			}(childPath)
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Permission denied or vanished mid-scan. Skip, don't fail.
			s.addWarning("cannot stat " + childPath + ": " + err.Error())
			continue
		}
		if info.Mode().IsRegular() {
			files.Add(1)
			size.Add(info.Size())
		}
	}

	wg.Wait()
	return files.Load(), size.Load()
}
