package dustr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charlievieth/fastwalk"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// logger provides conditional debug output.
type logger struct {
	enabled bool
}

// printf prints debug output if logging is enabled.
func (l logger) printf(format string, args ...any) {
	if l.enabled {
		//nolint:forbidigo // Debug output to console
		fmt.Printf(format, args...)
	}
}

// subtreeKind maps a nested read failure to its structured kind.
func subtreeKind(err error) ErrorKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return SubtreePermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return SubtreeVanished
	default:
		return SubtreeUnreadable
	}
}

// rootKind maps a failure on the scan root itself to its structured kind.
func rootKind(err error) ErrorKind {
	if errors.Is(err, fs.ErrPermission) {
		return RootPermissionDenied
	}

	return RootNotFound
}

// leafMetric returns the contribution of a single non-directory entry.
// Symlinks and exotic entries count their own metadata size, never a
// target's.
func leafMetric(info fs.FileInfo, mode UnitMode) uint64 {
	if mode == UnitInodes {
		return 1
	}

	size := info.Size()
	if size < 0 {
		return 0
	}

	return uint64(size) / kilobyte
}

// startProgressReporter invokes hook(entries, bytes) on each tick until ctx is done.
//
//nolint:varnamelen // c is idiomatic for collector
func startProgressReporter(ctx context.Context, c *collector, hook func(int64, int64), interval time.Duration) {
	if hook == nil {
		return
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.mu.Lock()

				entries := c.entryCount
				bytes := c.totalBytes
				c.mu.Unlock()
				hook(entries, bytes)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// rootFailure builds the fatal report returned when the scan root itself
// cannot be read: one sentinel error entry, no metrics.
func rootFailure(opt Options, err error) (*Report, error) {
	scanErr := newScanError(rootKind(err), opt.Path, err)

	report := &Report{
		Path:    opt.Path,
		Mode:    opt.Mode(),
		Inodes:  opt.Inodes,
		Metrics: map[string]uint64{},
		Errors:  map[string]ScanError{RootKey: scanErr},
	}

	return report, scanErr
}

// Aggregate scans the direct children of opt.Path and returns one
// aggregated metric per child, computed by a depth-first walk under the
// unit selected by opt.Inodes. Symbolic links are measured as leaves and
// never followed.
//
// Failures below the root are recovered: the affected subtree contributes
// whatever was measured before the failure, and the top-level child it
// occurred under is recorded once in the report's error map. A child
// whose subtree could not be read at all appears only in the error map.
// If the root itself cannot be read, Aggregate returns a non-nil error
// together with a report carrying a single RootKey error entry.
//
// Progress updates are sent to progressHook if provided.
//
//nolint:gocognit,funlen // Walk callback handles every entry shape inline.
func Aggregate(ctx context.Context, opt Options, progressHook func(int64, int64)) (*Report, error) {
	log := logger{enabled: opt.Debug}

	if opt.Path == "" {
		opt.Path = "."
	}

	// Normalize to native format to handle both C:/Path and C:\Path inputs
	opt.Path = filepath.Clean(opt.Path)
	mode := opt.Mode()

	// validate path exists and is accessible
	if statInfo, err := os.Stat(opt.Path); err != nil {
		return rootFailure(opt, err)
	} else if !statInfo.IsDir() {
		return rootFailure(opt, fmt.Errorf("path %q is not a directory", opt.Path))
	}

	children, err := os.ReadDir(opt.Path)
	if err != nil {
		return rootFailure(opt, err)
	}

	collector := newCollector()

	// Create child context to ensure progress reporter cleanup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start progress reporter goroutine
	startProgressReporter(ctx, collector, progressHook, opt.ProgressInterval)

	start := time.Now()

	// Configure fastwalk
	conf := &fastwalk.Config{
		Follow: false, // Don't follow symlinks
	}

	for _, child := range children {
		name := child.Name()
		childPath := filepath.Join(opt.Path, name)

		if !child.IsDir() {
			// Leaf child: regular file, symlink or exotic entry.
			info, err := child.Info()
			if err != nil {
				log.printf("[debug]: error reading entry %s: %v\n", childPath, err)
				collector.fail(name, newScanError(subtreeKind(err), childPath, err))

				continue
			}

			collector.add(name, leafMetric(info, mode), info.Size(), false)

			continue
		}

		// Directory child: fold its whole subtree into one slot with a
		// parallel depth-first walk.
		//nolint:varnamelen // d is standard for DirEntry
		walkErr := fastwalk.Walk(conf, childPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.printf("[debug]: error accessing path %s: %v\n", path, err)
				collector.fail(name, newScanError(subtreeKind(err), path, err))

				return nil // Keep scanning siblings
			}

			// Check cancellation periodically
			select {
			case <-ctx.Done():
				return context.Canceled
			default:
			}

			if d.IsDir() {
				// Directories carry no self-size in kilobyte mode.
				if mode == UnitInodes {
					collector.add(name, 1, 0, path == childPath)
				} else if path == childPath {
					collector.add(name, 0, 0, true)
				}

				return nil
			}

			info, err := d.Info()
			if err != nil {
				// Entry vanished or turned unreadable mid-walk.
				log.printf("[debug]: error reading entry %s: %v\n", path, err)
				collector.fail(name, newScanError(subtreeKind(err), path, err))

				return nil //nolint:nilerr // Intentionally recover during walk
			}

			collector.add(name, leafMetric(info, mode), info.Size(), false)

			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	metrics, errs := collector.finalize()

	report := &Report{
		Path:    opt.Path,
		Mode:    mode,
		Inodes:  opt.Inodes,
		Metrics: metrics,
		Errors:  errs,
		Elapsed: time.Since(start),
	}

	return report, nil
}
