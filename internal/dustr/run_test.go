package dustr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

// createTestTree builds
//
//	a.txt  (2048 bytes)
//	b/c.txt (100 bytes)
func createTestTree(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), 2048)
	mkdir(t, filepath.Join(base, "b"))
	writeFile(t, filepath.Join(base, "b", "c.txt"), 100)

	return base
}

func TestAggregateKilobytes(t *testing.T) {
	base := createTestTree(t)

	report, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	want := map[string]uint64{"a.txt": 2, "b": 0}
	if !reflect.DeepEqual(report.Metrics, want) {
		t.Errorf("metrics = %v, want %v", report.Metrics, want)
	}

	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
}

func TestAggregateInodes(t *testing.T) {
	base := createTestTree(t)

	report, err := Aggregate(context.Background(), Options{Path: base, Inodes: true}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// b counts itself plus c.txt
	want := map[string]uint64{"a.txt": 1, "b": 2}
	if !reflect.DeepEqual(report.Metrics, want) {
		t.Errorf("metrics = %v, want %v", report.Metrics, want)
	}
}

func TestAggregateDepthIndependence(t *testing.T) {
	base := t.TempDir()
	mkdir(t, filepath.Join(base, "deep", "deeper", "deepest"))
	writeFile(t, filepath.Join(base, "deep", "deeper", "deepest", "payload.bin"), 3000)

	report, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// 3000 bytes truncate to 2 kByte regardless of nesting depth.
	if got := report.Metrics["deep"]; got != 2 {
		t.Errorf("deep = %d, want 2", got)
	}
}

func TestAggregateHiddenEntriesIncluded(t *testing.T) {
	base := t.TempDir()
	mkdir(t, filepath.Join(base, "x", "y"))
	writeFile(t, filepath.Join(base, "x", ".hidden"), 10)
	writeFile(t, filepath.Join(base, "x", "y", "z.txt"), 10)
	writeFile(t, filepath.Join(base, "x", "y", "w.txt"), 10)

	report, err := Aggregate(context.Background(), Options{Path: base, Inodes: true}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// x itself, .hidden, y, z.txt, w.txt
	if got := report.Metrics["x"]; got != 5 {
		t.Errorf("x = %d, want 5", got)
	}
}

func TestAggregateEmptyDirectory(t *testing.T) {
	base := t.TempDir()
	mkdir(t, filepath.Join(base, "empty"))

	report, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got, ok := report.Metrics["empty"]; !ok || got != 0 {
		t.Errorf("empty = %d (present=%v), want 0", got, ok)
	}

	report, err = Aggregate(context.Background(), Options{Path: base, Inodes: true}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got := report.Metrics["empty"]; got != 1 {
		t.Errorf("empty inodes = %d, want 1", got)
	}
}

func TestAggregateSymlinkNotFollowed(t *testing.T) {
	base := t.TempDir()
	mkdir(t, filepath.Join(base, "target"))
	writeFile(t, filepath.Join(base, "target", "big.bin"), 1<<20)

	if err := os.Symlink(filepath.Join(base, "target"), filepath.Join(base, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	// A link back to the scan root must not loop the walk either.
	if err := os.Symlink(base, filepath.Join(base, "loop")); err != nil {
		t.Fatal(err)
	}

	report, err := Aggregate(context.Background(), Options{Path: base, Inodes: true}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got := report.Metrics["link"]; got != 1 {
		t.Errorf("link inodes = %d, want 1", got)
	}

	if got := report.Metrics["loop"]; got != 1 {
		t.Errorf("loop inodes = %d, want 1", got)
	}

	if got := report.Metrics["target"]; got != 2 {
		t.Errorf("target inodes = %d, want 2", got)
	}

	report, err = Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// The link contributes its own metadata size, not the megabyte behind it.
	if link, target := report.Metrics["link"], report.Metrics["target"]; link >= target {
		t.Errorf("link = %d, want less than target %d", link, target)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	base := createTestTree(t)

	first, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	second, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if !reflect.DeepEqual(first.Metrics, second.Metrics) {
		t.Errorf("metrics differ between runs: %v vs %v", first.Metrics, second.Metrics)
	}
}

func TestAggregateRootMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	report, err := Aggregate(context.Background(), Options{Path: missing}, nil)
	if err == nil {
		t.Fatal("expected error for missing root")
	}

	var scanErr ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("error is %T, want ScanError", err)
	}

	if scanErr.Kind != RootNotFound {
		t.Errorf("kind = %v, want RootNotFound", scanErr.Kind)
	}

	if len(report.Metrics) != 0 {
		t.Errorf("metrics = %v, want empty", report.Metrics)
	}

	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", report.Errors)
	}

	if _, ok := report.Errors[RootKey]; !ok {
		t.Errorf("errors = %v, want %q sentinel", report.Errors, RootKey)
	}
}

func TestAggregateRootNotDirectory(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "plain.txt")
	writeFile(t, file, 10)

	_, err := Aggregate(context.Background(), Options{Path: file}, nil)

	var scanErr ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("error is %T, want ScanError", err)
	}

	if scanErr.Kind != RootNotFound {
		t.Errorf("kind = %v, want RootNotFound", scanErr.Kind)
	}
}

// denyDir removes all permissions from path and restores them on cleanup.
func denyDir(t *testing.T, path string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}

	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks are bypassed")
	}

	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		_ = os.Chmod(path, 0o755)
	})
}

func TestAggregatePermissionDeniedChild(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ok.txt"), 4096)
	mkdir(t, filepath.Join(base, "denied"))
	writeFile(t, filepath.Join(base, "denied", "secret.txt"), 1024)
	denyDir(t, filepath.Join(base, "denied"))

	report, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got := report.Metrics["ok.txt"]; got != 4 {
		t.Errorf("ok.txt = %d, want 4", got)
	}

	if _, ok := report.Metrics["denied"]; ok {
		t.Error("denied should be omitted from metrics when entirely unreadable")
	}

	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", report.Errors)
	}

	scanErr, ok := report.Errors["denied"]
	if !ok {
		t.Fatalf("errors = %v, want entry keyed by denied child", report.Errors)
	}

	if scanErr.Kind != SubtreePermissionDenied {
		t.Errorf("kind = %v, want SubtreePermissionDenied", scanErr.Kind)
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	base := t.TempDir()
	mkdir(t, filepath.Join(base, "top"))
	writeFile(t, filepath.Join(base, "top", "ok.txt"), 2048)
	mkdir(t, filepath.Join(base, "top", "denied"))
	denyDir(t, filepath.Join(base, "top", "denied"))

	report, err := Aggregate(context.Background(), Options{Path: base}, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// Best-effort total from the readable part, plus a recorded error.
	if got := report.Metrics["top"]; got != 2 {
		t.Errorf("top = %d, want 2", got)
	}

	scanErr, ok := report.Errors["top"]
	if !ok {
		t.Fatalf("errors = %v, want entry keyed by top", report.Errors)
	}

	if scanErr.Kind != SubtreePermissionDenied {
		t.Errorf("kind = %v, want SubtreePermissionDenied", scanErr.Kind)
	}
}

func TestAggregateRootPermissionDenied(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "locked")
	mkdir(t, root)
	denyDir(t, root)

	report, err := Aggregate(context.Background(), Options{Path: root}, nil)
	if err == nil {
		t.Fatal("expected error for unreadable root")
	}

	var scanErr ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("error is %T, want ScanError", err)
	}

	if scanErr.Kind != RootPermissionDenied {
		t.Errorf("kind = %v, want RootPermissionDenied", scanErr.Kind)
	}

	if len(report.Metrics) != 0 {
		t.Errorf("metrics = %v, want empty", report.Metrics)
	}
}
