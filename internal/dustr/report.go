package dustr

import (
	"fmt"
	"sync"
	"time"
)

// RootKey is the sentinel key used in the error map when the scan root
// itself cannot be read.
const RootKey = "<root>"

// kilobyte is the divisor for byte-to-kilobyte truncation.
const kilobyte = 1024

// UnitMode selects the metric accumulated during a scan.
type UnitMode int

const (
	// UnitKilobytes sums file sizes, each truncated to whole kilobytes.
	UnitKilobytes UnitMode = iota
	// UnitInodes counts filesystem objects, one per file, directory or symlink.
	UnitInodes
)

// String returns the column label used by the report layer.
func (m UnitMode) String() string {
	if m == UnitInodes {
		return "inodes"
	}

	return "in kByte"
}

// Indicator is the single-character type suffix appended to entry names.
type Indicator string

const (
	// IndicatorNone marks regular files and exotic entries.
	IndicatorNone Indicator = ""
	// IndicatorDirectory marks directories.
	IndicatorDirectory Indicator = "/"
	// IndicatorSymlink marks symbolic links, including links to directories.
	IndicatorSymlink Indicator = "@"
)

// ErrorKind classifies a scan failure at the point it occurs, so the
// report layer never has to pattern-match message text.
type ErrorKind int

const (
	// RootNotFound means the scan root does not exist or is not a directory.
	RootNotFound ErrorKind = iota
	// RootPermissionDenied means the scan root cannot be listed.
	RootPermissionDenied
	// SubtreePermissionDenied means a nested entry denied access.
	SubtreePermissionDenied
	// SubtreeVanished means an entry disappeared between listing and reading.
	SubtreeVanished
	// SubtreeUnreadable covers any other nested read failure.
	SubtreeUnreadable
	// ClassificationFailed means the metadata lookup for a single path failed.
	ClassificationFailed
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case RootNotFound:
		return "root not found"
	case RootPermissionDenied:
		return "root permission denied"
	case SubtreePermissionDenied:
		return "permission denied"
	case SubtreeVanished:
		return "vanished"
	case SubtreeUnreadable:
		return "unreadable"
	case ClassificationFailed:
		return "classification failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind as its name in JSON output.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsPermission reports whether the kind represents an access denial.
func (k ErrorKind) IsPermission() bool {
	return k == RootPermissionDenied || k == SubtreePermissionDenied
}

// ScanError records why a path or subtree could not be read.
type ScanError struct {
	// Kind is the structured failure category.
	Kind ErrorKind `json:"kind"`
	// Path is the path at which the failure occurred, which for subtree
	// errors may be deeper than the top-level child it is recorded under.
	Path string `json:"path"`
	// Message is the underlying cause, suitable for display.
	Message string `json:"message"`

	err error
}

func newScanError(kind ErrorKind, path string, err error) ScanError {
	return ScanError{
		Kind:    kind,
		Path:    path,
		Message: err.Error(),
		err:     err,
	}
}

// Error implements the error interface.
func (e ScanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e ScanError) Unwrap() error {
	return e.err
}

// Report holds the outcome of a single scan.
type Report struct {
	// Path is the scanned directory as given by the caller.
	Path string `json:"path"`
	// Mode is the unit the metrics were accumulated in.
	Mode UnitMode `json:"-"`
	// Inodes indicates whether metrics are inode counts.
	Inodes bool `json:"inodes"`
	// Metrics maps each successfully measured direct child to its
	// aggregated metric.
	Metrics map[string]uint64 `json:"metrics"`
	// Errors maps direct children (or RootKey) to the first failure
	// observed under them.
	Errors map[string]ScanError `json:"errors,omitempty"`
	// Elapsed is the total scan duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Total returns the sum of all child metrics.
func (r *Report) Total() uint64 {
	var total uint64
	for _, metric := range r.Metrics {
		total += metric
	}

	return total
}

// HasPermissionError reports whether any entry was denied access.
func (r *Report) HasPermissionError() bool {
	for _, scanErr := range r.Errors {
		if scanErr.Kind.IsPermission() {
			return true
		}
	}

	return false
}

// Options configures a scan and its CLI wrapping.
type Options struct {
	// Path is the directory to scan.
	Path string
	// Inodes selects inode counting instead of kilobyte sums.
	Inodes bool
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// Debug indicates whether debug output is enabled.
	Debug bool
	// Output represents output format (table or json).
	Output string
	// NoGrouping disables thousands separators in the table output.
	NoGrouping bool
	// NoProgress disables the progress line.
	NoProgress bool
	// NoClassify disables type indicator suffixes on entry names.
	NoClassify bool
	// Version indicates whether to show version and exit.
	Version bool
	// Integration indicates whether to output the integration script.
	Integration bool
}

// Mode returns the unit mode selected by the options.
func (o Options) Mode() UnitMode {
	if o.Inodes {
		return UnitInodes
	}

	return UnitKilobytes
}

// collector merges per-entry measurements from concurrent fastwalk
// callbacks using a mutex. Each top-level child accumulates into its own
// slot, so the only shared state is the maps themselves.
type collector struct {
	mu         sync.Mutex // Protect concurrent access
	sums       map[string]uint64
	measured   map[string]bool
	errs       map[string]ScanError
	entryCount int64
	totalBytes int64
}

// newCollector creates an empty collector.
func newCollector() *collector {
	return &collector{
		sums:     make(map[string]uint64),
		measured: make(map[string]bool),
		errs:     make(map[string]ScanError),
	}
}

// add folds one measured entry into the given top-level child's total.
// self marks a directory child's own contribution, which does not count
// as having measured anything inside the subtree.
func (c *collector) add(child string, metric uint64, size int64, self bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entryCount++
	c.totalBytes += size
	c.sums[child] += metric

	if !self {
		c.measured[child] = true
	}
}

// fail records a failure under the given top-level child. The first
// recorded error wins; later failures under the same child are dropped.
func (c *collector) fail(child string, scanErr ScanError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.errs[child]; !ok {
		c.errs[child] = scanErr
	}
}

// finalize produces the metric and error maps. A child whose subtree
// failed without yielding a single measurement is dropped from the
// metric map and survives only as an error entry.
func (c *collector) finalize() (map[string]uint64, map[string]ScanError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics := make(map[string]uint64, len(c.sums))

	for child, sum := range c.sums {
		if _, failed := c.errs[child]; failed && !c.measured[child] {
			continue
		}

		metrics[child] = sum
	}

	errs := make(map[string]ScanError, len(c.errs))
	for child, scanErr := range c.errs {
		errs[child] = scanErr
	}

	return metrics, errs
}
