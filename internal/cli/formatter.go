package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/dustr/internal/dustr"
)

const (
	// MaxMarks is the width of the histogram column in characters.
	MaxMarks = 20
	// rowFormat lays out the size, percentage, histogram and name columns.
	rowFormat = "%-14s %-6s %-20s %s\n"
)

// PrintJSON outputs the scan report in JSON format.
func PrintJSON(report *dustr.Report, writer io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// markCount returns the histogram bar length for a metric, scaled so the
// largest entry fills the column and every non-empty entry shows at
// least one mark.
func markCount(metric, maxMetric uint64) int {
	if maxMetric == 0 {
		return MaxMarks
	}

	return int((MaxMarks-1)*metric/maxMetric) + 1
}

// errorLabel renders a scan error for the report. Permission denials are
// flagged literally so they stand out from transient failures.
func errorLabel(scanErr dustr.ScanError) string {
	if scanErr.Kind.IsPermission() {
		return "Permission denied"
	}

	return scanErr.Message
}

// displayName returns the entry name with its type indicator suffix.
// Classification errors fall back to the bare name.
func displayName(dir, name string, classify bool) string {
	if !classify {
		return name
	}

	indicator, err := dustr.Classify(filepath.Join(dir, name))
	if err != nil {
		return name
	}

	return name + string(indicator)
}

// PrintTable outputs the scan report in human-readable table format:
// error rows first, then one histogram row per entry sorted by size.
//
//nolint:forbidigo // This function prints output to the console.
func PrintTable(report *dustr.Report, options dustr.Options, writer io.Writer) error {
	fmt.Fprintf(writer, "\n\nStatistics of directory %q :\n\n", report.Path)
	fmt.Fprintf(writer, rowFormat, report.Mode.String(), "in %", "histogram", "name")

	// Error rows
	errNames := make([]string, 0, len(report.Errors))
	for name := range report.Errors {
		errNames = append(errNames, name)
	}

	sort.Strings(errNames)

	for _, name := range errNames {
		fmt.Fprintf(writer, "%-*s %s\n", 22+MaxMarks, errorLabel(report.Errors[name]), name)
	}

	// Entry rows, smallest first
	names := make([]string, 0, len(report.Metrics))
	for name := range report.Metrics {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		left, right := report.Metrics[names[i]], report.Metrics[names[j]]
		if left == right {
			return names[i] < names[j]
		}

		return left < right
	})

	total := report.Total()

	var maxMetric uint64
	for _, metric := range report.Metrics {
		maxMetric = max(maxMetric, metric)
	}

	for _, name := range names {
		metric := report.Metrics[name]

		percentage := 100.0
		if maxMetric != 0 {
			percentage = 100 * float64(metric) / float64(total)
		}

		size := fmt.Sprintf("%d", metric)
		if !options.NoGrouping {
			size = humanize.Comma(int64(metric)) //nolint:gosec // Metrics fit in int64 for any real tree
		}

		fmt.Fprintf(writer, rowFormat,
			size,
			fmt.Sprintf("%.2f", percentage),
			strings.Repeat("#", markCount(metric, maxMetric)),
			displayName(report.Path, name, !options.NoClassify),
		)
	}

	// Footer
	totalStr := fmt.Sprintf("%d", total)
	if !options.NoGrouping {
		totalStr = humanize.Comma(int64(total)) //nolint:gosec // Metrics fit in int64 for any real tree
	}

	if report.Inodes {
		fmt.Fprintf(writer, "\nTotal inode count: %s\n", totalStr)
	} else {
		fmt.Fprintf(writer, "\nTotal directory size: %s kByte\n", totalStr)
	}

	return nil
}
