package dustr

import (
	"io/fs"
	"os"
)

// Classify returns the display suffix for the entry at path: "/" for
// directories, "@" for symbolic links and "" for everything else. The
// lookup never follows symlinks, so a link to a directory still reports
// "@". A failed lookup returns a ClassificationFailed error; callers are
// expected to fall back to an empty suffix.
func Classify(path string) (Indicator, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return IndicatorNone, newScanError(ClassificationFailed, path, err)
	}

	// Symlink wins over directory: a link may point at one.
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return IndicatorSymlink, nil
	case info.IsDir():
		return IndicatorDirectory, nil
	default:
		return IndicatorNone, nil
	}
}
