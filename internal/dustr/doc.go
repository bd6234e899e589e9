// Package dustr measures disk usage for the direct children of a directory.
//
// It walks each child subtree with fastwalk for parallel traversal and
// folds the results into one metric per child, either whole kilobytes
// or inode counts. Partial failures stay local: an unreadable subtree
// is reported alongside the successfully measured siblings instead of
// aborting the scan.
package dustr
