// Package list walks bucket listings.
//
// It provides the one-level folder view shown to users, a streaming walk
// over every object under a prefix, and the aggregates built on that walk:
// folder size, archive stats and bucket metrics. Folder markers and the
// activity log object never appear in any of them.
package list
