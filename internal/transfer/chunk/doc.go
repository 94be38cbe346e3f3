// Package chunk plans the byte ranges of a chunked transfer.
//
// A plan partitions [0, size) into contiguous, non-overlapping ranges
// numbered from 1. It is derived per transfer and never persisted.
package chunk
