// Package pool recycles the byte buffers used by transfers.
//
// Streaming copies borrow a fixed 64 KiB copy buffer. Multipart uploads
// and ranged downloads borrow whole part buffers from a PartPool sized to
// the configured chunk so that a long transfer does not allocate one
// chunk-sized slice per part.
package pool
