// Package copy handles server-side object copies and renames.
//
// The store has no rename call, so renaming is a copy followed by a delete
// of the original. Objects above the single-call copy limit are copied part
// by part through a multipart session. Objects in an archival storage class
// cannot be copied until they are restored and are refused up front.
package copy
