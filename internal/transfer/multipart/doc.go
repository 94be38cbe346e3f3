// Package multipart drives the remote multipart upload protocol.
// This includes session initiation, bounded concurrent part uploads with
// per-part retry, and ordered completion.
//
// A session that does not complete is always aborted. Abort failures are
// logged and never returned so they cannot mask the original error.
package multipart
