// Package upload handles object uploads.
//
// Objects above the configured threshold go through the manual multipart
// orchestrator with fixed-size parts. Smaller objects use the managed
// single-call path, whose part size is tuned to the object size.
// Directory uploads walk a local filesystem and upload each file as its
// own tracked transfer.
package upload
