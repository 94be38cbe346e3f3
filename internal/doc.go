// Package internal holds the private implementation of the s3desk client.
//
// The internal packages are organized as follows:
//   - gateway: the single adapter between the AWS SDK and everything else
//   - operations: upload, download, archive, copy, delete and list
//   - transfer: chunk planning, retry policy and multipart sessions
//   - activity: the per-bucket upload and download log
//   - scanner, save, pool, validation: local files, sinks, buffers and input checks
//   - config, logging, cli: the command-line tool
package internal
