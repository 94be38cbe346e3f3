// Package download reads objects from the bucket into memory and hands them
// to a Saver.
//
// Objects at or below the download threshold are fetched with one GET on a
// presigned URL. Larger objects are read as sequential byte ranges, each
// retried with backoff, and assembled only once every range has arrived.
// Archived objects that have not been restored are refused up front.
package download
