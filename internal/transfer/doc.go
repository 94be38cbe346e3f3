// Package transfer manages large-object transfer operations.
// This includes chunk planning, retry with backoff and the multipart
// upload orchestrator.
//
// The transfer package holds the building blocks that the upload and
// download operations compose. Progress is reported through
// s3types.ProgressSink and cancellation through a closed channel.
package transfer
