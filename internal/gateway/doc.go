// Package gateway is the typed contract between the transfer orchestrators
// and the object store.
//
// Every Gateway method maps to exactly one remote call. Errors are returned
// as *errors.Error values; a missing object wraps errors.ErrObjectNotFound so
// callers can tell it apart from every other failure. The gateway never
// retries: orchestrated calls run with a single SDK attempt and retries are
// owned by the caller's retry policy.
package gateway
