// Package validation checks bucket names, object keys and metadata before
// they reach the store, and normalises user-typed paths into keys.
package validation
