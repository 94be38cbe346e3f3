// Package save writes downloaded objects to a local filesystem.
package save
