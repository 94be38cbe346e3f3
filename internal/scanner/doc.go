// Package scanner walks a local directory through a billy filesystem and
// returns the files selected by include and exclude glob patterns.
package scanner
