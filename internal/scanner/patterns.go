package scanner

import (
	"fmt"
	"path"
	"strings"
)

// PatternMatcher filters relative paths with glob patterns. Patterns use
// path.Match syntax plus a single ** segment for any depth, and a trailing
// slash to select a whole directory.
type PatternMatcher struct {
	include []string
	exclude []string
}

// NewPatternMatcher validates the patterns and returns a matcher.
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	for i, p := range append(append([]string(nil), include...), exclude...) {
		if err := validatePattern(p); err != nil {
			return nil, &PatternError{Pattern: p, Index: i, Err: err}
		}
	}
	return &PatternMatcher{include: include, exclude: exclude}, nil
}

// Match reports whether relPath is selected. Excludes win over includes,
// and no include patterns means everything is included.
func (pm *PatternMatcher) Match(relPath string) bool {
	relPath = strings.ReplaceAll(relPath, "\\", "/")

	for _, p := range pm.exclude {
		if matches(relPath, p) {
			return false
		}
	}
	if len(pm.include) == 0 {
		return true
	}
	for _, p := range pm.include {
		if matches(relPath, p) {
			return true
		}
	}
	return false
}

func matches(relPath, pattern string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		return relPath == dir || strings.HasPrefix(relPath, dir+"/")
	}

	if before, after, ok := strings.Cut(pattern, "**"); ok {
		if !strings.HasPrefix(relPath, before) {
			return false
		}
		rest := strings.TrimPrefix(relPath, before)
		after = strings.TrimPrefix(after, "/")
		if after == "" {
			return true
		}
		// try the suffix pattern against every tail of the remaining path
		for {
			if ok, _ := path.Match(after, rest); ok {
				return true
			}
			i := strings.Index(rest, "/")
			if i < 0 {
				return false
			}
			rest = rest[i+1:]
		}
	}

	if ok, _ := path.Match(pattern, relPath); ok {
		return true
	}
	// a bare file pattern such as *.log matches at any depth
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(relPath))
		return ok
	}
	return false
}

func validatePattern(p string) error {
	if strings.Count(p, "**") > 1 {
		return fmt.Errorf("only one ** is supported")
	}
	_, err := path.Match(strings.ReplaceAll(p, "**", "*"), "probe")
	return err
}

// PatternError reports an invalid pattern.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
