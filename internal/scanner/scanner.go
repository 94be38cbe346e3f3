package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// File is one file selected by a scan.
type File struct {
	// Path is the path inside the scanned filesystem
	Path string
	// RelPath is the slash-separated path relative to the scan root
	RelPath string
	Size    int64
	ModTime time.Time
}

// Scanner walks directories of a filesystem.
type Scanner struct {
	fs billy.Filesystem
}

// New creates a scanner over fs.
func New(fs billy.Filesystem) *Scanner {
	return &Scanner{fs: fs}
}

// Scan returns every regular file under root that the matcher selects,
// sorted by relative path. A nil matcher selects everything.
func (s *Scanner) Scan(ctx context.Context, root string, matcher *PatternMatcher) ([]File, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []File
	err = util.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, "../") {
			return nil
		}
		if matcher != nil && !matcher.Match(rel) {
			return nil
		}

		files = append(files, File{
			Path:    p,
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
