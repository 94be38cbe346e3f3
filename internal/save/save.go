package save

import (
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// Saver writes each download as a file in one directory of a billy
// filesystem. An existing file of the same name is replaced.
type Saver struct {
	fs  billy.Filesystem
	dir string
}

var _ s3types.Saver = (*Saver)(nil)

// New creates a Saver writing into dir on fs.
func New(fs billy.Filesystem, dir string) *Saver {
	return &Saver{fs: fs, dir: dir}
}

// NewOS creates a Saver writing into dir on the local disk.
func NewOS(dir string) *Saver {
	return New(osfs.New(dir), "")
}

// Save writes data to <dir>/<name>. name must be a single path segment.
func (s *Saver) Save(name string, data []byte) error {
	if err := validation.ValidateName(name); err != nil {
		return errors.NewError("save", err).WithKey(name)
	}

	if s.dir != "" {
		if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
			return errors.NewError("save", err).WithKey(name)
		}
	}
	target := path.Join(s.dir, name)
	if err := util.WriteFile(s.fs, target, data, 0o644); err != nil {
		return errors.NewError("save", err).WithKey(name)
	}
	return nil
}

// Path returns where Save writes name, relative to the filesystem root.
func (s *Saver) Path(name string) string {
	return path.Join(s.dir, name)
}

// Exists reports whether a file called name was already saved.
func (s *Saver) Exists(name string) bool {
	_, err := s.fs.Stat(s.Path(name))
	return err == nil
}
