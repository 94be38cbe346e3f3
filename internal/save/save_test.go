package save

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/errors"
)

func TestSaver_Save(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		file     string
		data     []byte
		wantErr  error
		wantPath string
	}{
		{name: "root", file: "a.txt", data: []byte("a"), wantPath: "a.txt"},
		{name: "nested dir is created", dir: "downloads/today", file: "b.zip", data: []byte("zip"), wantPath: "downloads/today/b.zip"},
		{name: "empty file", dir: "out", file: "empty", data: nil, wantPath: "out/empty"},
		{name: "separator rejected", file: "../escape.txt", wantErr: errors.ErrInvalidObjectKey},
		{name: "blank rejected", file: " ", wantErr: errors.ErrInvalidObjectKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memfs.New()
			s := New(fs, tt.dir)

			err := s.Save(tt.file, tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, s.Path(tt.file))
			assert.True(t, s.Exists(tt.file))

			got, err := util.ReadFile(fs, tt.wantPath)
			require.NoError(t, err)
			assert.Equal(t, string(tt.data), string(got))
		})
	}
}

func TestSaver_Overwrite(t *testing.T) {
	fs := memfs.New()
	s := New(fs, "")

	require.NoError(t, s.Save("report.csv", []byte("old contents")))
	require.NoError(t, s.Save("report.csv", []byte("new")))

	got, err := util.ReadFile(fs, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}
