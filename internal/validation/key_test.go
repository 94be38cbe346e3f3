package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s3desk/s3desk/errors"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"./docs/", "docs"},
		{"././docs", "docs"},
		{"/photos/2024/", "photos/2024"},
		{"photos\\2024\\jan", "photos/2024/jan"},
		{"file.txt", "file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPath(tt.in))
		})
	}
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "", FolderPrefix("/"))
	assert.Equal(t, "photos/2024/", FolderPrefix("./photos/2024"))

	assert.Equal(t, "a.txt", JoinKey("", "a.txt"))
	assert.Equal(t, "docs/a.txt", JoinKey("/docs/", "a.txt"))

	assert.Equal(t, "docs/", ParentPrefix("docs/a.txt"))
	assert.Equal(t, "docs/", ParentPrefix("docs/sub/"))
	assert.Equal(t, "", ParentPrefix("a.txt"))

	assert.Equal(t, "sub", BaseName("docs/sub/"))
	assert.Equal(t, "a.txt", BaseName("docs/a.txt"))
	assert.Equal(t, "", BaseName(""))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain", input: "report.pdf"},
		{name: "spaces", input: "my report.pdf"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: "a\\b", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "control", input: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidObjectKey)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix(""))
	assert.NoError(t, ValidatePrefix("docs/"))
	assert.Error(t, ValidatePrefix("../docs/"))
}
