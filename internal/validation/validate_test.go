package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		bucket  string
		wantErr string
	}{
		{bucket: "team-share"},
		{bucket: "2024-backups"},
		{bucket: "photos.example.com"},
		{bucket: "10.0.0"},
		{bucket: "", wantErr: "cannot be empty"},
		{bucket: "ab", wantErr: "between 3 and 63"},
		{bucket: strings.Repeat("b", 64), wantErr: "between 3 and 63"},
		{bucket: "Team-Share", wantErr: "lowercase letters"},
		{bucket: "team_share", wantErr: "lowercase letters"},
		{bucket: "-share", wantErr: "start or end"},
		{bucket: "share.", wantErr: "start or end"},
		{bucket: "192.168.1.10", wantErr: "IP address"},
		{bucket: "team..share", wantErr: "adjacent"},
		{bucket: "team--share", wantErr: "adjacent"},
		{bucket: "localhost", wantErr: "reserved word"},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrInvalidBucketName)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "nested key", key: "photos/2024/jan.jpg"},
		{name: "folder marker", key: "photos/"},
		{name: "unicode", key: "отчёт/résumé.pdf"},
		{name: "longest allowed", key: strings.Repeat("k", MaxKeyLength)},
		{name: "empty", key: "", wantErr: "cannot be empty"},
		{name: "too long", key: strings.Repeat("k", MaxKeyLength+1), wantErr: "1024"},
		{name: "parent segment", key: "photos/../secrets", wantErr: "traversal"},
		{name: "absolute", key: "/etc/passwd", wantErr: "traversal"},
		{name: "windows drive", key: "C:\\Users\\me", wantErr: "traversal"},
		{name: "drive with slash", key: "d:/data", wantErr: "traversal"},
		{name: "newline", key: "a\nb", wantErr: "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrInvalidObjectKey)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		wantErr  string
	}{
		{name: "none"},
		{name: "multi-line note", metadata: map[string]string{"note": "line one\n\tline two"}},
		{name: "reserved prefix any case", metadata: map[string]string{"X-Amz-Meta": "v"}, wantErr: "reserved prefix"},
		{name: "aws prefix", metadata: map[string]string{"aws:tag": "v"}, wantErr: "reserved prefix"},
		{name: "non-ascii key", metadata: map[string]string{"ключ": "v"}, wantErr: "printable ASCII"},
		{name: "long key", metadata: map[string]string{strings.Repeat("k", 129): "v"}, wantErr: "128"},
		{name: "long value", metadata: map[string]string{"k": strings.Repeat("v", 2049)}, wantErr: "2048"},
		{name: "bell in value", metadata: map[string]string{"k": "ding\a"}, wantErr: "printable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata(tt.metadata)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSanitizeMetadata(t *testing.T) {
	assert.Nil(t, SanitizeMetadata(nil))

	got := SanitizeMetadata(map[string]string{
		"own\x00er": "ana\x1b[31m",
		"note":      "keep\nnew\tlines",
		"plain":     "value",
	})
	assert.Equal(t, map[string]string{
		"owner": "ana[31m",
		"note":  "keep\nnew\tlines",
		"plain": "value",
	}, got)
	assert.NoError(t, ValidateMetadata(got))
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{contentType: ""},
		{contentType: "image/jpeg"},
		{contentType: "application/vnd.ms-excel"},
		{contentType: "text/plain; charset=utf-8"},
		{contentType: "image/svg+xml"},
		{contentType: "jpeg", wantErr: true},
		{contentType: "/plain", wantErr: true},
		{contentType: "text/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFolderPrefix_UserInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".", ""},
		{"./", ""},
		{"\\photos\\2024\\", "photos/2024/"},
		{"//docs//", "docs/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			prefix := FolderPrefix(tt.in)
			assert.Equal(t, tt.want, prefix)
			assert.NoError(t, ValidatePrefix(prefix))
		})
	}
}
