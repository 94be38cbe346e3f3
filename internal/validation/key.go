package validation

import (
	"path"
	"strings"
	"unicode"

	"github.com/s3desk/s3desk/errors"
)

// MaxKeyLength is the longest object key the store accepts, in bytes.
const MaxKeyLength = 1024

// CleanPath turns a user-typed path into key form: backslashes become
// slashes, and leading "./" and leading or trailing slashes are removed.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.Trim(p, "/")
}

// FolderPrefix returns the listing prefix for a folder path: the cleaned
// path with a trailing slash, or "" for the bucket root.
func FolderPrefix(p string) string {
	p = CleanPath(p)
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

// JoinKey joins a folder path and a relative name into a key.
func JoinKey(folder, name string) string {
	folder, name = CleanPath(folder), CleanPath(name)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// ParentPrefix returns the folder part of key including its trailing
// slash, or "" for a key at the bucket root.
func ParentPrefix(key string) string {
	key = strings.TrimSuffix(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i+1]
	}
	return ""
}

// BaseName returns the last segment of a key or prefix.
func BaseName(key string) string {
	key = strings.TrimSuffix(key, "/")
	if key == "" {
		return ""
	}
	return path.Base(key)
}

// ValidateObjectKey rejects empty, oversized and traversal keys and keys
// holding control characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return keyError(key, "object key cannot be empty")
	}
	return validateKeyBody(key)
}

// ValidatePrefix is ValidateObjectKey for listing prefixes, where the
// empty prefix means the bucket root.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validateKeyBody(prefix)
}

// ValidateName checks a single path segment used as a new object or
// folder name.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return keyError(name, "name cannot be empty")
	case strings.ContainsAny(name, "/\\"):
		return keyError(name, "name cannot contain path separators")
	case name == "." || name == "..":
		return keyError(name, "name cannot be a relative path element")
	}
	return validateKeyBody(name)
}

func validateKeyBody(key string) error {
	if hasPathTraversal(key) {
		return keyError(key, "object key cannot contain path traversal sequences")
	}
	if len(key) > MaxKeyLength {
		return keyError(key, "object key cannot exceed 1024 characters")
	}
	for _, c := range key {
		if unicode.IsControl(c) {
			return keyError(key, "object key cannot contain control characters")
		}
	}
	return nil
}

func keyError(key, msg string) error {
	return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
		WithKey(key).
		WithMessage(msg)
}

func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}
	if strings.HasPrefix(key, "/") {
		return true
	}
	// drive-letter paths such as C:\ or C:/
	return len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/')
}
