package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/s3desk/s3desk/errors"
)

var (
	mimePattern      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)
	reservedPrefixes = []string{"aws:", "x-amz-", "x-amz:"}
)

// ValidateMetadata checks user metadata keys and values.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if len(value) > 2048 {
			return metadataError("metadata value cannot exceed 2048 characters")
		}
		for _, c := range value {
			if !unicode.IsPrint(c) && c != '\n' && c != '\t' {
				return metadataError("metadata value can only contain printable characters")
			}
		}
	}
	return nil
}

// SanitizeMetadata drops non-printable characters from keys and control
// characters other than newline and tab from values.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		key := strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return -1
		}, k)
		out[key] = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return -1
			}
			return r
		}, v)
	}
	return out
}

// ValidateContentType checks that contentType is a MIME type. Empty is allowed.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	return nil
}

func validateMetadataKey(key string) error {
	if key == "" {
		return metadataError("metadata key cannot be empty")
	}
	if len(key) > 128 {
		return metadataError("metadata key cannot exceed 128 characters")
	}
	lower := strings.ToLower(key)
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return metadataError(fmt.Sprintf("metadata key cannot start with reserved prefix: %s", prefix))
		}
	}
	for _, c := range key {
		if c < 32 || c > 126 {
			return metadataError("metadata key can only contain printable ASCII characters")
		}
	}
	return nil
}

func metadataError(msg string) error {
	return errors.NewError("validateMetadata", errors.ErrInvalidInput).WithMessage(msg)
}
