package validation

import (
	"net/netip"
	"strings"

	"github.com/s3desk/s3desk/errors"
)

// ValidateBucketName reports whether bucket is a DNS-compliant bucket name.
func ValidateBucketName(bucket string) error {
	fail := func(msg string) error {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	switch {
	case bucket == "":
		return fail("bucket name cannot be empty")
	case len(bucket) < 3 || len(bucket) > 63:
		return fail("bucket name must be between 3 and 63 characters long")
	}

	for _, c := range bucket {
		if !isBucketChar(c) {
			return fail("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	switch {
	case first == '-' || first == '.' || last == '-' || last == '.':
		return fail("bucket name cannot start or end with a hyphen or dot")
	case looksLikeIP(bucket):
		return fail("bucket name cannot be formatted as an IP address")
	case strings.Contains(bucket, "..") || strings.Contains(bucket, "--"):
		return fail("bucket name cannot contain two adjacent periods or hyphens")
	case bucket == "localhost":
		return fail("bucket name cannot be a reserved word")
	}
	return nil
}

func isBucketChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || c == '.' || c == '-'
}

func looksLikeIP(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
