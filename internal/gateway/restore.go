package gateway

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/s3desk/s3desk/s3types"
)

var expiryPattern = regexp.MustCompile(`expiry-date="([^"]+)"`)

// ParseRestore derives an object's archive status from its storage class
// and the x-amz-restore header, which looks like
//
//	ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"
func ParseRestore(class s3types.StorageClass, header string) s3types.ArchiveStatus {
	status := s3types.ArchiveStatus{
		StorageClass: class,
		Archived:     class.IsArchival(),
	}

	switch {
	case strings.Contains(header, `ongoing-request="true"`):
		status.Restoring = true
	case strings.Contains(header, `ongoing-request="false"`):
		status.Restored = true
	}

	if m := expiryPattern.FindStringSubmatch(header); m != nil {
		if t, err := http.ParseTime(m[1]); err == nil {
			status.RestoreExpiry = t
		}
	}
	return status
}
