package gateway

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/s3desk/s3desk/errors"
)

// classify maps an AWS SDK error onto the module's sentinel errors. The
// original error stays in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if stderrors.As(err, &noSuchKey) || stderrors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
	}

	var noSuchBucket *types.NoSuchBucket
	if stderrors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", errors.ErrBucketNotFound, err)
	}

	var invalidState *types.InvalidObjectState
	if stderrors.As(err, &invalidState) {
		return fmt.Errorf("%w: %w", errors.ErrNotRetrievable, err)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", errors.ErrBucketNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %w", errors.ErrAccessDenied, err)
		case "InvalidObjectState":
			return fmt.Errorf("%w: %w", errors.ErrNotRetrievable, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if stderrors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
	}

	// Some S3-compatible services only put the code in the message
	msg := err.Error()
	if strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404") {
		return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
	}

	return err
}

func isRestoreInProgress(err error) bool {
	var apiErr smithy.APIError
	return stderrors.As(err, &apiErr) && apiErr.ErrorCode() == "RestoreAlreadyInProgress"
}
