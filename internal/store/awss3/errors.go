package awss3

import (
	"context"
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/slmtnm/s3ranger/internal/errs"
)

// mapError translates an AWS SDK error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return errs.Wrap(errs.KindNotFound, msg, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case "InvalidBucketName", "KeyTooLongError", "InvalidArgument":
			return errs.Wrap(errs.KindInvalidInput, msg, err)
		case "RequestTimeout", "SlowDown", "Throttling", "ThrottlingException":
			return errs.Wrap(errs.KindTimeout, msg, err)
		}
	}

	// HeadBucket and HeadObject carry no error body, only the status code.
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.KindInvalidInput, msg, err)
		case http.StatusServiceUnavailable, http.StatusTooManyRequests:
			return errs.Wrap(errs.KindTimeout, msg, err)
		}
		return errs.Wrap(errs.KindStoreFailed, msg, err)
	}

	if apiErr != nil {
		return errs.Wrap(errs.KindStoreFailed, msg, err)
	}

	return errs.Wrap(errs.KindConnectionFailed, msg, err)
}
