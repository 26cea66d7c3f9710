package repository

import (
	stderrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neighborly/pkg/errors"
)

// storeError maps a Firestore failure onto the error taxonomy. AppErrors
// raised inside a transaction pass through unchanged.
func storeError(err error, resource, message string) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.AlreadyExists:
		return errors.Conflict(resource + " already exists")
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return errors.DependencyUnavailable(message, err)
	}
	return errors.Internal(message, err)
}
