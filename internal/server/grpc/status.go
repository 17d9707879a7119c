package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/meal-planner/internal/errs"
)

var authCodes = map[errs.AuthCode]codes.Code{
	errs.CodeInvalidEmail:     codes.InvalidArgument,
	errs.CodeWeakPassword:     codes.InvalidArgument,
	errs.CodeInvalidResetCode: codes.InvalidArgument,
	errs.CodeUserDisabled:     codes.PermissionDenied,
	errs.CodeUserNotFound:     codes.Unauthenticated,
	errs.CodeWrongPassword:    codes.Unauthenticated,
	errs.CodeInvalidUserToken: codes.Unauthenticated,
	errs.CodeUserTokenExpired: codes.Unauthenticated,
	errs.CodeNullUser:         codes.Unauthenticated,
	errs.CodeTooManyRequests:  codes.ResourceExhausted,
	errs.CodeEmailInUse:       codes.AlreadyExists,
}

// toStatus maps a service error to a gRPC status. Auth failures carry their
// provider code as the status message so clients can rebuild errs.AuthError.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ae *errs.AuthError
	if errors.As(err, &ae) {
		if c, ok := authCodes[ae.Code]; ok {
			return status.Error(c, string(ae.Code))
		}
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrResetDisabled):
		return status.Error(codes.Unimplemented, errs.ErrResetDisabled.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal")
	}
}
