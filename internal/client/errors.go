package client

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/meal-planner/internal/errs"
)

var sentinels = map[codes.Code]error{
	codes.NotFound:          errs.ErrNotFound,
	codes.InvalidArgument:   errs.ErrValidation,
	codes.PermissionDenied:  errs.ErrForbidden,
	codes.Unauthenticated:   errs.ErrUnauthorized,
	codes.ResourceExhausted: errs.ErrRateLimited,
	codes.AlreadyExists:     errs.ErrAlreadyExists,
}

// fromStatus turns a gRPC status back into the domain error it was made from.
// Statuses whose message is a provider code become *errs.AuthError.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	base, known := sentinels[st.Code()]
	if code := errs.ParseAuthCode(st.Message()); code != errs.CodeUnknown {
		if !known {
			base = err
		}
		return errs.NewAuthError(code, base)
	}
	if known {
		return fmt.Errorf("%w: %s", base, st.Message())
	}
	return err
}
