package interceptors

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"siteauth/backend/internal/apperr"
)

// ToStatus maps an error to a gRPC status error. Errors that already carry a
// status pass through. RateLimited gets a RetryInfo detail.
func ToStatus(err error, production bool) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	e := apperr.From(err)
	st := status.New(codeOf(err, e), e.PublicMessage(production))
	if e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
		if withInfo, derr := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(e.RetryAfter)}); derr == nil {
			st = withInfo
		}
	}
	return st.Err()
}

func codeOf(err error, e *apperr.Error) codes.Code {
	switch e.Kind {
	case apperr.KindValidation:
		if errors.Is(err, apperr.ErrNotFound) {
			return codes.NotFound
		}
		return codes.InvalidArgument
	case apperr.KindAuthentication:
		return codes.Unauthenticated
	case apperr.KindAuthorization:
		return codes.PermissionDenied
	case apperr.KindConflict:
		return codes.AlreadyExists
	case apperr.KindRateLimited:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// ErrorUnary converts classified handler errors into gRPC statuses.
func ErrorUnary(production bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		return resp, ToStatus(err, production)
	}
}
