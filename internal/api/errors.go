package api

import (
	"context"
	"errors"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/upload"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}

	var failed *upload.FailedError
	code := codes.Internal
	switch {
	case apperr.IsValidation(err):
		code = codes.InvalidArgument
	case errors.Is(err, apperr.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, apperr.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, upload.ErrNotConfigured):
		code = codes.FailedPrecondition
	case errors.As(err, &failed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return grpcstatus.Error(code, err.Error())
}
