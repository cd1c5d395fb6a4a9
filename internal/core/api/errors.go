package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/solatis/formkeeper/internal/types"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidArgument marks malformed request fields (IDs, snapshots,
	// patches). Spec problems use types.ErrMalformedSpec instead.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingTenant indicates a request reached the service without
	// passing authentication.
	ErrMissingTenant = errors.New("missing tenant_id in context")
)

// Code maps a service error to its gRPC code.
// Store failures that are none of the known sentinels map to UNAVAILABLE.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, types.ErrMalformedSpec),
		errors.Is(err, types.ErrDocumentTooLarge),
		errors.Is(err, types.ErrUnsupportedFormat),
		errors.Is(err, types.ErrInvalidPath),
		errors.Is(err, types.ErrPathConflict),
		errors.Is(err, ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, types.ErrFormNotFound):
		return codes.NotFound
	case errors.Is(err, types.ErrRevisionConflict):
		return codes.Aborted
	case errors.Is(err, ErrMissingTenant):
		return codes.Internal
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Unavailable
	}
}

// HTTPStatus maps a service error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrMalformedSpec):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrRevisionConflict):
		return http.StatusPreconditionFailed
	}

	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

// Status converts a service error to a gRPC status. Malformed specs carry
// every problem as a BadRequest field violation.
func Status(err error) *status.Status {
	st := status.New(Code(err), err.Error())

	var specErr *types.SpecError
	if !errors.As(err, &specErr) {
		return st
	}
	violations := make([]*errdetails.BadRequest_FieldViolation, 0, len(specErr.Problems))
	for _, p := range specErr.Problems {
		violations = append(violations, &errdetails.BadRequest_FieldViolation{
			Field:       p.Location,
			Description: p.Message,
		})
	}
	detailed, derr := st.WithDetails(&errdetails.BadRequest{FieldViolations: violations})
	if derr != nil {
		return st
	}
	return detailed
}

// Problems returns the located problems of a malformed spec error, or nil.
func Problems(err error) []types.Problem {
	var specErr *types.SpecError
	if errors.As(err, &specErr) {
		return specErr.Problems
	}
	return nil
}
