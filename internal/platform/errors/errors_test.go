package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeNotFound, "record not found")
	wrapped := fmt.Errorf("get event: %w", New(CodeNotFound, "no such event"))

	if !errors.Is(wrapped, sentinel) {
		t.Fatal("expected errors.Is to match by code")
	}

	other := New(CodeVersionStale, "stale")
	if errors.Is(wrapped, other) {
		t.Fatal("expected different codes not to match")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "persist event", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestToGRPCStatusCarriesMetadata(t *testing.T) {
	err := WithMetadata(CodeVersionStale, "stale version", map[string]string{
		"current_version": "4",
	})

	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
	if st.Message() != "stale version" {
		t.Fatalf("unexpected status message %q", st.Message())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want codes.Code
	}{
		{CodeEventTitleEmpty, codes.InvalidArgument},
		{CodeEventEndNotAfterStart, codes.InvalidArgument},
		{CodeBookingConflict, codes.FailedPrecondition},
		{CodeVersionStale, codes.FailedPrecondition},
		{CodeVersionConflict, codes.Aborted},
		{CodeNotFound, codes.NotFound},
		{CodeVersionCorrupt, codes.DataLoss},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range cases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}
