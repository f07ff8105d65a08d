package social

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/socialfeed/backend/internal/repositories"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		want     error
		notWant  error
		keepBase bool
	}{
		{name: "notFound", err: fmt.Errorf("select: %w", repositories.ErrNotFound), want: ErrNotFound, notWant: ErrStoreUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrStoreTimeout, keepBase: true},
		{name: "generic", err: errors.New("socket closed"), want: ErrStoreUnavailable, notWant: ErrStoreTimeout, keepBase: true},
		{name: "alreadyClassified", err: ErrInvalidArgument, want: ErrInvalidArgument, notWant: ErrStoreUnavailable},
		{name: "cancelled", err: context.Canceled, want: context.Canceled, notWant: ErrStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("op", tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v in %v", tc.want, got)
			}
			if tc.notWant != nil && errors.Is(got, tc.notWant) {
				t.Fatalf("did not expect %v in %v", tc.notWant, got)
			}
			if tc.keepBase && !errors.Is(got, tc.err) {
				t.Fatalf("expected original error to stay reachable in %v", got)
			}
		})
	}

	if classify("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestStoreTimeoutIsStoreUnavailable(t *testing.T) {
	if !errors.Is(ErrStoreTimeout, ErrStoreUnavailable) {
		t.Fatal("expected timeout to be a kind of store unavailability")
	}
	if errors.Is(ErrStoreUnavailable, ErrStoreTimeout) {
		t.Fatal("store unavailability must not read as a timeout")
	}
}
