package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aura-live/backend/pkg/apperror"
)

func TestStatusMapsTaxonomy(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation":    {apperror.Validation("role", "unknown"), http.StatusBadRequest},
		"forbidden":     {fmt.Errorf("stop all: %w", apperror.ErrForbidden), http.StatusForbidden},
		"not found":     {apperror.ErrNotFound, http.StatusNotFound},
		"room inactive": {apperror.ErrRoomInactive, http.StatusConflict},
		"transport":     {apperror.Transport("redis", errors.New("down")), http.StatusBadGateway},
		"configuration": {apperror.Configuration("missing secret"), http.StatusServiceUnavailable},
		"unknown":       {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("%s: Status() = %d, want %d", name, got, tc.want)
		}
	}
}

func TestBodyHidesInternalErrors(t *testing.T) {
	b := bodyFor(errors.New("pq: password authentication failed"))
	if b.Error != "internal error" {
		t.Fatalf("Error = %q, want generic message", b.Error)
	}
	v := bodyFor(apperror.Validation("creator_id", "required"))
	if v.Field != "creator_id" || v.Error != "required" {
		t.Fatalf("validation body = %+v", v)
	}
}
