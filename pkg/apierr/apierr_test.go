package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrUnauthorized, "missing token"), http.StatusUnauthorized},
		{New(ErrForbidden, "bad signature"), http.StatusForbidden},
		{New(ErrBadRequest, "bad shape"), http.StatusBadRequest},
		{New(ErrNotFound, "no such %s", "command"), http.StatusNotFound},
		{New(ErrConflict, "already terminal"), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", New(ErrNotFound, "gone")), http.StatusNotFound},
	}
	for _, tc := range tests {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDetailAndKind(t *testing.T) {
	err := New(ErrNotFound, "no such command %q", "c1")
	if err.Error() != `no such command "c1"` {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("kind not matched by errors.Is")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("wrong kind matched")
	}
}
