package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindAndMessage(t *testing.T) {
	notFound := New(NotFound, "user not found")
	wrapped := fmt.Errorf("lookup: %w", Wrap(NotFound, "user not found", errors.New("no rows")))

	assert.True(t, errors.Is(wrapped, notFound))
	assert.False(t, errors.Is(wrapped, New(Conflict, "user not found")))
	assert.False(t, errors.Is(wrapped, New(NotFound, "no such user")))
	assert.Equal(t, NotFound, KindOf(wrapped))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Internal, "failed to load user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load user: connection refused", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Unauthorized, KindOf(fmt.Errorf("x: %w", New(Unauthorized, "bad code"))))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestMessageOf_HidesInternal(t *testing.T) {
	assert.Equal(t, "bad code", MessageOf(New(Unauthorized, "bad code")))
	assert.Equal(t, "internal server error", MessageOf(Wrap(Internal, "db exploded", errors.New("boom"))))
	assert.Equal(t, "internal server error", MessageOf(errors.New("plain")))
}

func TestHTTPStatusRoundTrip(t *testing.T) {
	for _, k := range []Kind{NotFound, Conflict, Unauthorized, BadRequest, DeliveryFailure, Internal} {
		status := HTTPStatus(New(k, "x"))
		assert.Equal(t, k, FromStatus(status), k.String())
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
