package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create message: %w", ReplyMismatch("reply target belongs to another task"))

	assert.Equal(t, KindReplyMismatch, KindOf(err))
	assert.True(t, Is(err, KindReplyMismatch))
	assert.Equal(t, "reply target belongs to another task", Message(err))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthenticated:     http.StatusUnauthorized,
		KindForbidden:           http.StatusForbidden,
		KindNotFound:            http.StatusNotFound,
		KindValidationFailed:    http.StatusBadRequest,
		KindReplyMismatch:       http.StatusBadRequest,
		KindUpstreamUnavailable: http.StatusInternalServerError,
		KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

func TestUpstreamUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Upstream("summary generation failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp")
}
