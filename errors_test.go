package share_fetch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with inner error",
			err:  NewError(ApiRejected, "resolve", "https://we.tl/t-ABC123", errors.New("transfer expired")),
			want: "resolve https://we.tl/t-ABC123: api rejected: transfer expired",
		},
		{
			name: "without inner error",
			err:  NewError(MalformedLink, "match", "https://example.com", nil),
			want: "match https://example.com: malformed link",
		},
		{
			name: "formatted",
			err:  Errorf(HttpError, "download", "https://x", "unexpected status %d", 500),
			want: "download https://x: http error: unexpected status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsKind(t *testing.T) {
	assert := assert.New(t)
	inner := errors.New("inner")
	err := fmt.Errorf("wrapped: %w", NewError(AccessDenied, "resolve", "https://x", inner))

	assert.True(errors.Is(err, AccessDenied))
	assert.False(errors.Is(err, ApiRejected))
	assert.True(errors.Is(err, inner))
}

func TestKindOf(t *testing.T) {
	assert := assert.New(t)

	kind := KindOf(fmt.Errorf("wrapped: %w", NewError(ConfirmationTokenMissing, "resolve", "https://x", nil)))
	assert.True(kind.IsSome())
	assert.Equal(ConfirmationTokenMissing, kind.Unwrap())

	assert.True(KindOf(errors.New("plain")).IsNone())
	assert.True(KindOf(nil).IsNone())
}
