package status

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Run("sentinels are comparable", func(t *testing.T) {
		err := fmt.Errorf("framing: %w", ErrAmbiguousFraming)
		require.ErrorIs(t, err, ErrAmbiguousFraming)
		require.Equal(t, BadRequest, FromError(err).Code)
	})

	t.Run("resource limit unwraps", func(t *testing.T) {
		require.True(t, IsResourceLimit(ErrHeaderFieldsTooLarge))
		require.False(t, IsResourceLimit(ErrBadRequest))

		perr := FromError(ErrBodyTooLarge)
		require.Equal(t, RequestEntityTooLarge, perr.Code)
		require.Equal(t, "request body is too large", perr.Error())
	})

	t.Run("foreign errors", func(t *testing.T) {
		require.Equal(t, InternalServerError, FromError(io.ErrUnexpectedEOF).Code)
		require.Equal(t, InternalServerError, FromError(errors.New("oops")).Code)
	})
}
