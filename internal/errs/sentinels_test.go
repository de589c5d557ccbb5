package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	var e error = &ValidationError{Fields: map[string]string{"name": "too short", "email": "invalid"}}
	require.ErrorIs(t, e, ErrValidation)
	require.Equal(t, "validation failed: email: invalid; name: too short", e.Error())

	require.Equal(t, "validation failed", (&ValidationError{}).Error())

	var ve *ValidationError
	require.True(t, errors.As(NewValidation("page", "must be positive"), &ve))
	require.Equal(t, "must be positive", ve.Fields["page"])
}

func TestStore(t *testing.T) {
	cause := errors.New("conn reset")
	err := Store("users.create", cause)
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "users.create: store failure: conn reset", err.Error())
}
