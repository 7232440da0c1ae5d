package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "compras/internal/errors"
)

// AssertAppError fails unless err is an *AppError carrying code.
func AssertAppError(t testing.TB, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr, "expected AppError %s", code)
	assert.Equal(t, code, appErr.Code, "message: %s", appErr.Message)
}

// AssertNoError stops the test on a non-nil err.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	require.NoError(t, err)
}
