package testutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// AssertStatusCode checks that the HTTP status code matches the expected value.
func AssertStatusCode(t *testing.T, expected, actual int, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		msg := fmt.Sprintf("Expected status code %d (%s), got %d (%s)",
			expected, http.StatusText(expected),
			actual, http.StatusText(actual))
		if len(msgAndArgs) > 0 {
			msg = fmt.Sprintf("%s: %v", msg, msgAndArgs[0])
		}
		t.Error(msg)
	}
}

// RequireProviderError asserts that err wraps a *types.ProviderError of the
// given kind and returns it for further inspection.
func RequireProviderError(t *testing.T, err error, kind types.ErrorKind) *types.ProviderError {
	t.Helper()
	require.Error(t, err)
	perr := &types.ProviderError{}
	require.ErrorAs(t, err, &perr)
	require.Equal(t, kind, perr.Kind)
	return perr
}
