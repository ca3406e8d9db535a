package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	digest, err := Hash("hunter2")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$argon2id$"))

	require.NoError(t, Verify("hunter2", digest))
	require.ErrorIs(t, Verify("hunter3", digest), ErrMismatch)
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same-password")
	require.NoError(t, err)
	b, err := Hash("same-password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyMalformed(t *testing.T) {
	require.Error(t, Verify("x", "not-a-digest"))
	require.Error(t, Verify("x", "$argon2id$v=19$bad"))
}
