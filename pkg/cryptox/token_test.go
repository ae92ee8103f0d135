package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateTokenSizeAndUniqueness(t *testing.T) {
	t.Parallel()

	a, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	b, err := GenerateToken(TokenSize256)
	require.NoError(t, err)

	require.Len(t, a, 43) // 32 bytes base64url, no padding
	require.NotEqual(t, a, b)
}

func TestGenerateTokenRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()

	_, err := GenerateToken(0)
	require.Error(t, err)
	_, err = GenerateToken(-1)
	require.Error(t, err)
}

func TestFingerprintTokenDeterministic(t *testing.T) {
	t.Parallel()

	fp1 := FingerprintToken("some-refresh-token")
	fp2 := FingerprintToken("some-refresh-token")
	fp3 := FingerprintToken("other-token")

	require.Equal(t, fp1, fp2)
	require.NotEqual(t, fp1, fp3)
	require.Len(t, fp1, 43)
}

func TestGenerateNumericCode(t *testing.T) {
	t.Parallel()

	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		require.GreaterOrEqual(t, c, '0')
		require.LessOrEqual(t, c, '9')
	}

	_, err = GenerateNumericCode(0)
	require.Error(t, err)
}
