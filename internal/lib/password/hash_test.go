package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	hash, err := GetHash("supersecret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, CompareHash(hash, "supersecret"))
	assert.Error(t, CompareHash(hash, "wrongpassword"))
}
