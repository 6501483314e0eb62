package authentication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestTokensRoundTrip(t *testing.T) {
	keyring.MockInit()

	_, err := GetTokens()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	creds := &StoredCredentials{APIURL: "http://localhost:3000", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, StoreTokens(creds))

	got, err := GetTokens()
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, creds.APIURL, got.APIURL)

	require.NoError(t, DeleteTokens())
	require.NoError(t, DeleteTokens())
	_, err = GetTokens()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestExpiredTokenIsLoggedOut(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, StoreTokens(&StoredCredentials{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)}))

	_, err := GetTokens()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
