package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountValidates(t *testing.T) {
	account, err := NewAccount("acme")
	require.NoError(t, err)
	assert.True(t, account.IsActive)
	assert.False(t, account.CreatedAt.IsZero())

	_, err = NewAccount("")
	assert.ErrorIs(t, err, ErrEmptyAccountName)
}

func TestNewAccountMemberValidates(t *testing.T) {
	cases := []struct {
		name      string
		accountID int64
		username  string
		hashed    string
		wantErr   error
	}{
		{"valid", 1, "gregg", "hash", nil},
		{"missing account", 0, "gregg", "hash", ErrMissingAccount},
		{"empty username", 1, "", "hash", ErrEmptyUsername},
		{"empty hash", 1, "gregg", "", ErrEmptyHashedPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAccountMember(tc.accountID, tc.username, tc.hashed)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestMemberJSONHidesPasswordHash(t *testing.T) {
	member, err := NewAccountMember(1, "gregg", "bcrypt-hash")
	require.NoError(t, err)

	out, err := json.Marshal(member)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "bcrypt-hash")
}

func TestAuthTokenExpiry(t *testing.T) {
	token, err := NewAuthToken(1, 42)
	require.NoError(t, err)

	ttl := 2 * time.Hour
	assert.Equal(t, token.IssuedAt.Add(ttl), token.ExpiresAt(ttl))
	assert.False(t, token.IsExpired(ttl, token.IssuedAt.Add(time.Hour)))
	assert.True(t, token.IsExpired(ttl, token.IssuedAt.Add(3*time.Hour)))
}

func TestAuthTokenValidates(t *testing.T) {
	_, err := NewAuthToken(1, 0)
	assert.ErrorIs(t, err, ErrEmptyEntropy)
	_, err = NewAuthToken(0, 42)
	assert.ErrorIs(t, err, ErrMissingMember)
}

func TestTokenJSONHidesEntropy(t *testing.T) {
	token, err := NewAuthToken(1, 987654321)
	require.NoError(t, err)

	out, err := json.Marshal(token)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "987654321")
}
