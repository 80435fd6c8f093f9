package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	tok, err := NewTokens("s3cret", time.Minute)
	require.NoError(t, err)

	raw, err := tok.Issue(Identity{Subject: "admin", Role: "admin"})
	require.NoError(t, err)

	id, err := tok.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{Subject: "admin", Role: "admin"}, id)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, _ := NewTokens("one", time.Minute)
	b, _ := NewTokens("two", time.Minute)

	raw, err := a.Issue(Identity{Subject: "admin"})
	require.NoError(t, err)

	_, err = b.Verify(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsExpired(t *testing.T) {
	tok, _ := NewTokens("s3cret", time.Minute)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok.now = func() time.Time { return base }

	raw, err := tok.Issue(Identity{Subject: "admin"})
	require.NoError(t, err)

	tok.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = tok.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tok, _ := NewTokens("s3cret", time.Minute)
	_, err := tok.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensNeedsSecret(t *testing.T) {
	_, err := NewTokens("", time.Minute)
	assert.Error(t, err)
}

func TestCredentialsCheck(t *testing.T) {
	c := Credentials{Username: "admin", Password: "123"}
	assert.True(t, c.Check("admin", "123"))
	assert.False(t, c.Check("admin", "1234"))
	assert.False(t, c.Check("root", "123"))
	assert.False(t, Credentials{}.Check("", ""))
}
