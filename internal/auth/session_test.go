package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripFromHeaderAndCookie(t *testing.T) {
	s, err := NewSigner(time.Hour)
	require.NoError(t, err)
	user := uuid.New()
	token, err := s.CreateJWT(user)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	got, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", "theme=dark; auth_token="+token)
	got, err = s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestRejectsMissingForeignAndExpiredTokens(t *testing.T) {
	s, err := NewSigner(time.Minute)
	require.NoError(t, err)
	other, err := NewSigner(0)
	require.NoError(t, err)

	_, err = s.Authenticate(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrNoToken)

	foreign, err := other.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = s.AuthenticateJWT(foreign)
	assert.Error(t, err)

	token, err := s.CreateJWT(uuid.New())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestParseExpire(t *testing.T) {
	for _, v := range []string{"", "0", "never"} {
		d, err := ParseExpire(v)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseExpire("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)
	_, err = ParseExpire("soon")
	assert.Error(t, err)
}

func TestRoleClaim(t *testing.T) {
	s, err := NewSigner(time.Hour)
	require.NoError(t, err)
	service := uuid.New()

	token, err := s.CreateRoleJWT(service, RolePayments)
	require.NoError(t, err)
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	c, err := s.AuthenticateClaims(r)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: service, Role: RolePayments}, c)

	host, err := s.CreateJWT(uuid.New())
	require.NoError(t, err)
	c, err = s.ParseClaims(host)
	require.NoError(t, err)
	assert.Empty(t, c.Role)
}
