package services

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"useraccounts/internal/models"
)

func newSigner() *LinkSigner {
	return NewLinkSigner("secret", "useraccounts", "https://accounts.example.com/", DefaultLinkTTLs())
}

func TestLinkSigner_RoundTrip(t *testing.T) {
	s := newSigner()
	u := &models.User{ID: uuid.New(), Email: "a@x.com", PasswordHash: "hash-1"}

	tok, err := s.Sign(PurposeEmailVerification, u)
	require.NoError(t, err)

	claims, id, err := s.Parse(tok, PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Empty(t, claims.Fingerprint)

	tok, err = s.Sign(PurposePasswordReset, u)
	require.NoError(t, err)
	claims, _, err = s.Parse(tok, PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, PasswordFingerprint("hash-1"), claims.Fingerprint)
	assert.NotEqual(t, PasswordFingerprint("hash-2"), claims.Fingerprint)
}

func TestLinkSigner_Rejects(t *testing.T) {
	s := newSigner()
	u := &models.User{ID: uuid.New()}

	tok, err := s.Sign(PurposeActivation, u)
	require.NoError(t, err)

	_, _, err = s.Parse(tok, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidLink)

	other := NewLinkSigner("another-secret", "useraccounts", "", DefaultLinkTTLs())
	_, _, err = other.Parse(tok, PurposeActivation)
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, _, err = s.Parse(tok+"x", PurposeActivation)
	assert.ErrorIs(t, err, ErrInvalidLink)

	// чужой алгоритм подписи
	none := jwt.NewWithClaims(jwt.SigningMethodNone, LinkClaims{
		Purpose:          PurposeActivation,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "useraccounts", Subject: u.ID.String()},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = s.Parse(unsigned, PurposeActivation)
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, err = s.Sign(LinkPurpose("bogus"), u)
	assert.Error(t, err)
}

func TestLinkSigner_Expiry(t *testing.T) {
	s := newSigner()
	u := &models.User{ID: uuid.New()}

	issued := time.Now()
	s.now = func() time.Time { return issued }
	tok, err := s.Sign(PurposePasswordReset, u)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, _, err = s.Parse(tok, PurposePasswordReset)
	assert.NoError(t, err)

	s.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, _, err = s.Parse(tok, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrLinkExpired)
}

func TestLinkSigner_URL(t *testing.T) {
	s := newSigner()
	link := s.URL(PurposeActivation, "a.b+c")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", u.Host)
	assert.Equal(t, "/api/activate/", u.Path)
	assert.Equal(t, "a.b+c", u.Query().Get("token"))
}
