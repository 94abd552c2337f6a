package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"useraccounts/internal/models"
)

type LinkPurpose string

const (
	PurposeActivation        LinkPurpose = "activation"
	PurposePasswordReset     LinkPurpose = "password_reset"
	PurposeEmailVerification LinkPurpose = "email_verification"
)

var linkPaths = map[LinkPurpose]string{
	PurposeActivation:        "/api/activate/",
	PurposePasswordReset:     "/api/new-password/",
	PurposeEmailVerification: "/api/verified-email/",
}

type LinkClaims struct {
	Purpose     LinkPurpose `json:"purpose"`
	Email       string      `json:"email,omitempty"`
	Fingerprint string      `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

func (c *LinkClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type LinkTTLs struct {
	Activation        time.Duration
	PasswordReset     time.Duration
	EmailVerification time.Duration
}

func DefaultLinkTTLs() LinkTTLs {
	return LinkTTLs{
		Activation:        72 * time.Hour,
		PasswordReset:     time.Hour,
		EmailVerification: 24 * time.Hour,
	}
}

// LinkSigner issues and verifies the tokens carried by emailed links.
type LinkSigner struct {
	secret  []byte
	issuer  string
	baseURL string
	ttls    map[LinkPurpose]time.Duration
	now     func() time.Time
}

func NewLinkSigner(secret, issuer, baseURL string, ttls LinkTTLs) *LinkSigner {
	return &LinkSigner{
		secret:  []byte(secret),
		issuer:  issuer,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttls: map[LinkPurpose]time.Duration{
			PurposeActivation:        ttls.Activation,
			PurposePasswordReset:     ttls.PasswordReset,
			PurposeEmailVerification: ttls.EmailVerification,
		},
		now: time.Now,
	}
}

// PasswordFingerprint binds a reset link to the hash it was issued for.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func (s *LinkSigner) Sign(purpose LinkPurpose, user *models.User) (string, error) {
	ttl, ok := s.ttls[purpose]
	if !ok {
		return "", fmt.Errorf("unknown link purpose %q", purpose)
	}
	now := s.now()

	claims := LinkClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	switch purpose {
	case PurposeEmailVerification:
		claims.Email = user.Email
	case PurposePasswordReset:
		claims.Fingerprint = PasswordFingerprint(user.PasswordHash)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s link: %w", purpose, err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and purpose. Expired links give
// ErrLinkExpired, anything else unverifiable gives ErrInvalidLink.
func (s *LinkSigner) Parse(token string, purpose LinkPurpose) (*LinkClaims, uuid.UUID, error) {
	claims := &LinkClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, uuid.Nil, ErrLinkExpired
		}
		return nil, uuid.Nil, ErrInvalidLink
	}
	if claims.Purpose != purpose {
		return nil, uuid.Nil, ErrInvalidLink
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, uuid.Nil, ErrInvalidLink
	}
	return claims, userID, nil
}

func (s *LinkSigner) URL(purpose LinkPurpose, token string) string {
	return s.baseURL + linkPaths[purpose] + "?token=" + url.QueryEscape(token)
}
