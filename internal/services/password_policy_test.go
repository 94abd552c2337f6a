package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicy_Default(t *testing.T) {
	p := DefaultPasswordPolicy()

	cases := []struct {
		name     string
		password string
		email    string
		wantErr  bool
	}{
		{"strong", strongPassword, "a@x.com", false},
		{"long passphrase", "correct horse battery staple", "a@x.com", false},
		{"too short", "Ab1!", "a@x.com", true},
		{"numeric", "9876543210", "a@x.com", true},
		{"common", "Password123", "a@x.com", true},
		{"contains email local part", "johnsmith-2024", "johnsmith@x.com", true},
		{"short local part is ignored", "bobby-tables-77", "bo@x.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.password, tc.email)
			if tc.wantErr {
				requireKind(t, err, KindValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPasswordPolicy_CollectsEveryRule(t *testing.T) {
	p := PasswordPolicy{MinLength: 10, RequireUpper: true, RequireDigit: true, RequireSymbol: true}

	err := p.Validate("lowercase", "")
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "at least 10")
	assert.Contains(t, e.Message, "uppercase")
	assert.Contains(t, e.Message, "digit")
	assert.Contains(t, e.Message, "symbol")
	assert.Contains(t, e.Fields, "password")
}

func TestPasswordPolicy_Relaxed(t *testing.T) {
	p := PasswordPolicy{MinLength: 4, AllowNumeric: true, AllowCommon: true, AllowEmailSimilar: true}
	assert.NoError(t, p.Validate("12345678", "12345678@x.com"))
	assert.Error(t, p.Validate("123", ""))
}

func TestPasswordPolicy_MaxLength(t *testing.T) {
	p := DefaultPasswordPolicy()

	ascii := strings.Repeat("aB3$", 20)
	require.Len(t, ascii, 80)
	err := p.Validate(ascii, "")
	requireKind(t, err, KindValidation)
	assert.ErrorContains(t, err, "at most 72 bytes")

	// 45 символов, но 80 байт
	cyrillic := strings.Repeat("Пароль1!й", 5)
	require.Equal(t, 45, utf8.RuneCountInString(cyrillic))
	require.Greater(t, len(cyrillic), MaxPasswordBytes)
	requireKind(t, p.Validate(cyrillic, ""), KindValidation)

	// 30 символов укладываются в 54 байта
	assert.NoError(t, p.Validate(strings.Repeat("Пароль7!хз", 3), ""))

	// лимит выше bcrypt не расширяет политику
	wide := PasswordPolicy{MinLength: 8, MaxLength: 128}
	requireKind(t, wide.Validate(ascii, ""), KindValidation)
}
