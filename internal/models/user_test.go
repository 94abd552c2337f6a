package models

import (
	"encoding/json"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestUser_PublicHidesSecrets(t *testing.T) {
	u := &User{
		ID:           uuid.New(),
		Email:        "a@x.com",
		PasswordHash: "$2a$10$secret",
		IsStaff:      true,
	}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
	assert.Contains(t, string(raw), `"is_admin":true`)

	raw, err = json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestUser_String(t *testing.T) {
	id := uuid.MustParse("8c0f1f5e-7a43-4f57-9d0c-0c3f4b8fb0a1")
	u := &User{ID: id, Email: "a@x.com"}
	assert.Equal(t, "a@x.com -- 8c0f1f5e-7a43-4f57-9d0c-0c3f4b8fb0a1", u.String())
}

func TestUser_IsAdmin(t *testing.T) {
	assert.False(t, (&User{}).IsAdmin())
	assert.True(t, (&User{IsStaff: true}).IsAdmin())
	assert.True(t, (&User{IsSuperuser: true}).IsAdmin())
}

func TestRegisterRequest_Validate(t *testing.T) {
	ok := RegisterRequest{Email: "a@x.com", Password: "Strong1!"}
	require.NoError(t, ok.Validate())

	err := RegisterRequest{Email: "not-an-email", FirstName: "abcdefghijabcdefghijabcdefghijk"}.Validate()
	require.Error(t, err)

	errs, isMap := err.(validation.Errors)
	require.True(t, isMap)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "first_name")
	assert.NotContains(t, errs, "last_name")
}

func TestRegisterRequest_NameLengthCountsRunes(t *testing.T) {
	name := "ЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖЖ" // 30 runes, 60 bytes
	req := RegisterRequest{Email: "a@x.com", Password: "Strong1!", FirstName: name}
	assert.NoError(t, req.Validate())
}

func TestUpdateProfileRequest_Validate(t *testing.T) {
	assert.NoError(t, UpdateProfileRequest{}.Validate())

	long := "abcdefghijabcdefghijabcdefghijk"
	err := UpdateProfileRequest{LastName: &long}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(validation.Errors), "last_name")
}

func TestVerifyEmailRequest_Validate(t *testing.T) {
	err := VerifyEmailRequest{}.Validate()
	require.Error(t, err)
	errs := err.(validation.Errors)
	assert.Contains(t, errs, "token")
	assert.Contains(t, errs, "email")
}
