package models

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const NameMaxLength = 30

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FirstName, validation.RuneLength(0, NameMaxLength)),
		validation.Field(&r.LastName, validation.RuneLength(0, NameMaxLength)),
	)
}

// UserFilter сужает список пользователей. Limit <= 0 значит без ограничения,
// Offset применяется и без Limit.
type UserFilter struct {
	// подстрока email без учёта регистра
	Email  string
	Limit  int
	Offset int
}

func (f UserFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Length(0, 254)),
		validation.Field(&f.Limit, validation.Min(0)),
		validation.Field(&f.Offset, validation.Min(0)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateProfileRequest: nil означает "поле не передано".
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.RuneLength(0, NameMaxLength)),
		validation.Field(&r.LastName, validation.RuneLength(0, NameMaxLength)),
	)
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// NewPasswordRequest confirms a reset; Token comes from the link query string.
type NewPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r NewPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type ChangeEmailRequest struct {
	NewEmail string `json:"new_email"`
}

func (r ChangeEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, validation.Length(3, 254), is.Email),
	)
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}
