package services

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"useraccounts/internal/repositories"
)

type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindAuthorization   ErrorKind = "authorization"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInternal        ErrorKind = "internal"
)

// Error is a domain error the transport layer can map to a status code.
// Anything that is not an *Error is treated as internal.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrEmailTaken         = &Error{Kind: KindConflict, Message: "a user with this email already exists"}
	ErrInvalidCredentials = &Error{Kind: KindAuthorization, Message: "unable to log in with provided credentials"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrInvalidLink        = &Error{Kind: KindNotFound, Message: "invalid or unknown link"}
	ErrLinkExpired        = &Error{Kind: KindValidation, Message: "link has expired"}
	ErrLinkUsed           = &Error{Kind: KindValidation, Message: "link has already been used"}
	ErrTokenRequired      = &Error{Kind: KindValidation, Message: "token is required", Fields: map[string]string{"token": "cannot be blank"}}
	ErrWrongOldPassword   = &Error{Kind: KindAuthorization, Message: "old password is incorrect"}
	ErrSamePassword       = &Error{Kind: KindValidation, Message: "new password must differ from the old one"}
	ErrProfileUnchanged   = &Error{Kind: KindConflict, Message: "nothing to update: new values match the current ones"}
	ErrSameEmail          = &Error{Kind: KindConflict, Message: "new email matches the current one"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "invalid token"}
	ErrUserInactive       = &Error{Kind: KindUnauthenticated, Message: "user inactive or deleted"}
)

func newValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// fromValidation turns ozzo-validation output into a ValidationError.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
		return newValidationError("invalid request", fields)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return fmt.Errorf("validate request: %w", err)
	}
	return newValidationError(err.Error(), nil)
}

// fromStore maps repository sentinels onto domain errors.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, repositories.ErrNotFound):
		return ErrUserNotFound
	default:
		return err
	}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
