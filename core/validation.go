package core

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt input limit, in bytes
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type validator struct {
	fields []FieldError
}

func (v *validator) add(field string, err error) {
	v.fields = append(v.fields, FieldError{Field: field, Message: err.Error()})
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func (v *validator) username(field, username string) {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		v.add(field, ErrUsernameLength)
	}
}

func (v *validator) email(field, email string) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.add(field, ErrInvalidEmail)
	}
}

func (v *validator) newPassword(field, password string) {
	switch {
	case len(password) < minPasswordLen:
		v.add(field, ErrPasswordTooShort)
	case len(password) > maxPasswordLen:
		v.add(field, ErrPasswordTooLong)
	}
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate normalizes the input in place and checks it.
func (in *RegisterInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			in.FullName = nil
		} else {
			in.FullName = &name
		}
	}

	v := &validator{}
	v.username("username", in.Username)
	v.email("email", in.Email)
	v.newPassword("password", in.Password)
	return v.err()
}

// Validate normalizes the input in place and checks it.
func (in *LoginInput) Validate() error {
	in.Email = NormalizeEmail(in.Email)

	v := &validator{}
	v.email("email", in.Email)
	if in.Password == "" {
		v.add("password", ErrPasswordRequired)
	}
	return v.err()
}

func (in *ChangePasswordInput) Validate() error {
	v := &validator{}
	if in.CurrentPassword == "" {
		v.add("currentPassword", ErrPasswordRequired)
	}
	v.newPassword("newPassword", in.NewPassword)
	return v.err()
}

// Validate trims the provided fields and checks the username if present.
// A blank username leaves the current one untouched.
func (upd *ProfileUpdate) Validate() error {
	v := &validator{}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			upd.Username = nil
		} else {
			upd.Username = &name
			v.username("username", name)
		}
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		upd.FullName = &name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		upd.Bio = &bio
	}
	return v.err()
}
