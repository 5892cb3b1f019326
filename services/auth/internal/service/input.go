package service

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Skotchmaster/restaurant/pkg/roles"
)

const (
	minPasswordLen = 6
	// bcrypt ignores anything past 72 bytes.
	maxPasswordLen = 72
)

type SignupInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLen, maxPasswordLen)),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Role, validation.In(roleValues()...)),
	)
}

type LoginInput struct {
	Email    string
	Password string
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// CreateUserInput is the payload for staff-created identities.
type CreateUserInput = SignupInput

// UpdateUserInput carries optional profile fields and an optional role.
type UpdateUserInput struct {
	FullName *string
	Email    *string
	Password *string
	Role     *string
}

func (in UpdateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(minPasswordLen, maxPasswordLen)),
		validation.Field(&in.Role, validation.NilOrNotEmpty, validation.In(roleValues()...)),
	)
}

func (in UpdateUserInput) hasProfile() bool {
	return in.FullName != nil || in.Email != nil || in.Password != nil
}

func roleValues() []interface{} {
	all := roles.All()
	out := make([]interface{}, len(all))
	for i, r := range all {
		out[i] = string(r)
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
