package registration

import (
	"errors"
	"fmt"

	"github.com/octobees/signup/internal/dto"
)

// ErrUnknownField is returned by SetField for names outside the form.
var ErrUnknownField = errors.New("unknown registration field")

// Field names a user-editable form field. Values match the wire names.
type Field string

const (
	FieldUsername         Field = "username"
	FieldPassword         Field = "password"
	FieldPasswordConfirm  Field = "password2"
	FieldEmail            Field = "email"
	FieldVerificationCode Field = "verification_code"
)

// Fields lists every user-editable field in form order.
var Fields = []Field{FieldUsername, FieldPassword, FieldPasswordConfirm, FieldEmail, FieldVerificationCode}

// Input holds the values typed into the registration form.
type Input struct {
	Username         string
	Password         string
	PasswordConfirm  string
	Email            string
	VerificationCode string
	// AffiliateCode is captured from a referral, never typed by the user.
	AffiliateCode string
}

// SetField returns a copy of in with only the named field replaced.
func SetField(in Input, name Field, value string) (Input, error) {
	switch name {
	case FieldUsername:
		in.Username = value
	case FieldPassword:
		in.Password = value
	case FieldPasswordConfirm:
		in.PasswordConfirm = value
	case FieldEmail:
		in.Email = value
	case FieldVerificationCode:
		in.VerificationCode = value
	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return in, nil
}

func (in Input) request() dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:         in.Username,
		Password:         in.Password,
		Password2:        in.PasswordConfirm,
		Email:            in.Email,
		VerificationCode: in.VerificationCode,
		AffCode:          in.AffiliateCode,
	}
}
