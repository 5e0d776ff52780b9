package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	Quantity        int    `json:"quantity,omitempty" validate:"gte=1,lte=100"`
	Note            string `validate:"max=5"`
}

func validForm() signupForm {
	return signupForm{
		Email:           "ada@example.com",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
		Quantity:        2,
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validForm()))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	f := validForm()
	f.Email = "not-an-email"
	f.ConfirmPassword = "other"
	f.Quantity = 0
	f.Note = "too long"

	err := Validate(f)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))

	assert.Equal(t, map[string]string{
		"email":            "must be an email address",
		"confirm_password": "must match password",
		"quantity":         "must be 1 or more",
		"Note":             "must be at most 5 characters",
	}, valErr.Fields())
}

func TestValidate_StructFieldKeptForLookup(t *testing.T) {
	f := validForm()
	f.Password = "short"
	f.ConfirmPassword = "short"

	var valErr *ValidationError
	require.True(t, errors.As(Validate(f), &valErr))
	require.Len(t, valErr.Errors, 1)
	assert.Equal(t, "password", valErr.Errors[0].Field())
	assert.Equal(t, "Password", valErr.Errors[0].StructField())
}

func TestValidationError_Error(t *testing.T) {
	f := validForm()
	f.Email = ""
	f.Quantity = 101

	err := Validate(f)
	require.Error(t, err)
	assert.Equal(t, "email is required; quantity must be 100 or less", err.Error())
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("plain string")
	require.Error(t, err)
	var valErr *ValidationError
	assert.False(t, errors.As(err, &valErr))
}
