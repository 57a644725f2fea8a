package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-auth-tokens"
)

func TestPayloadEmailValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{
			name:    "signup padded email",
			payload: auth.SignupRequest{FirstName: "Ana", LastName: "Lee", Email: " ana@x.com ", Password: "pw1234"},
		},
		{
			name:    "signup invalid email",
			payload: auth.SignupRequest{FirstName: "Ana", LastName: "Lee", Email: "ana", Password: "pw1234"},
			wantErr: true,
		},
		{
			name:    "signup blank email",
			payload: auth.SignupRequest{FirstName: "Ana", LastName: "Lee", Email: "   ", Password: "pw1234"},
			wantErr: true,
		},
		{
			name:    "login padded email",
			payload: auth.LoginRequest{Email: "\tana@x.com\n", Password: "pw1234"},
		},
		{
			name:    "login missing password",
			payload: auth.LoginRequest{Email: "ana@x.com"},
			wantErr: true,
		},
		{
			name:    "forgot padded email",
			payload: auth.ForgotPasswordRequest{Email: "  ana@x.com"},
		},
		{
			name:    "forgot blank email",
			payload: auth.ForgotPasswordRequest{Email: " "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResetPasswordRequestValidate(t *testing.T) {
	err := auth.ResetPasswordRequest{ResetToken: "t", Password: "pw1234", PasswordConfirm: "pw1234"}.Validate()
	assert.NoError(t, err)

	err = auth.ResetPasswordRequest{ResetToken: "t", Password: "pw1234", PasswordConfirm: "other"}.Validate()
	assert.Error(t, err)
	assert.Contains(t, auth.FormatValidationErrorToMap(err), "passwordConfirm")
}
