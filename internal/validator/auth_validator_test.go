package validator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookstore/internal/domain/model"
	"bookstore/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	byEmail map[string]*model.User
	err     error
}

func (s stubUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byEmail[email], nil
}

func TestValidateRegister(t *testing.T) {
	users := stubUsers{byEmail: map[string]*model.User{"taken@example.com": {ID: 1}}}
	v := validator.NewAuthValidator(users)

	tests := []struct {
		name      string
		userName  string
		email     string
		password  string
		wantField string
		wantErr   error
	}{
		{"ok", "Reader", "reader@example.com", "password123", "", nil},
		{"bad email", "Reader", "reader-at-example", "password123", "email", validator.ErrInvalidInput},
		{"empty email", "Reader", " ", "password123", "email", validator.ErrInvalidInput},
		{"short password", "Reader", "reader@example.com", "short", "password", validator.ErrInvalidInput},
		{"long password", "Reader", "reader@example.com", strings.Repeat("x", 73), "password", validator.ErrInvalidInput},
		{"long name", strings.Repeat("n", 101), "reader@example.com", "password123", "name", validator.ErrInvalidInput},
		{"taken", "Reader", "taken@example.com", "password123", "", validator.ErrEmailAlreadyUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegister(context.Background(), tt.userName, tt.email, tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			var fe *validator.FieldError
			if tt.wantField != "" {
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.wantField, fe.Field)
			}
		})
	}
}

func TestValidateRegister_LookupFailure(t *testing.T) {
	v := validator.NewAuthValidator(stubUsers{err: errors.New("db down")})

	err := v.ValidateRegister(context.Background(), "", "reader@example.com", "password123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, validator.ErrInvalidInput))
}

func TestValidateLogin(t *testing.T) {
	v := validator.NewAuthValidator(stubUsers{})

	assert.NoError(t, v.ValidateLogin(context.Background(), "reader@example.com", "x"))
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "nope", "x"), validator.ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "reader@example.com", ""), validator.ErrInvalidInput)
}
