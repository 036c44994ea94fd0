package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"bookstore/internal/domain/model"
	"bookstore/internal/usecase"
)

var (
	// 入力が不正（FieldErrorで包んで返す）
	ErrInvalidInput = errors.New("invalid input")

	// emailが既に使用済み
	ErrEmailAlreadyUsed = errors.New("email already used")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxNameLen     = 100
	minPasswordLen = 8
	// bcryptは72byteより後ろを見ない
	maxPasswordLen = 72
)

// どの項目が不正か
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return "invalid " + e.Field }

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

func invalid(field string) error {
	return &FieldError{Field: field}
}

// 重複チェックに使うだけ
type emailLookup interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type authValidator struct {
	users emailLookup
}

func NewAuthValidator(users emailLookup) usecase.AuthValidator {
	return &authValidator{users: users}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, name string, email string, password string) error {
	if len([]rune(strings.TrimSpace(name))) > maxNameLen {
		return invalid("name")
	}
	if err := checkEmail(email); err != nil {
		return err
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return invalid("password")
	}

	// email重複チェック（DBが必要）
	u, err := v.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	if u != nil {
		return ErrEmailAlreadyUsed
	}
	return nil
}

// ログインは形式だけ見る。照合はusecase
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	if err := checkEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("password")
	}
	return nil
}

func checkEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailRe.MatchString(email) {
		return invalid("email")
	}
	return nil
}
