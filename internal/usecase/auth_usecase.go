package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400
	ErrValidation = errors.New("validation error")
	//401
	ErrUnauthorized = errors.New("unauthorized")
	//403 停止ユーザー
	ErrForbidden = errors.New("forbidden")
	//409 email重複
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

const defaultAccessTTL = 24 * time.Hour

type AuthValidator interface {
	ValidateRegister(ctx context.Context, name string, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
}

type UserDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tokenVersion"`
	IsActive     bool   `json:"isActive"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenVersion int    `json:"tokenVersion"`
}

type AuthRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"userId"`
	NewTokenVersion int   `json:"newTokenVersion"`
}

// アクセストークンのclaims。subは数値のまま載せる
type accessClaims struct {
	UserID       int64  `json:"sub"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

type AuthUsecase struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	users     repository.UserRepository
	validator AuthValidator
}

type AuthOption func(*AuthUsecase)

func WithAccessTTL(d time.Duration) AuthOption {
	return func(u *AuthUsecase) {
		if d > 0 {
			u.accessTTL = d
		}
	}
}

// テスト用
func WithClock(now func() time.Time) AuthOption {
	return func(u *AuthUsecase) { u.now = now }
}

func NewAuthUsecase(
	jwtSecret string,
	users repository.UserRepository,
	validator AuthValidator,
	opts ...AuthOption,
) *AuthUsecase {
	u := &AuthUsecase{
		secret:    []byte(jwtSecret),
		accessTTL: defaultAccessTTL,
		now:       time.Now,
		users:     users,
		validator: validator,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*UserDTO, error) {
	if err := u.validator.ValidateRegister(ctx, req.Name, req.Email, req.Password); err != nil {
		return nil, err
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		IsActive:     true,
	}
	//同時登録はunique制約で片方が落ちる
	if err := u.users.Create(ctx, user); err != nil {
		return nil, ErrConflict
	}

	dto := toUserDTO(user)
	return &dto, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (*AuthLoginResponse, error) {
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	user, err := u.activeUser(u.users.FindByEmail(ctx, strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrUnauthorized
	}

	now := u.now()
	user.LastLoginAt = &now
	//記録に失敗してもログインは通す
	_ = u.users.Update(ctx, user)

	token, err := u.signAccessToken(user, now)
	if err != nil {
		return nil, ErrInternal
	}

	return &AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    int(u.accessTTL / time.Second),
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	user, err := u.activeUser(u.users.FindByID(ctx, userID))
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(user)
	return &dto, nil
}

// token_versionを上げる。古いトークンはTokenVersionGuardで弾かれる
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID int64) (*ForceLogoutResponse, error) {
	if targetUserID <= 0 {
		return nil, ErrValidation
	}

	err := u.users.IncrementTokenVersion(ctx, targetUserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewHTTPError(http.StatusNotFound, "user not found")
	case err != nil:
		return nil, ErrInternal
	}

	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || user == nil {
		return nil, ErrInternal
	}
	return &ForceLogoutResponse{UserID: user.ID, NewTokenVersion: user.TokenVersion}, nil
}

// 見つからない => 401、停止中 => 403
func (u *AuthUsecase) activeUser(user *model.User, err error) (*model.User, error) {
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	return user, nil
}

func (u *AuthUsecase) signAccessToken(user *model.User, now time.Time) (string, error) {
	claims := accessClaims{
		UserID:       user.ID,
		Role:         string(user.Role),
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(u.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
}

func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}
