package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = 7
	}
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func newAuth(users *UserRepoMock) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase("test-secret", users, validator.NewAuthValidator(users))
}

func TestAuth_RegisterHashesPassword(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "reader@example.com").Return(nil, nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil &&
			u.Role == model.RoleUser && u.Name == "Reader"
	})).Return(nil)

	out, err := newAuth(users).Register(context.Background(), usecase.AuthRegisterRequest{
		Name: " Reader ", Email: "reader@example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "USER", out.Role)
}

func TestAuth_RegisterValidation(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taken@example.com").Return(&model.User{ID: 1}, nil)

	uc := newAuth(users)

	_, err := uc.Register(context.Background(), usecase.AuthRegisterRequest{Email: "bad", Password: "password123"})
	assert.ErrorIs(t, err, validator.ErrInvalidInput)

	_, err = uc.Register(context.Background(), usecase.AuthRegisterRequest{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, validator.ErrInvalidInput)

	_, err = uc.Register(context.Background(), usecase.AuthRegisterRequest{Email: "taken@example.com", Password: "password123"})
	assert.ErrorIs(t, err, validator.ErrEmailAlreadyUsed)
}

func TestAuth_LoginIssuesToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "reader@example.com").Return(&model.User{
		ID: 3, Email: "reader@example.com", PasswordHash: string(hash), Role: model.RoleAdmin, TokenVersion: 2, IsActive: true,
	}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	out, err := newAuth(users).Login(context.Background(), usecase.AuthLoginRequest{Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Token.TokenVersion)

	tok, err := jwt.Parse(out.Token.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(3), claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.Equal(t, float64(2), claims["tv"])
}

func TestAuth_LoginFailures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)
	users.On("FindByEmail", mock.Anything, "stopped@example.com").Return(&model.User{
		ID: 4, PasswordHash: string(hash), IsActive: false,
	}, nil)
	users.On("FindByEmail", mock.Anything, "reader@example.com").Return(&model.User{
		ID: 5, PasswordHash: string(hash), IsActive: true,
	}, nil)

	uc := newAuth(users)

	_, err = uc.Login(context.Background(), usecase.AuthLoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
	_, err = uc.Login(context.Background(), usecase.AuthLoginRequest{Email: "stopped@example.com", Password: "password123"})
	assert.ErrorIs(t, err, usecase.ErrForbidden)
	_, err = uc.Login(context.Background(), usecase.AuthLoginRequest{Email: "reader@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestAuth_ForceLogout(t *testing.T) {
	users := new(UserRepoMock)
	users.On("IncrementTokenVersion", mock.Anything, int64(9)).Return(nil)
	users.On("FindByID", mock.Anything, int64(9)).Return(&model.User{ID: 9, TokenVersion: 1}, nil)
	users.On("IncrementTokenVersion", mock.Anything, int64(10)).Return(repo.ErrNotFound)

	uc := newAuth(users)

	out, err := uc.ForceLogout(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, out.NewTokenVersion)

	_, err = uc.ForceLogout(context.Background(), 10)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)

	_, err = uc.ForceLogout(context.Background(), 0)
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestAuth_AccessTokenExpiry(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "reader@example.com").Return(&model.User{
		ID: 3, PasswordHash: string(hash), Role: model.RoleUser, IsActive: true,
	}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	uc := usecase.NewAuthUsecase("test-secret", users, validator.NewAuthValidator(users),
		usecase.WithAccessTTL(time.Hour),
		usecase.WithClock(func() time.Time { return issued }),
	)

	out, err := uc.Login(context.Background(), usecase.AuthLoginRequest{Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, 3600, out.Token.ExpiresIn)

	//発行時刻が過去なので期限切れ
	_, err = jwt.Parse(out.Token.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.Error(t, err)

	claims := jwt.MapClaims{}
	_, _, err = new(jwt.Parser).ParseUnverified(out.Token.AccessToken, claims)
	require.NoError(t, err)
	assert.Equal(t, float64(issued.Add(time.Hour).Unix()), claims["exp"])
}
