package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bookstore/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

var errBadClaims = errors.New("bad claims")

// アクセストークンから取り出した本人情報
type Identity struct {
	UserID       int64
	Role         string
	TokenVersion int
}

// AuthJWTが入れた本人情報を取り出す
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return Identity{}, false
	}
	role, _ := c.Get(CtxUserRoleKey).(string)
	tv, ok := c.Get(CtxTokenVersionKey).(int)
	if !ok {
		tv = -1
	}
	return Identity{UserID: id, Role: role, TokenVersion: tv}, true
}

// Bearerトークン(HS256)を検証してcontextに本人情報を入れる
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return unauthorized(c)
			}

			ident, err := parseAccessToken(raw, secret)
			if err != nil {
				return unauthorized(c)
			}

			c.Set(CtxUserIDKey, ident.UserID)
			c.Set(CtxUserRoleKey, ident.Role)
			c.Set(CtxTokenVersionKey, ident.TokenVersion)
			return next(c)
		}
	}
}

// "Bearer xxx" のxxx
func bearerToken(authz string) (string, bool) {
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func parseAccessToken(raw string, secret []byte) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, errBadClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errBadClaims
	}

	userID, err := claimInt64(claims["sub"])
	if err != nil || userID <= 0 {
		return Identity{}, errBadClaims
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Identity{}, errBadClaims
	}
	tv, err := claimInt64(claims["tv"])
	if err != nil || tv < 0 {
		return Identity{}, errBadClaims
	}

	return Identity{UserID: userID, Role: role, TokenVersion: int(tv)}, nil
}

// JSONの数値はfloat64で来る。文字列のsubも受ける
func claimInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errBadClaims
	}
}

// handler側のエラー形式と揃える
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Status: "fail", Message: "unauthorized"})
}

func forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorResponse{Status: "fail", Message: msg})
}
