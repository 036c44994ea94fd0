package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/handler"
	"bookstore/internal/infra/cache"
	infrarepo "bookstore/internal/infra/repository"
	"bookstore/internal/testutil"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type cartBody struct {
	CartItems []struct {
		ProductID   int64           `json:"productId"`
		Title       string          `json:"title"`
		Price       decimal.Decimal `json:"price"`
		Quantity    int64           `json:"quantity"`
		SubTotal    decimal.Decimal `json:"subTotal"`
		ItemEntries []struct {
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"itemEntries"`
	} `json:"cartItems"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	TotalQuantity int64           `json:"totalQuantity"`
}

type server struct {
	e  *echo.Echo
	db *gorm.DB
}

func newServer(t *testing.T) server {
	t.Helper()

	gdb := testutil.NewDB(t)
	cfg := config.Config{JWTSecret: testSecret}
	users := infrarepo.NewUserGormRepository(gdb)
	products := infrarepo.NewProductGormRepository(gdb)
	inventory := infrarepo.NewInventoryGormRepository(gdb)
	tx := infrarepo.NewTxManagerGorm(gdb)

	cartUC := usecase.NewCartUsecase(tx, nil, nil, usecase.CartConfig{
		DefaultTTL: 48 * time.Hour,
		MaxTTL:     7 * 24 * time.Hour,
	})
	productUC := usecase.NewProductUsecase(products, inventory, tx)
	authUC := usecase.NewAuthUsecase(testSecret, users, validator.NewAuthValidator(users))
	wishlistUC := usecase.NewWishlistUsecase(infrarepo.NewWishlistGormRepository(gdb), products)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := cache.NewChatSessionRedisStore(rdb, cache.ChatSessionConfig{
		TTL:          time.Hour,
		HistoryLimit: 20,
		MaxSessions:  10,
	})
	chatUC := usecase.NewChatUsecase(sessions, usecase.NewCatalogAssistant(products))

	e := echo.New()
	handler.NewCartHandler(cartUC).RegisterRoutes(e, cfg, users)
	handler.NewProductHandler(productUC).RegisterRoutes(e)
	handler.NewAdminProductHandler(productUC).RegisterRoutes(e, cfg, users)
	handler.NewAdminUserHandler(cfg, users, authUC).RegisterRoutes(e)
	handler.NewAuthHandler(authUC).RegisterRoutes(e, cfg, users)
	handler.NewWishlistHandler(wishlistUC).RegisterRoutes(e, cfg, users)
	handler.NewChatHandler(chatUC).RegisterRoutes(e, cfg, users)

	return server{e: e, db: gdb}
}

func tokenFor(t *testing.T, u model.User) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"tv":   u.TokenVersion,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func (s server) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeCart(t *testing.T, env envelope) cartBody {
	t.Helper()
	var out cartBody
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
