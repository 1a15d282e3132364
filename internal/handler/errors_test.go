package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shop/internal/middleware"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newCtx() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		kind   usecase.ErrorKind
		status int
	}{
		{usecase.KindNotFound, http.StatusNotFound},
		{usecase.KindValidation, http.StatusBadRequest},
		{usecase.KindConflict, http.StatusConflict},
		{usecase.KindUnauthorized, http.StatusUnauthorized},
		{usecase.KindForbidden, http.StatusForbidden},
		{usecase.KindPersistence, http.StatusServiceUnavailable},
		{usecase.KindInconsistentCheckout, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			c, rec := newCtx()
			err := &usecase.AppError{Kind: tc.kind, Op: "test", Message: "product 3: not found"}

			require.NoError(t, writeError(c, zap.NewNop(), err))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestWriteError_PersistenceHidesDetail(t *testing.T) {
	c, rec := newCtx()
	err := &usecase.AppError{Kind: usecase.KindPersistence, Op: "cart.Save", Message: "save cart of user 1", Err: errors.New("dial tcp: refused")}

	require.NoError(t, writeError(c, zap.NewNop(), err))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service temporarily unavailable", body.Error)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestWriteError_InconsistentCheckoutCarriesOrderID(t *testing.T) {
	c, rec := newCtx()
	c.Set(middleware.CtxUserIDKey, int64(7))
	ie := &usecase.InconsistentCheckoutError{OrderID: 42, UserID: 7, IdempotencyKey: "k", Err: errors.New("boom")}
	err := &usecase.AppError{Kind: usecase.KindInconsistentCheckout, Op: "order.Create", Message: "order 42 created but cart not cleared", Err: ie}

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, writeError(c, zap.New(core), err))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.OrderID)

	//500系はErrorで1回だけ
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, int64(7), entry.ContextMap()["user_id"])
}

func TestWriteError_UnknownErrorIs500(t *testing.T) {
	c, rec := newCtx()

	require.NoError(t, writeError(c, zap.NewNop(), errors.New("plain")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
