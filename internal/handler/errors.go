package handler

import (
	"errors"
	"net/http"

	"shop/internal/middleware"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// 注文は作成済みだがカートが空にできなかったときだけ
	OrderID int64 `json:"order_id,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのエラーをHTTPに変換する。ログはここで1回だけ出す。
func writeError(c echo.Context, log *zap.Logger, err error) error {
	if err == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	}
	if uid, ok := getUserIDFromContext(c); ok {
		fields = append(fields, zap.Int64("user_id", uid))
	}

	ae, ok := usecase.AsAppError(err)
	if !ok {
		log.Error("unexpected error", fields...)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	fields = append(fields, zap.String("op", ae.Op), zap.String("kind", string(ae.Kind)))

	status := statusOf(ae.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Info("request rejected", fields...)
	}

	switch ae.Kind {
	case usecase.KindPersistence:
		return c.JSON(status, ErrorResponse{Error: "service temporarily unavailable"})
	case usecase.KindInconsistentCheckout:
		res := ErrorResponse{Error: ae.Message}
		var ie *usecase.InconsistentCheckoutError
		if errors.As(err, &ie) {
			res.OrderID = ie.OrderID
		}
		return c.JSON(status, res)
	default:
		return c.JSON(status, ErrorResponse{Error: ae.Message})
	}
}

func statusOf(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindUnauthorized:
		return http.StatusUnauthorized
	case usecase.KindForbidden:
		return http.StatusForbidden
	case usecase.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func getIdentityFromContext(c echo.Context) (usecase.Identity, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Identity{}, false
	}
	email, _ := c.Get(middleware.CtxUserEmailKey).(string)
	return usecase.Identity{UserID: id, Email: email}, true
}
