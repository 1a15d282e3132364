package usecase

import (
	"errors"
	"fmt"
	"strings"

	repo "shop/internal/repository"
)

type ErrorKind string

const (
	KindNotFound             ErrorKind = "not_found"
	KindValidation           ErrorKind = "validation"
	KindConflict             ErrorKind = "conflict"
	KindInconsistentCheckout ErrorKind = "inconsistent_checkout"
	KindPersistence          ErrorKind = "persistence"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindForbidden            ErrorKind = "forbidden"
)

// usecaseが返すエラー。handlerはKindでHTTPステータスを決める。
type AppError struct {
	Kind ErrorKind
	// cart.AddItem など
	Op string
	// 利用者に返してよい説明（IDを含む）
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op, message string, err error) *AppError {
	return &AppError{Kind: kind, Op: op, Message: message, Err: err}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

// AppErrorでなければ空文字
func KindOf(err error) ErrorKind {
	if ae, ok := AsAppError(err); ok {
		return ae.Kind
	}
	return ""
}

// repositoryのエラーをKindに振り分ける
func fromRepo(op, message string, err error) *AppError {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newError(KindNotFound, op, message+": not found", err)
	case errors.Is(err, repo.ErrConflict), errors.Is(err, repo.ErrLockTimeout):
		return newError(KindConflict, op, message+": concurrent update", err)
	default:
		return newError(KindPersistence, op, message, err)
	}
}

// ロック内で返したAppErrorはそのまま、ロック自体の失敗は振り分ける
func fromLock(op, message string, err error) error {
	if _, ok := AsAppError(err); ok {
		return err
	}
	return fromRepo(op, message, err)
}

// スナップショット時にカタログから消えていた商品
type MissingProductsError struct {
	ProductIDs []int64
}

func (e *MissingProductsError) Error() string {
	ids := make([]string, 0, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return "products not found: " + strings.Join(ids, ",")
}

// 注文は作成済みだがカートを空にできなかった。
// 同じ冪等キーで再実行すればクリアまで完了する。
type InconsistentCheckoutError struct {
	OrderID        int64
	UserID         int64
	IdempotencyKey string
	Err            error
}

func (e *InconsistentCheckoutError) Error() string {
	return fmt.Sprintf("order %d saved but cart of user %d not cleared (key %q): %v",
		e.OrderID, e.UserID, e.IdempotencyKey, e.Err)
}

func (e *InconsistentCheckoutError) Unwrap() error {
	return e.Err
}
