package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// handlerがそのまま返すエラーコード
type ErrorCode string

const (
	CodeNotAuthenticated  ErrorCode = "NOT_AUTHENTICATED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	CodeCartNotFound      ErrorCode = "CART_NOT_FOUND"
	CodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeDuplicateReview   ErrorCode = "DUPLICATE_REVIEW"
	CodeInternal          ErrorCode = "INTERNAL"
)

// 在庫不足の内訳
type StockShortage struct {
	Requested int64 `json:"requested"`
	Available int64 `json:"available"`
}

type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
	Stock   *StockShortage

	// ログ用。レスポンスには出さない
	cause error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.cause }

// 内部原因（INTERNALのときだけ入る）
func (e *HTTPError) Cause() error { return e.cause }

// コードはステータスから決める
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return CodeNotAuthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest:
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

func errNotAuthenticated() error {
	return &HTTPError{Status: http.StatusUnauthorized, Code: CodeNotAuthenticated, Message: "unauthorized"}
}

func errInvalidInput(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeInvalidInput, Message: message}
}

func errProductNotFound() error {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeProductNotFound, Message: "product not found"}
}

func errCartNotFound() error {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeCartNotFound, Message: "cart not found"}
}

func errItemNotFound() error {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeItemNotFound, Message: "item not found"}
}

func errDuplicateReview() error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeDuplicateReview, Message: "you have already reviewed this product"}
}

func errInsufficientStock(requested, available int64) error {
	return stockShortage(requested, available, "insufficient stock: only %d more available")
}

// 数量の置き換え用。availableは追加分ではなく持てる上限
func errStockCeiling(requested, ceiling int64) error {
	return stockShortage(requested, ceiling, "insufficient stock: only %d available")
}

func stockShortage(requested, available int64, format string) error {
	if available < 0 {
		available = 0
	}
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf(format, available),
		Stock:   &StockShortage{Requested: requested, Available: available},
	}
}

// 原因は隠して "db error" にする
func errInternal(cause error) error {
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "db error",
		cause:   cause,
	}
}

// Tx内で返したHTTPErrorはそのまま、それ以外はINTERNAL
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := AsHTTPError(err); ok {
		return he
	}
	return errInternal(err)
}
