package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/flowctl/internal/repo"
)

// ErrorCode — машиночитаемый код ошибки в ответе.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// codeForStatus сопоставляет HTTP-статус коду ошибки.
var codeForStatus = map[int]ErrorCode{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusServiceUnavailable:  ErrCodeUnavailable,
	http.StatusInternalServerError: ErrCodeInternalError,
}

// ErrorResponse — тело ответа с ошибкой: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail описывает ошибку.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — тело ответа с одним объектом.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := codeForStatus[status]
	if !ok {
		code = ErrCodeInternalError
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// Success отвечает 200 с объектом.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}

// List отвечает 200 со списком.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// BadRequest отвечает 400.
func BadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// NotFound отвечает 404.
func NotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// Unavailable отвечает 503: нужное хранилище не подключено.
func Unavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, message)
}

// InternalError логирует err и отвечает 500 без подробностей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("api internal error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// HandleRepoError отвечает на ошибку хранилища.
// repo.ErrNotFound даёт 404 с notFoundMsg, остальное 500.
// Возвращает false, если err == nil и ответ ещё не отправлен.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	default:
		InternalError(w, logger, err)
	}
	return true
}
