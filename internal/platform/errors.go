package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse — ответ платформы не удалось разобрать
	// или в нём нет обязательных полей.
	ErrMalformedResponse = errors.New("malformed platform response")

	// ErrTaskNotFound — задачи с таким именем нет на платформе.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmptyFlowName — flow без имени нельзя сохранить.
	ErrEmptyFlowName = errors.New("flow has empty name")
)

// APIError — ошибка, которую вернула платформа.
type APIError struct {
	Status  int    // HTTP-код ответа
	Code    string // код из конверта
	Message string // сообщение из конверта
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform error: HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error: HTTP %d %s", e.Status, e.Code)
}

// IsNotFound проверяет, что платформа ответила 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
