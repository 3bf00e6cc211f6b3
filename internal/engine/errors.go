package engine

import "errors"

// Ошибки конфигурации проекта.
var (
	// ErrEmptyProject — проект не содержит flows.
	ErrEmptyProject = errors.New("project has no flows")

	// ErrEmptyFlowName — flow без имени.
	ErrEmptyFlowName = errors.New("flow has empty name")

	// ErrDuplicateFlow — flow с таким именем уже есть в проекте.
	ErrDuplicateFlow = errors.New("duplicate flow name")

	// ErrFlowNotFound — flow нет в проекте.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrInvalidDescriptor — дескриптор зависимости не из 2–3 токенов.
	ErrInvalidDescriptor = errors.New("invalid dependency descriptor")

	// ErrUnknownDependency — дескриптор ссылается на flow вне проекта.
	ErrUnknownDependency = errors.New("flow depends on unknown flow")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrInvalidSpec — документ проекта не разобран.
	ErrInvalidSpec = errors.New("invalid project spec")
)

// ConfigError — ошибка конфигурации с контекстом.
type ConfigError struct {
	Flow    string // flow, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Flow != "" {
		return "flow " + e.Flow + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создаёт новую ошибку конфигурации.
func NewConfigError(flow, field, message string, err error) *ConfigError {
	return &ConfigError{
		Flow:    flow,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
