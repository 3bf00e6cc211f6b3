package worker

import "errors"

// Ошибки выполнения flow.
var (
	// ErrSaveFailed — не удалось сохранить flow на платформе.
	ErrSaveFailed = errors.New("flow save failed")

	// ErrStartFailed — не удалось запустить flow.
	ErrStartFailed = errors.New("flow start failed")

	// ErrMalformedLimit — слишком много подряд опросов с ошибкой связи
	// или неразборчивым ответом.
	ErrMalformedLimit = errors.New("too many malformed status responses")

	// ErrFlowStuck — flow слишком долго остаётся в статусе edit.
	ErrFlowStuck = errors.New("flow stuck in edit status")

	// ErrFlowFailed — платформа завершила flow неуспешно (error, stop, schedule_failed).
	ErrFlowFailed = errors.New("flow failed on platform")
)
