package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrUnexpectedScheduler — планировщик упал из-за непредвиденной ошибки.
	// Run прерывается немедленно, воркеры не дожидаются.
	ErrUnexpectedScheduler = errors.New("unexpected scheduler failure")

	// ErrProjectStalled — flows ждут событий, которые уже не произойдут.
	ErrProjectStalled = errors.New("project stalled: flows wait for events that cannot occur")

	// ErrFlowsFailed — run завершён, но часть flows упала.
	ErrFlowsFailed = errors.New("some flows failed")

	// ErrWorkerPanic — воркер упал с паникой при выполнении flow.
	ErrWorkerPanic = errors.New("worker panic")

	// ErrProjectAlreadyActive — проект с таким именем уже выполняется.
	ErrProjectAlreadyActive = errors.New("project already running")

	// ErrSchedulerUsed — планировщик уже запускался.
	ErrSchedulerUsed = errors.New("scheduler already started")
)
