package domain

// FlowStatus — статус задачи на платформе репликации.
//
// Жизненный цикл:
//
//	edit → wait_start → scheduling → running → complete
//	                                        ↘ error
//	                      running → stopping → stop
type FlowStatus string

const (
	// FlowStatusEdit — задача в редактировании, ещё не запускалась.
	FlowStatusEdit FlowStatus = "edit"

	// FlowStatusWaitStart — задача принята к запуску.
	FlowStatusWaitStart FlowStatus = "wait_start"

	// FlowStatusScheduling — платформа выбирает агента.
	FlowStatusScheduling FlowStatus = "scheduling"

	// FlowStatusScheduleFailed — агент не найден.
	FlowStatusScheduleFailed FlowStatus = "schedule_failed"

	// FlowStatusRunning — задача выполняется.
	FlowStatusRunning FlowStatus = "running"

	// FlowStatusStopping — задача останавливается.
	FlowStatusStopping FlowStatus = "stopping"

	// FlowStatusStop — задача остановлена.
	FlowStatusStop FlowStatus = "stop"

	// FlowStatusComplete — задача успешно завершена.
	FlowStatusComplete FlowStatus = "complete"

	// FlowStatusError — задача завершилась с ошибкой.
	FlowStatusError FlowStatus = "error"
)

// IsFailed возвращает true, если статус финальный и неуспешный.
// Такая задача уже не дойдёт до complete без вмешательства пользователя.
func (s FlowStatus) IsFailed() bool {
	switch s {
	case FlowStatusError, FlowStatusStop, FlowStatusScheduleFailed:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s FlowStatus) IsTerminal() bool {
	return s == FlowStatusComplete || s.IsFailed()
}

// MilestoneStatus — статус фазы (SNAPSHOT, CDC).
type MilestoneStatus string

const (
	MilestoneWaiting MilestoneStatus = "WAITING"
	MilestoneRunning MilestoneStatus = "RUNNING"
	MilestoneFinish  MilestoneStatus = "FINISH"
	MilestoneError   MilestoneStatus = "ERROR"
)

// RunStatus — статус выполнения проекта.
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsTerminal возвращает true, если run завершён.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// FlowRunStatus — статус выполнения одного flow внутри run.
type FlowRunStatus string

const (
	FlowRunRunning   FlowRunStatus = "RUNNING"
	FlowRunCompleted FlowRunStatus = "COMPLETED"
	FlowRunFailed    FlowRunStatus = "FAILED"
)
