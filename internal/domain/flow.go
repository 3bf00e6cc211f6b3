package domain

import (
	"encoding/json"
)

// Flow — именованная задача репликации данных на удалённой платформе.
//
// Flow создаётся при загрузке проекта и далее только читается графом.
// Определение (Definition) формируется внешним DSL и передаётся платформе
// как есть при сохранении.
type Flow struct {
	// Name — уникальное имя flow в рамках проекта (например, "ingest").
	Name string `json:"name"`

	// ID — идентификатор задачи на платформе.
	// Пустой, пока flow ни разу не сохранялся.
	ID string `json:"id,omitempty"`

	// DependsOn — дескрипторы зависимостей: "name.event" или "name.stage.event".
	// Flow стартует только когда произошли все перечисленные события.
	DependsOn []string `json:"depends_on,omitempty"`

	// Definition — JSON-описание пайплайна (nodes/DAG) для платформы.
	Definition json.RawMessage `json:"definition,omitempty"`
}

// FlowState — состояние flow, полученное опросом платформы.
type FlowState struct {
	// Status — статус задачи на платформе.
	Status FlowStatus `json:"status"`

	// Milestone — фазы выполнения. Nil, пока задача не прошла инициализацию.
	Milestone *Milestones `json:"milestone,omitempty"`
}

// Milestones — набор фаз выполнения задачи.
type Milestones struct {
	Snapshot *MilestoneState `json:"SNAPSHOT,omitempty"`
	CDC      *MilestoneState `json:"CDC,omitempty"`
}

// MilestoneState — состояние одной фазы.
type MilestoneState struct {
	Status MilestoneStatus `json:"status"`
}

// SnapshotStatus возвращает статус фазы SNAPSHOT или пустую строку.
func (s *FlowState) SnapshotStatus() MilestoneStatus {
	if s == nil || s.Milestone == nil || s.Milestone.Snapshot == nil {
		return ""
	}
	return s.Milestone.Snapshot.Status
}

// CDCStatus возвращает статус фазы CDC или пустую строку.
func (s *FlowState) CDCStatus() MilestoneStatus {
	if s == nil || s.Milestone == nil || s.Milestone.CDC == nil {
		return ""
	}
	return s.Milestone.CDC.Status
}

// ProjectSpec — описание проекта (JSON-документ).
//
// Пример:
//
//	{
//	  "name": "warehouse",
//	  "parallelism": 2,
//	  "flows": [
//	    {"name": "ingest"},
//	    {"name": "transform", "depends_on": ["ingest.initial_sync.end"]}
//	  ]
//	}
type ProjectSpec struct {
	// Name — имя проекта.
	Name string `json:"name"`

	// Path — путь проекта (для группировки на платформе).
	Path string `json:"path,omitempty"`

	// Parallelism — максимум одновременно выполняемых flows.
	Parallelism int `json:"parallelism,omitempty"`

	// Flows — flows в порядке объявления.
	Flows []Flow `json:"flows"`
}
