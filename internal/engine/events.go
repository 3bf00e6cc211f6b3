package engine

import (
	"github.com/shaiso/flowctl/internal/domain"
)

// DeriveEvents возвращает события, которые следуют из опрошенного состояния flow.
//
// Правила проверяются в фиксированном порядке, несколько событий за один
// опрос — норма. Функция чистая: повторная выдача уже случившихся событий
// отсекается идемпотентной записью в планировщике.
//
//	status == running                         → {flow}.start
//	SNAPSHOT == RUNNING                       → {flow}.initial_sync.start
//	SNAPSHOT == FINISH                        → {flow}.initial_sync.end
//	CDC == FINISH && status == running        → {flow}.cdc.start
//	CDC == FINISH && status == complete       → {flow}.cdc.end
//	status == complete                        → {flow}.end
func DeriveEvents(flow string, state *domain.FlowState) []domain.Event {
	if state == nil {
		return nil
	}

	events := make([]domain.Event, 0, 3)

	if state.Status == domain.FlowStatusRunning {
		events = append(events, domain.NewEvent(flow, domain.EventStart))
	}

	switch state.SnapshotStatus() {
	case domain.MilestoneRunning:
		events = append(events, domain.NewEvent(flow, domain.StageInitialSync, domain.EventStart))
	case domain.MilestoneFinish:
		events = append(events, domain.NewEvent(flow, domain.StageInitialSync, domain.EventEnd))
	}

	if state.CDCStatus() == domain.MilestoneFinish {
		switch state.Status {
		case domain.FlowStatusRunning:
			events = append(events, domain.NewEvent(flow, domain.StageCDC, domain.EventStart))
		case domain.FlowStatusComplete:
			events = append(events, domain.NewEvent(flow, domain.StageCDC, domain.EventEnd))
		}
	}

	if state.Status == domain.FlowStatusComplete {
		events = append(events, domain.NewEvent(flow, domain.EventEnd))
	}

	return events
}
