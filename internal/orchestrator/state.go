package orchestrator

import (
	"container/list"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
)

// RunState — состояние выполнения проекта в памяти.
//
// Очереди индексированы глубиной зависимостей: queues[0] — flows, готовые
// к запуску, queues[k] — flows с k дескрипторами, которые ещё ждут.
// Flow находится ровно в одной очереди, пока его не отправили в пул.
//
// Все поля защищены одним мьютексом: события записываются воркерами
// конкурентно, а продвижение flows выполняется под тем же замком.
type RunState struct {
	mu sync.Mutex

	// order — имена flows в порядке объявления.
	order []string
	flows map[string]*domain.Flow

	// occurred — записанные события. Только растёт.
	occurred map[domain.Event]struct{}

	// waiting — flow → события, которые должны произойти до старта.
	waiting map[string]map[domain.Event]struct{}

	queues   []*list.List
	elements map[string]*list.Element
	depth    map[string]int

	submitted []string
	running   int
	completed []string
	failed    []string

	// lastProgress — время последнего изменения состояния.
	lastProgress time.Time
}

// NewRunState раскладывает flows проекта по очередям.
//
// Flow без зависимостей сразу попадает в queues[0], остальные —
// в queues[dagDegree] и в waiting.
func NewRunState(project *engine.Project) *RunState {
	s := &RunState{
		flows:        make(map[string]*domain.Flow, project.Len()),
		occurred:     make(map[domain.Event]struct{}),
		waiting:      make(map[string]map[domain.Event]struct{}),
		queues:       make([]*list.List, project.MaxDagDegree()+1),
		elements:     make(map[string]*list.Element, project.Len()),
		depth:        make(map[string]int, project.Len()),
		lastProgress: time.Now(),
	}

	for i := range s.queues {
		s.queues[i] = list.New()
	}

	for _, flow := range project.Flows() {
		s.order = append(s.order, flow.Name)
		s.flows[flow.Name] = flow

		degree := project.DagDegree(flow.Name)
		if degree > 0 {
			required := make(map[domain.Event]struct{}, degree)
			for _, descriptor := range project.DependsOn(flow.Name) {
				required[domain.Event(descriptor)] = struct{}{}
			}
			s.waiting[flow.Name] = required
		}

		s.elements[flow.Name] = s.queues[degree].PushBack(flow.Name)
		s.depth[flow.Name] = degree
	}

	return s
}

// Emit записывает событие и продвигает flows, чьи зависимости выполнены.
//
// Повторное событие ничего не меняет: возвращается false.
// promoted — flows, перенесённые в queues[0] этим событием.
func (s *RunState) Emit(event domain.Event) (promoted []string, recorded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurred[event]; ok {
		return nil, false
	}

	s.occurred[event] = struct{}{}
	s.lastProgress = time.Now()

	return s.checkWaitingFlows(), true
}

// checkWaitingFlows переносит в queues[0] каждый ожидающий flow,
// у которого все требуемые события произошли. Вызывается под s.mu.
func (s *RunState) checkWaitingFlows() []string {
	var promoted []string

	for _, name := range s.order {
		required, ok := s.waiting[name]
		if !ok {
			continue
		}

		ready := true
		for event := range required {
			if _, ok := s.occurred[event]; !ok {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}

		s.queues[s.depth[name]].Remove(s.elements[name])
		delete(s.waiting, name)
		s.elements[name] = s.queues[0].PushBack(name)
		s.depth[name] = 0
		promoted = append(promoted, name)
	}

	return promoted
}

// PopReady забирает первый flow из queues[0] и помечает его отправленным.
// Возвращает nil, если готовых flows нет.
//
// Если пул не принял flow, его нужно вернуть через Requeue.
func (s *RunState) PopReady() *domain.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.queues[0].Front()
	if e == nil {
		return nil
	}

	name := s.queues[0].Remove(e).(string)
	delete(s.elements, name)
	delete(s.depth, name)

	s.submitted = append(s.submitted, name)
	s.running++
	s.lastProgress = time.Now()

	return s.flows[name]
}

// Requeue возвращает flow, взятый PopReady, в начало queues[0].
func (s *RunState) Requeue(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.submitted, name)
	if i < 0 {
		return
	}
	s.submitted = slices.Delete(s.submitted, i, i+1)
	s.running--

	s.elements[name] = s.queues[0].PushFront(name)
	s.depth[name] = 0
}

// Finish учитывает завершение flow.
func (s *RunState) Finish(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	if err != nil {
		s.failed = append(s.failed, name)
	} else {
		s.completed = append(s.completed, name)
	}
	s.lastProgress = time.Now()
}

// Running возвращает число отправленных и ещё не завершённых flows.
func (s *RunState) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done возвращает true, когда очереди пусты и никто не ждёт.
func (s *RunState) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiting) > 0 {
		return false
	}
	for _, q := range s.queues {
		if q.Len() > 0 {
			return false
		}
	}
	return true
}

// StalledFor возвращает, как долго run не может продвинуться:
// воркеров нет, готовых flows нет, а ожидающие остались.
// Ноль, если run не застрял.
func (s *RunState) StalledFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running > 0 || s.queues[0].Len() > 0 || len(s.waiting) == 0 {
		return 0
	}
	return now.Sub(s.lastProgress)
}

// Waiting возвращает имена ожидающих flows в порядке объявления.
func (s *RunState) Waiting() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, name := range s.order {
		if _, ok := s.waiting[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// WaitingCount возвращает число ожидающих flows.
func (s *RunState) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// Failed возвращает упавшие flows.
func (s *RunState) Failed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.failed)
}

// HasOccurred проверяет, записано ли событие.
func (s *RunState) HasOccurred(event domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.occurred[event]
	return ok
}

// Stats — снимок состояния run.
type Stats struct {
	Occurred  []string            `json:"occurred"`
	Waiting   map[string][]string `json:"waiting"` // flow → недостающие события
	Queues    []int               `json:"queues"`
	Submitted []string            `json:"submitted"`
	Running   int                 `json:"running"`
	Completed []string            `json:"completed"`
	Failed    []string            `json:"failed"`
}

// Stats возвращает копию состояния для API и тестов.
func (s *RunState) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Occurred:  make([]string, 0, len(s.occurred)),
		Waiting:   make(map[string][]string, len(s.waiting)),
		Queues:    make([]int, len(s.queues)),
		Submitted: slices.Clone(s.submitted),
		Running:   s.running,
		Completed: slices.Clone(s.completed),
		Failed:    slices.Clone(s.failed),
	}

	for event := range s.occurred {
		stats.Occurred = append(stats.Occurred, string(event))
	}
	slices.Sort(stats.Occurred)

	for name, required := range s.waiting {
		missing := []string{}
		for event := range required {
			if _, ok := s.occurred[event]; !ok {
				missing = append(missing, string(event))
			}
		}
		slices.Sort(missing)
		stats.Waiting[name] = missing
	}

	for i, q := range s.queues {
		stats.Queues[i] = q.Len()
	}

	return stats
}
