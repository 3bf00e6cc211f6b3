package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shaiso/flowctl/internal/domain"
)

// DefaultParallelism — сколько flows выполняется одновременно, если не задано.
const DefaultParallelism = 3

// Project — граф зависимостей между flows.
//
// Хранит flows в порядке объявления, дескрипторы зависимостей каждого flow
// и dag degree — число дескрипторов, которые должны произойти до старта.
//
// Инвариант: dagDegree[f] == len(dependedFlows[f]).
//
// Project не потокобезопасен: граф собирается до запуска, а планировщик
// только читает его.
type Project struct {
	// Name — имя проекта.
	Name string

	// Path — путь проекта на платформе.
	Path string

	// Parallelism — максимум одновременно выполняемых flows.
	Parallelism int

	flows         []*domain.Flow
	index         map[string]*domain.Flow
	dependedFlows map[string][]string
	dagDegree     map[string]int

	logger *slog.Logger
}

// ProjectConfig — параметры нового проекта.
type ProjectConfig struct {
	Name        string
	Path        string
	Parallelism int // default: 3
	Logger      *slog.Logger
}

// NewProject создаёт пустой проект.
func NewProject(cfg ProjectConfig) *Project {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Project{
		Name:          cfg.Name,
		Path:          cfg.Path,
		Parallelism:   parallelism,
		index:         make(map[string]*domain.Flow),
		dependedFlows: make(map[string][]string),
		dagDegree:     make(map[string]int),
		logger:        logger.With("project", cfg.Name),
	}
}

// AddFlow регистрирует flow с его зависимостями.
//
// Отклоняет flow, если имя уже занято или какой-то дескриптор не делится
// на 2–3 токена. Все дескрипторы проверяются до изменения графа, поэтому
// при ошибке dagDegree остаётся прежним.
//
// depended заменяет flow.DependsOn: после добавления в flow лежит копия
// тех зависимостей, с которыми он зарегистрирован.
func (p *Project) AddFlow(flow *domain.Flow, depended []string) error {
	if err := p.checkFlow(flow, depended); err != nil {
		p.logger.Warn("flow rejected", "error", err)
		return err
	}

	flow.DependsOn = slices.Clone(depended)

	p.flows = append(p.flows, flow)
	p.index[flow.Name] = flow
	p.dagDegree[flow.Name] = 0

	for _, dep := range depended {
		p.dagDegree[flow.Name]++
		p.dependedFlows[flow.Name] = append(p.dependedFlows[flow.Name], dep)
	}

	p.logger.Debug("flow added",
		"flow", flow.Name,
		"depends_on", depended,
		"dag_degree", p.dagDegree[flow.Name],
	)

	return nil
}

// checkFlow проверяет flow перед добавлением.
func (p *Project) checkFlow(flow *domain.Flow, depended []string) error {
	if flow == nil || flow.Name == "" {
		return NewConfigError("", "name", "flow has empty name", ErrEmptyFlowName)
	}

	if _, exists := p.index[flow.Name]; exists {
		return NewConfigError(flow.Name, "name",
			fmt.Sprintf("duplicate flow name: %s", flow.Name), ErrDuplicateFlow)
	}

	for _, dep := range depended {
		d, ok := domain.ParseDescriptor(dep)
		if !ok {
			return NewConfigError(flow.Name, "depends_on",
				fmt.Sprintf("invalid dependency %q: expected name.event or name.stage.event", dep),
				ErrInvalidDescriptor)
		}
		if !d.IsKnown() {
			// Синтаксически корректно, но такое событие никогда не придёт.
			p.logger.Warn("dependency names unknown event",
				"flow", flow.Name,
				"dependency", dep,
			)
		}
	}

	return nil
}

// RemoveFlow удаляет flow вместе с его зависимостями.
// Дескрипторы других flows, ссылающиеся на него, не трогаются.
func (p *Project) RemoveFlow(name string) error {
	if _, exists := p.index[name]; !exists {
		return NewConfigError(name, "name", "flow not found", ErrFlowNotFound)
	}

	for i, f := range p.flows {
		if f.Name == name {
			p.flows = append(p.flows[:i], p.flows[i+1:]...)
			break
		}
	}
	delete(p.index, name)
	delete(p.dependedFlows, name)
	delete(p.dagDegree, name)

	p.logger.Debug("flow removed", "flow", name)
	return nil
}

// CheckDAGValid проверяет граф на циклы (алгоритм Кана).
//
// Рёбра: flow из первого токена дескриптора → зависимый flow.
// Работает на копии dagDegree и не меняет проект.
// Возвращает false, если обнаружен цикл или зависимость от flow вне проекта.
func (p *Project) CheckDAGValid() bool {
	// Копируем dagDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(p.dagDegree))
	for name, degree := range p.dagDegree {
		inDegree[name] = degree
	}

	// Очередь flows с inDegree = 0
	queue := make([]string, 0, len(p.flows))
	for _, f := range p.flows {
		if inDegree[f.Name] == 0 {
			queue = append(queue, f.Name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++

		// Уменьшаем inDegree у зависимых flows — по разу на каждый дескриптор
		for _, f := range p.flows {
			if f.Name == name {
				continue
			}
			for _, dep := range p.dependedFlows[f.Name] {
				if dependencyFlow(dep) != name {
					continue
				}
				inDegree[f.Name]--
				if inDegree[f.Name] == 0 {
					queue = append(queue, f.Name)
				}
			}
		}
	}

	return visited == len(p.flows)
}

// Validate выполняет полную проверку перед запуском.
//
// В отличие от CheckDAGValid различает причины: пустой проект,
// зависимость от неизвестного flow, цикл.
func (p *Project) Validate() error {
	if len(p.flows) == 0 {
		return NewConfigError("", "flows", "project has no flows", ErrEmptyProject)
	}

	for _, f := range p.flows {
		for _, dep := range p.dependedFlows[f.Name] {
			if _, exists := p.index[dependencyFlow(dep)]; !exists {
				return NewConfigError(f.Name, "depends_on",
					fmt.Sprintf("depends on unknown flow: %s", dependencyFlow(dep)),
					ErrUnknownDependency)
			}
		}
	}

	if !p.CheckDAGValid() {
		return NewConfigError("", "depends_on", "flows form a dependency cycle", ErrCyclicDependency)
	}

	return nil
}

// dependencyFlow возвращает имя flow из дескриптора (первый токен).
func dependencyFlow(descriptor string) string {
	name, _, _ := strings.Cut(descriptor, ".")
	return name
}

// Flows возвращает flows в порядке объявления.
func (p *Project) Flows() []*domain.Flow {
	out := make([]*domain.Flow, len(p.flows))
	copy(out, p.flows)
	return out
}

// Flow возвращает flow по имени или nil.
func (p *Project) Flow(name string) *domain.Flow {
	return p.index[name]
}

// DependsOn возвращает копию дескрипторов зависимостей flow.
func (p *Project) DependsOn(name string) []string {
	deps := p.dependedFlows[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// DagDegree возвращает число зависимостей flow.
func (p *Project) DagDegree(name string) int {
	return p.dagDegree[name]
}

// MaxDagDegree возвращает максимальный dag degree среди flows.
func (p *Project) MaxDagDegree() int {
	maxDegree := 0
	for _, degree := range p.dagDegree {
		maxDegree = max(maxDegree, degree)
	}
	return maxDegree
}

// Len возвращает количество flows.
func (p *Project) Len() int {
	return len(p.flows)
}
