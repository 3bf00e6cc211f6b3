package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shaiso/flowctl/internal/domain"
)

// ParseProjectSpec парсит JSON-документ проекта.
func ParseProjectSpec(data []byte) (*domain.ProjectSpec, error) {
	var spec domain.ProjectSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	if spec.Name == "" {
		return nil, NewConfigError("", "name", "project has empty name", ErrInvalidSpec)
	}

	return &spec, nil
}

// ReadProjectSpec читает и парсит документ проекта из reader.
func ReadProjectSpec(r io.Reader) (*domain.ProjectSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read project spec: %w", err)
	}
	return ParseProjectSpec(data)
}

// LoadProjectSpec читает документ проекта из файла.
func LoadProjectSpec(path string) (*domain.ProjectSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project spec: %w", err)
	}
	defer f.Close()

	return ReadProjectSpec(f)
}

// BuildProject собирает Project из спецификации.
//
// Flows добавляются в порядке объявления. Первая ошибка AddFlow прерывает
// сборку. Циклы проверяет Validate.
func BuildProject(spec *domain.ProjectSpec, logger *slog.Logger) (*Project, error) {
	if spec == nil {
		return nil, ErrInvalidSpec
	}

	p := NewProject(ProjectConfig{
		Name:        spec.Name,
		Path:        spec.Path,
		Parallelism: spec.Parallelism,
		Logger:      logger,
	})

	for i := range spec.Flows {
		flow := &spec.Flows[i]
		if err := p.AddFlow(flow, flow.DependsOn); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// ToSpec возвращает спецификацию проекта (для сохранения в БД).
func (p *Project) ToSpec() *domain.ProjectSpec {
	spec := &domain.ProjectSpec{
		Name:        p.Name,
		Path:        p.Path,
		Parallelism: p.Parallelism,
		Flows:       make([]domain.Flow, 0, len(p.flows)),
	}

	for _, f := range p.flows {
		flow := *f
		flow.DependsOn = p.DependsOn(f.Name)
		spec.Flows = append(spec.Flows, flow)
	}

	return spec
}
