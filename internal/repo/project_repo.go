package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowctl/internal/domain"
)

// ProjectRecord — сохранённое описание проекта.
type ProjectRecord struct {
	Spec      domain.ProjectSpec `json:"spec"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProjectRepo хранит описания проектов (JSONB по имени).
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo создаёт новый ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// Save создаёт или перезаписывает проект с тем же именем.
func (r *ProjectRepo) Save(ctx context.Context, spec *domain.ProjectSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		INSERT INTO projects (name, spec, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET spec = EXCLUDED.spec, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, spec.Name, specJSON); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// Get возвращает проект по имени.
func (r *ProjectRepo) Get(ctx context.Context, name string) (*ProjectRecord, error) {
	query := `
		SELECT spec, created_at, updated_at
		FROM projects
		WHERE name = $1
	`
	return scanProject(r.pool.QueryRow(ctx, query, name))
}

// List возвращает все проекты по имени.
func (r *ProjectRepo) List(ctx context.Context) ([]ProjectRecord, error) {
	query := `
		SELECT spec, created_at, updated_at
		FROM projects
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRecord
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Delete удаляет проект. История runs остаётся.
func (r *ProjectRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*ProjectRecord, error) {
	var p ProjectRecord
	var specJSON []byte

	err := row.Scan(&specJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if err := json.Unmarshal(specJSON, &p.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	return &p, nil
}
