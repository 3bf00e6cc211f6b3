package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowctl/internal/domain"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// RunRepo хранит историю запусков проектов.
//
// Реализует orchestrator.RunRecorder.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// CreateRun записывает новый run.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.ProjectRun) error {
	query := `
		INSERT INTO project_runs (id, project, status, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Project,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun записывает итог run.
func (r *RunRepo) FinishRun(ctx context.Context, run *domain.ProjectRun) error {
	query := `
		UPDATE project_runs
		SET status = $2, finished_at = $3, error = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun возвращает run по ID.
func (r *RunRepo) GetRun(ctx context.Context, id uuid.UUID) (*domain.ProjectRun, error) {
	query := `
		SELECT id, project, status, started_at, finished_at, error
		FROM project_runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns возвращает последние runs проекта, новые первыми.
func (r *RunRepo) ListRuns(ctx context.Context, project string, limit int) ([]domain.ProjectRun, error) {
	query := `
		SELECT id, project, status, started_at, finished_at, error
		FROM project_runs
		WHERE project = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, project, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ProjectRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpsertFlowRun записывает состояние flow внутри run.
func (r *RunRepo) UpsertFlowRun(ctx context.Context, flowRun *domain.FlowRun) error {
	query := `
		INSERT INTO flow_runs (run_id, flow, status, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, flow) DO UPDATE
		SET status = EXCLUDED.status,
		    finished_at = EXCLUDED.finished_at,
		    error = EXCLUDED.error
	`
	_, err := r.pool.Exec(ctx, query,
		flowRun.RunID,
		flowRun.Flow,
		flowRun.Status,
		flowRun.StartedAt,
		flowRun.FinishedAt,
		nullString(flowRun.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert flow run: %w", err)
	}
	return nil
}

// ListFlowRuns возвращает flows run в порядке запуска.
func (r *RunRepo) ListFlowRuns(ctx context.Context, runID uuid.UUID) ([]domain.FlowRun, error) {
	query := `
		SELECT run_id, flow, status, started_at, finished_at, error
		FROM flow_runs
		WHERE run_id = $1
		ORDER BY started_at, flow
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list flow runs: %w", err)
	}
	defer rows.Close()

	var flowRuns []domain.FlowRun
	for rows.Next() {
		var fr domain.FlowRun
		var flowErr *string
		if err := rows.Scan(
			&fr.RunID,
			&fr.Flow,
			&fr.Status,
			&fr.StartedAt,
			&fr.FinishedAt,
			&flowErr,
		); err != nil {
			return nil, fmt.Errorf("scan flow run: %w", err)
		}
		if flowErr != nil {
			fr.Error = *flowErr
		}
		flowRuns = append(flowRuns, fr)
	}
	return flowRuns, rows.Err()
}

// --- Helpers ---

func scanRun(row pgx.Row) (*domain.ProjectRun, error) {
	var run domain.ProjectRun
	var runErr *string

	err := row.Scan(
		&run.ID,
		&run.Project,
		&run.Status,
		&run.StartedAt,
		&run.FinishedAt,
		&runErr,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if runErr != nil {
		run.Error = *runErr
	}
	return &run, nil
}

// clampLimit ограничивает размер выборки.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRunsLimit
	}
	return min(limit, maxRunsLimit)
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
