package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tasklane/internal/common"
	"tasklane/internal/domain/model"
)

// TaskRepository is ownership-agnostic: callers that need owner scoping
// must filter on OwnerID themselves (the service layer always does).
type TaskRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, task *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	ListByOwner(ctx context.Context, ownerID string, completed *bool) ([]model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type pgTaskRepository struct {
	db *sql.DB
}

func NewPgTaskRepository(db *sql.DB) TaskRepository {
	return &pgTaskRepository{db: db}
}

// Insert writes one task row. When tx is non-nil the insert joins that
// transaction; bulk import relies on this to keep a whole batch atomic.
func (r *pgTaskRepository) Insert(ctx context.Context, tx *sql.Tx, task *model.Task) error {
	query := `INSERT INTO tasks (id, title, description, due_date, completed, owner_id)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, task.ID, task.Title, task.Description, task.DueDate, task.Completed, task.OwnerID)
	} else {
		_, err = r.db.ExecContext(ctx, query, task.ID, task.Title, task.Description, task.DueDate, task.Completed, task.OwnerID)
	}
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Insert: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT id, title, description, due_date, completed, owner_id, created_at
	          FROM tasks WHERE id = $1`
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.Title, &task.Description, &task.DueDate, &task.Completed, &task.OwnerID, &task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.FindByID: %w", err)
	}
	return task, nil
}

func (r *pgTaskRepository) ListByOwner(ctx context.Context, ownerID string, completed *bool) ([]model.Task, error) {
	query := `SELECT id, title, description, due_date, completed, owner_id, created_at
	          FROM tasks WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if completed != nil {
		query += ` AND completed = $2`
		args = append(args, *completed)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTaskRepository.ListByOwner query: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Completed, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgTaskRepository.ListByOwner scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.ListByOwner rows.Err: %w", err)
	}
	return tasks, nil
}

// Update applies only the fields present in the patch, building the SET
// clause from non-nil members. An empty patch is a no-op read.
func (r *pgTaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var sets []string
	var args []interface{}
	argID := 1

	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argID))
		args = append(args, *patch.Title)
		argID++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argID))
		args = append(args, *patch.Description)
		argID++
	}
	if patch.DueDate != nil {
		sets = append(sets, fmt.Sprintf("due_date = $%d", argID))
		args = append(args, *patch.DueDate)
		argID++
	}
	if patch.Completed != nil {
		sets = append(sets, fmt.Sprintf("completed = $%d", argID))
		args = append(args, *patch.Completed)
		argID++
	}

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d
	          RETURNING id, title, description, due_date, completed, owner_id, created_at`,
		strings.Join(sets, ", "), argID)
	args = append(args, id)

	task := &model.Task{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&task.ID, &task.Title, &task.Description, &task.DueDate, &task.Completed, &task.OwnerID, &task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.Update: %w", err)
	}
	return task, nil
}

func (r *pgTaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("pgTaskRepository.Delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgTaskRepository.Delete rows affected: %w", err)
	}
	return affected > 0, nil
}
