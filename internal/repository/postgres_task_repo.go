package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// List は全タスクを作成日時の昇順で返す。
func (r *PostgresTaskRepo) List(ctx context.Context) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, completed, created_at FROM tasks ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, completed, created_at FROM tasks WHERE id = $1`,
		id,
	).Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}

	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.Title, task.Description, task.Completed, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Update はタスクを上書き更新する。対象が存在しない場合はErrTaskNotFoundを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = $2, description = $3, completed = $4 WHERE id = $1`,
		task.ID, task.Title, task.Description, task.Completed,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// Delete は指定IDのタスクを削除する。対象が存在しない場合はErrTaskNotFoundを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
