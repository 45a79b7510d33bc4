// Package task はタスク管理のビジネスロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// Service はタスクに関するビジネスロジックを提供する。
// ユーザー入力のタイトル・説明文は保存前にサニタイズする。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceを生成する。
func NewService(taskRepo repository.TaskRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
	}
}

// ListTasks は全タスクを作成日時の昇順で返す。
func (s *Service) ListTasks(ctx context.Context) ([]*model.Task, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask は新規タスクを作成する。
// タイトルは必須。説明文は省略可能で、completedの初期値はfalse。
func (s *Service) CreateTask(ctx context.Context, title, description string, completed bool) (*model.Task, error) {
	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)

	if title == "" {
		return nil, model.NewValidationError("titleは必須です")
	}

	task := &model.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Completed:   completed,
		CreatedAt:   time.Now(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// UpdateTask はタスクを部分更新する。nilのフィールドは変更しない。
// 対象が存在しない場合はTASK_NOT_FOUNDを返す。
func (s *Service) UpdateTask(ctx context.Context, id string, title, description *string, completed *bool) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(id)
	}

	if title != nil {
		sanitized := s.sanitizer.Sanitize(*title)
		if sanitized == "" {
			return nil, model.NewValidationError("titleを空にはできません")
		}
		task.Title = sanitized
	}
	if description != nil {
		task.Description = s.sanitizer.Sanitize(*description)
	}
	if completed != nil {
		task.Completed = *completed
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, model.NewTaskNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// DeleteTask は指定IDのタスクを削除する。
// 対象が存在しない場合はTASK_NOT_FOUNDを返す。
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return model.NewTaskNotFoundError(id)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
