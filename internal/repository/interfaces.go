// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

var (
	// ErrDuplicateEmail は登録済みメールアドレスでユーザーを作成しようとした場合に返される。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrTaskNotFound は対象タスクが存在しない場合に返される。
	ErrTaskNotFound = errors.New("task not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// List は全タスクを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Task, error)

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクを上書き更新する。
	// 対象が存在しない場合はErrTaskNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	// 対象が存在しない場合はErrTaskNotFoundを返す。
	Delete(ctx context.Context, id string) error
}
