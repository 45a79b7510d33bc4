package repository

import (
	"testing"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresTaskRepoはTaskRepositoryインターフェースを満たすことを検証
func TestPostgresTaskRepo_ImplementsInterface(t *testing.T) {
	var _ TaskRepository = (*PostgresTaskRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresTaskRepoが正しく初期化されることを検証
func TestNewPostgresTaskRepo_Initializes(t *testing.T) {
	repo := NewPostgresTaskRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
