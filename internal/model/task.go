// Package model はドメインモデルを定義する。
package model

import "time"

// Task はユーザーが管理する短いテキストタスクを表す。
// Titleは必須、Descriptionは任意。Completedの初期値はfalse。
type Task struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
}
