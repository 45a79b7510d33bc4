// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeMissingRefreshToken = "MISSING_REFRESH_TOKEN"
	ErrCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeTaskNotFound        = "TASK_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError は必須フィールド不足などの入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "すべての必須項目を入力してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス未登録とパスワード不一致を区別しない統一メッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewMissingRefreshTokenError はリフレッシュトークン未提示エラーを生成する。
func NewMissingRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingRefreshToken,
		Message:  "リフレッシュトークンが提示されていません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRefreshTokenError はリフレッシュトークン無効エラーを生成する。
// 署名不正・期限切れ・ユーザー不在のいずれの場合も同一メッセージを返す。
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRefreshToken,
		Message:  "リフレッシュトークンが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError はアクセストークン不正エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
