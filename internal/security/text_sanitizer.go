// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーが入力したタスクのタイトル・説明文を
// 保存前にサニタイズし、ブラウザで表示された際のXSS攻撃からユーザーを保護する。
// タスクのテキストはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyですべてのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// タスクの作成・更新時に使用される。
type TextSanitizerService interface {
	// Sanitize は入力テキストからすべてのHTMLタグを除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。scriptタグやon*イベント属性を含む
// あらゆるHTMLがテキストのみに落とされる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからすべてのHTMLタグを除去して返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
