// Package client はサーバーAPIを利用するクライアントSDKを提供する。
//
// アクセストークンはメモリ上のセッションにのみ保持し、永続化しない。
// ページリロード相当の再起動後はリフレッシュCookieからセッションを再構築する。
package client

import "sync"

// UserInfo はクライアント側で保持するユーザー情報。
type UserInfo struct {
	Name  string
	Email string
}

// Session はクライアント側の認証状態を表す。
// 登録・ログイン・リフレッシュ・ログアウトの4操作でのみ変更される。
type Session struct {
	IsAuthenticated bool
	AccessToken     string
	User            *UserInfo
}

// SessionStore はセッション状態の保管先インターフェース。
// テストではテストごとに新しいストアを注入する。
type SessionStore interface {
	// Get は現在のセッションのコピーを返す。
	Get() Session
	// Set はセッションを置き換える。
	Set(session Session)
	// Clear はセッションを未認証状態に戻す。
	Clear()
}

// MemorySessionStore はメモリ上にセッションを保持するSessionStoreの実装。
// 複数ゴルーチンから安全に利用できる。
type MemorySessionStore struct {
	mu      sync.RWMutex
	session Session
}

// NewMemorySessionStore は空のセッションを持つMemorySessionStoreを生成する。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Get は現在のセッションのコピーを返す。
func (s *MemorySessionStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := s.session
	if s.session.User != nil {
		user := *s.session.User
		session.User = &user
	}
	return session
}

// Set はセッションを置き換える。
func (s *MemorySessionStore) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Clear はセッションを未認証状態に戻す。
func (s *MemorySessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}

var _ SessionStore = (*MemorySessionStore)(nil)
