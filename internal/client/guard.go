package client

import "context"

// RouteGuard は保護された画面の表示可否を判定する。
// 未認証の場合、リフレッシュCookieからのセッション再構築を1回だけ試みる。
// ページリロード後にセッションを復元できるのはこの経路のみ。
type RouteGuard struct {
	client *Client
}

// NewRouteGuard はRouteGuardを生成する。
func NewRouteGuard(client *Client) *RouteGuard {
	return &RouteGuard{client: client}
}

// Ensure は認証状態を確認し、表示可能ならtrueを返す。
// falseが返された場合、呼び出し側はログイン画面へ誘導する。
// リフレッシュの成否にかかわらず、この呼び出しは必ず1回で完了する。
func (g *RouteGuard) Ensure(ctx context.Context) bool {
	if g.client.Session().IsAuthenticated {
		return true
	}

	// リフレッシュを1回だけ試みる。失敗してもエラーは伝播せず、
	// 未認証としてログイン画面への誘導を返すだけにする。
	if err := g.client.RefreshAccessToken(ctx); err != nil {
		return false
	}

	return g.client.Session().IsAuthenticated
}
