package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrAuthenticationFailed は登録・ログイン失敗時に返される。
	// サーバー側の詳細理由は意図的に含めない。
	ErrAuthenticationFailed = errors.New("認証に失敗しました")
	// ErrSessionExpired はリフレッシュによる再認証が失敗した際に返される。
	// 呼び出し側はログイン画面への誘導を行う。
	ErrSessionExpired = errors.New("セッションの有効期限が切れました")
)

// refreshGroupKey はリフレッシュの同時実行を1つにまとめるsingleflightキー。
const refreshGroupKey = "refresh"

// Config はClientの設定。
type Config struct {
	BaseURL string
	Timeout time.Duration // HTTPタイムアウト（デフォルト30秒）
}

// Client はアクセストークンの付与と401時の自動リフレッシュを行うAPIクライアント。
// リフレッシュCookieはクライアント内部のCookie jarが管理し、
// アプリケーションコードからは参照できない。
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore

	// 同時多発の401がそれぞれリフレッシュを起動しないよう、
	// 実行中のリフレッシュを1つに集約する
	refreshGroup singleflight.Group
}

// New はClientを生成する。storeにはテストで差し替え可能なセッションストアを渡す。
func New(config Config, store SessionStore) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		store: store,
	}, nil
}

// Session は現在のセッション状態のコピーを返す。
func (c *Client) Session() Session {
	return c.store.Get()
}

// --- 認証操作 ---

// authResponseBody は登録・ログイン成功時のレスポンスボディ。
type authResponseBody struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// refreshResponseBody はリフレッシュ成功時のレスポンスボディ。
type refreshResponseBody struct {
	AccessToken string `json:"accessToken"`
}

// Register は新規ユーザーを登録し、セッションを確立する。
// 失敗時はセッション状態を変更せず、詳細を含まない固定エラーを返す。
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/register", body, http.StatusCreated)
}

// Login はメールアドレスとパスワードでログインし、セッションを確立する。
// 失敗時はセッション状態を変更せず、詳細を含まない固定エラーを返す。
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body, http.StatusOK)
}

// authenticate は登録・ログイン共通の処理。
// 成功時のみセッションを更新する。リフレッシュCookieはjarが自動的に保存する。
func (c *Client) authenticate(ctx context.Context, path string, body map[string]string, wantStatus int) error {
	resp, err := c.postJSON(ctx, path, body)
	if err != nil {
		return fmt.Errorf("authentication request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return ErrAuthenticationFailed
	}

	var parsed authResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	c.store.Set(Session{
		IsAuthenticated: true,
		AccessToken:     parsed.AccessToken,
		User: &UserInfo{
			Name:  parsed.User.Name,
			Email: parsed.User.Email,
		},
	})

	return nil
}

// RefreshAccessToken はリフレッシュCookieから新しいアクセストークンを取得する。
// 同時に複数呼び出された場合、実際のHTTPリクエストは1つに集約され、
// 他の呼び出しはその結果を共有する。
// 成功時はアクセストークンのみを更新し、ユーザー情報は再取得しない。
// 失敗時はセッションをクリアする。
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do(refreshGroupKey, func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

// doRefresh はリフレッシュリクエストを実行する。singleflight経由でのみ呼ばれる。
func (c *Client) doRefresh(ctx context.Context) error {
	resp, err := c.postJSON(ctx, "/api/auth/refresh", nil)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.store.Clear()
		return ErrSessionExpired
	}

	var parsed refreshResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.store.Clear()
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	session := c.store.Get()
	session.IsAuthenticated = true
	session.AccessToken = parsed.AccessToken
	c.store.Set(session)

	return nil
}

// Logout はサーバーにログアウトを通知し、セッションを無条件にクリアする。
// サーバーへの通知が失敗してもローカルのセッションはクリアする。
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear()

	resp, err := c.postJSON(ctx, "/api/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	resp.Body.Close()

	return nil
}

// --- インターセプター付きリクエスト ---

// Do は認証付きAPIリクエストを実行する。
// セッションにアクセストークンがあればAuthorization: Bearerヘッダーを付与する。
// 401が返された場合はリフレッシュを1回だけ試み、新しいトークンで再送する。
// 再送も401の場合はセッションをクリアしてErrSessionExpiredを返す（無限リトライしない）。
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	// 1回だけリフレッシュして再送する
	if err := c.RefreshAccessToken(ctx); err != nil {
		return nil, ErrSessionExpired
	}

	retry, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if retry.StatusCode == http.StatusUnauthorized {
		retry.Body.Close()
		c.store.Clear()
		return nil, ErrSessionExpired
	}

	return retry, nil
}

// send はリクエストを1回実行する。
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if session := c.store.Get(); session.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	return c.httpClient.Do(req)
}

// postJSON は認証系エンドポイントへのPOSTを実行する。
// Bearerヘッダーは付与しない（Cookieのみで認証する）。
func (c *Client) postJSON(ctx context.Context, path string, body map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// --- タスク操作 ---

// Task はAPIが返すタスクを表す。
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListTasks はタスク一覧を取得する。
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tasks failed with status %d", resp.StatusCode)
	}

	var tasks []Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask は新規タスクを作成する。
func (c *Client) CreateTask(ctx context.Context, title, description string) (*Task, error) {
	body := map[string]string{"title": title, "description": description}
	resp, err := c.Do(ctx, http.MethodPost, "/api/tasks", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create task failed with status %d", resp.StatusCode)
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// ToggleTaskCompleted はタスクの完了フラグを指定値に更新する。
func (c *Client) ToggleTaskCompleted(ctx context.Context, id string, completed bool) (*Task, error) {
	body := map[string]bool{"completed": completed}
	resp, err := c.Do(ctx, http.MethodPut, "/api/tasks/"+id, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update task failed with status %d", resp.StatusCode)
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// DeleteTask はタスクを削除する。
// 失敗はログに記録し、エラーとして返す。呼び出し側のUI状態は変更しない前提。
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/api/tasks/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("delete task failed",
			slog.String("task_id", id),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("delete task failed with status %d", resp.StatusCode)
	}
	return nil
}
