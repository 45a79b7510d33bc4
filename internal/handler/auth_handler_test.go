package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, name, email, password string) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.AuthResult, error)
	refreshFn  func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuthService) Register(ctx context.Context, name, email, password string) (*auth.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return "", nil
}

func testAuthResult() *auth.AuthResult {
	return &auth.AuthResult{
		User: &model.User{
			ID:    "user-1",
			Name:  "田中太郎",
			Email: "tanaka@example.com",
		},
		Tokens: auth.TokenPair{
			AccessToken:  "access-token-value",
			RefreshToken: "refresh-token-value",
		},
	}
}

func newTestAuthHandler(service AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(service, AuthHandlerConfig{
		CookieSecure:    false,
		RefreshTokenTTL: 7 * 24 * 3600,
	}, nil)
}

// findCookie はレスポンスから指定した名前のCookieを探す。
func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Register のテスト ---

func TestAuthHandler_Register_Returns201WithCookie(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, name, email, password string) (*auth.AuthResult, error) {
			return testAuthResult(), nil
		},
	}
	h := newTestAuthHandler(service)

	body := `{"name":"田中太郎","email":"tanaka@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got authResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.AccessToken != "access-token-value" {
		t.Errorf("accessToken = %q, want %q", got.AccessToken, "access-token-value")
	}
	if got.User.Email != "tanaka@example.com" {
		t.Errorf("user.email = %q, want %q", got.User.Email, "tanaka@example.com")
	}

	cookie := findCookie(t, resp, "refreshToken")
	if cookie == nil {
		t.Fatal("refreshToken cookie should be set")
	}
	if cookie.Value != "refresh-token-value" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "refresh-token-value")
	}
	if !cookie.HttpOnly {
		t.Error("refreshToken cookie should be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("refreshToken cookie should be SameSite=Strict")
	}
	if cookie.MaxAge != 7*24*3600 {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, 7*24*3600)
	}
}

func TestAuthHandler_Register_ValidationError_Returns400(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, name, email, password string) (*auth.AuthResult, error) {
			return nil, model.NewValidationError("name, email, passwordはすべて必須です")
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
}

func TestAuthHandler_Register_DuplicateEmail_Returns400(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, name, email, password string) (*auth.AuthResult, error) {
			return nil, model.NewDuplicateEmailError()
		},
	}
	h := newTestAuthHandler(service)

	body := `{"name":"田中太郎","email":"tanaka@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_InvalidJSON_Returns400(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{invalid`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- Login のテスト ---

func TestAuthHandler_Login_Returns200WithCookie(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.AuthResult, error) {
			return testAuthResult(), nil
		},
	}
	h := newTestAuthHandler(service)

	body := `{"email":"tanaka@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookie := findCookie(t, resp, "refreshToken")
	if cookie == nil {
		t.Fatal("refreshToken cookie should be set")
	}

	var got authResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.AccessToken == "" {
		t.Error("accessToken should not be empty")
	}
	// リフレッシュトークンはボディに含めない
	bodyBytes, _ := json.Marshal(got)
	if strings.Contains(string(bodyBytes), "refresh-token-value") {
		t.Error("refresh token should not appear in response body")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.AuthResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := newTestAuthHandler(service)

	body := `{"email":"tanaka@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// 失敗時はCookieを設定しない
	if cookie := findCookie(t, resp, "refreshToken"); cookie != nil {
		t.Error("refreshToken cookie should not be set on failure")
	}
}

// --- Refresh のテスト ---

func TestAuthHandler_Refresh_NoCookie_Returns401(t *testing.T) {
	service := &mockAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (string, error) {
			if refreshToken == "" {
				return "", model.NewMissingRefreshTokenError()
			}
			return "new-access-token", nil
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeMissingRefreshToken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeMissingRefreshToken)
	}
}

func TestAuthHandler_Refresh_InvalidToken_Returns403(t *testing.T) {
	service := &mockAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (string, error) {
			return "", model.NewInvalidRefreshTokenError()
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "tampered-token"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestAuthHandler_Refresh_ValidCookie_ReturnsNewAccessToken(t *testing.T) {
	service := &mockAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (string, error) {
			if refreshToken != "valid-refresh-token" {
				return "", model.NewInvalidRefreshTokenError()
			}
			return "new-access-token", nil
		},
	}
	h := newTestAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "valid-refresh-token"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.AccessToken != "new-access-token" {
		t.Errorf("accessToken = %q, want %q", got.AccessToken, "new-access-token")
	}

	// リフレッシュトークンはローテーションしないのでCookieを更新しない
	if cookie := findCookie(t, resp, "refreshToken"); cookie != nil {
		t.Error("refresh should not set a new refreshToken cookie")
	}
}

// --- Logout のテスト ---

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "some-token"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookie := findCookie(t, resp, "refreshToken")
	if cookie == nil {
		t.Fatal("refreshToken cookie should be present for clearing")
	}
	if cookie.Value != "" {
		t.Errorf("cookie value = %q, want empty", cookie.Value)
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, should be negative for deletion", cookie.MaxAge)
	}
}

func TestAuthHandler_Logout_WithoutCookie_StillSucceeds(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	// Cookieなしでも冪等に成功する
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message == "" {
		t.Error("expected message in logout response")
	}
}

// --- エラーマッピングのテスト ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeDuplicateEmail, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeMissingRefreshToken, http.StatusUnauthorized},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeInvalidRefreshToken, http.StatusForbidden},
		{model.ErrCodeTaskNotFound, http.StatusNotFound},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
		if got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
