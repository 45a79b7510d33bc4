// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
)

// refreshCookieName はリフレッシュトークンを運ぶHTTP Only Cookieの名前。
const refreshCookieName = "refreshToken"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// AuthMetricsRecorder は認証ハンドラーが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。nilの場合は記録しない。
type AuthMetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenIssued(tokenType string)
	RecordRefreshFailure(reason string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure    bool
	RefreshTokenTTL int // リフレッシュCookieの有効期間（秒）
}

// AuthHandler はトークン認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetricsRecorder
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil可。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, metrics AuthMetricsRecorder) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// authResponse は登録・ログイン成功時のレスポンス。
// リフレッシュトークンはCookieのみで運び、ボディには含めない。
type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

// refreshResponse はトークンリフレッシュ成功時のレスポンス。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// messageResponse は汎用メッセージレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordTokenPairIssued()
	h.setRefreshCookie(w, result.Tokens.RefreshToken)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{
		AccessToken: result.Tokens.AccessToken,
		User:        toUserResponse(result.User),
	})
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailure()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}
	h.recordTokenPairIssued()
	h.setRefreshCookie(w, result.Tokens.RefreshToken)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authResponse{
		AccessToken: result.Tokens.AccessToken,
		User:        toUserResponse(result.User),
	})
}

// Refresh はリフレッシュCookieから新しいアクセストークンを発行する。
// リフレッシュトークン自体はローテーションせず、Cookieも更新しない。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	accessToken, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.recordRefreshFailure(err)
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenIssued("access")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refreshResponse{AccessToken: accessToken})
}

// Logout はリフレッシュCookieを無条件にクリアする。
// Cookieが存在しなくても成功レスポンスを返す（冪等）。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Message: "ログアウトしました。"})
}

// setRefreshCookie はリフレッシュトークンをHTTP Only Cookieとして設定する。
// SameSite=StrictによりクロスサイトリクエストではCookieが送信されない。
func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   h.config.RefreshTokenTTL,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie はリフレッシュCookieを削除する。
func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// recordTokenPairIssued はアクセス・リフレッシュ両トークンの発行を記録する。
func (h *AuthHandler) recordTokenPairIssued() {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordTokenIssued("access")
	h.metrics.RecordTokenIssued("refresh")
}

// recordRefreshFailure はリフレッシュ失敗の理由を記録する。
func (h *AuthHandler) recordRefreshFailure(err error) {
	if h.metrics == nil {
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeMissingRefreshToken:
			h.metrics.RecordRefreshFailure("missing_cookie")
			return
		case model.ErrCodeInvalidRefreshToken:
			h.metrics.RecordRefreshFailure("invalid_token")
			return
		}
	}
	h.metrics.RecordRefreshFailure("internal")
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeDuplicateEmail, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeMissingRefreshToken, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRefreshToken:
		return http.StatusForbidden
	case model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
