// Package auth はパスワード認証とトークン発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// TokenService は認証サービスが必要とするトークン操作のインターフェース。
// token.Serviceの部分集合として定義する。
type TokenService interface {
	// IssueAccessToken は指定ユーザーのアクセストークンを発行する。
	IssueAccessToken(userID string) (string, error)
	// IssueRefreshToken は指定ユーザーのリフレッシュトークンを発行する。
	IssueRefreshToken(userID string) (string, error)
	// VerifyRefreshToken はリフレッシュトークンを検証し、ユーザーIDを返す。
	VerifyRefreshToken(tokenString string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // bcryptハッシュのコストパラメータ
}

// TokenPair はアクセストークンとリフレッシュトークンの組を表す。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult は登録・ログイン成功時の結果を表す。
type AuthResult struct {
	User   *model.User
	Tokens TokenPair
}

// Service は認証に関するビジネスロジックを提供する。
// サーバー側にセッション状態を持たず、リクエスト単位で完結する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenService
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens TokenService, config ServiceConfig) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		config:   config,
	}
}

// Register は新規ユーザーを登録し、トークンペアを発行する。
// 必須フィールド不足はVALIDATION_ERROR、メールアドレス重複はDUPLICATE_EMAILを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	if name == "" || email == "" || password == "" {
		return nil, model.NewValidationError("name, email, passwordはすべて必須です")
	}

	// 登録済みメールアドレスの事前チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェックと挿入の間に同一メールアドレスで登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.issueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login はメールアドレスとパスワードを検証し、新しいトークンペアを発行する。
// メールアドレス未登録とパスワード不一致は区別せず、同一のINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, model.NewValidationError("emailとpasswordは必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.issueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンのみを発行する。
// リフレッシュトークン自体はローテーションしない。
// トークン不正・期限切れ・ユーザー不在はいずれもINVALID_REFRESH_TOKENを返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", model.NewMissingRefreshTokenError()
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", model.NewInvalidRefreshTokenError()
	}

	// トークンが有効でもユーザーが削除されている可能性がある
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user by ID: %w", err)
	}
	if user == nil {
		return "", model.NewInvalidRefreshTokenError()
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}

	return accessToken, nil
}

// issueTokenPair はアクセストークンとリフレッシュトークンを発行する。
func (s *Service) issueTokenPair(userID string) (TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
