// Package token はアクセストークン・リフレッシュトークンの発行と検証を提供する。
//
// 両トークンは同一のサーバーシークレットでHMAC-SHA256署名されるが、
// ペイロードのtoken_typeと有効期間が異なる。アクセストークンは短命で
// 露出時の影響を限定し、リフレッシュトークンは長命で再ログインの頻度を抑える。
// 失効リストは保持しない。発行済みの未期限切れリフレッシュトークンは
// 自然期限まで有効であり続ける（設計上の割り切り）。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン種別。検証時にアクセス/リフレッシュの取り違えを防ぐ。
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrTokenInvalid は署名不正・形式不正・種別不一致のトークンに返される。
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired は有効期限切れのトークンに返される。
	ErrTokenExpired = errors.New("token has expired")
)

// Claims はJWTペイロードを表す。標準クレームに加えてユーザーIDと種別を持つ。
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// ServiceConfig はトークンサービスの設定。
// 署名シークレットと各トークンの有効期間を明示的に保持する。
type ServiceConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration // アクセストークン有効期間（デフォルト1時間）
	RefreshTokenTTL time.Duration // リフレッシュトークン有効期間（デフォルト7日）
}

// Service はトークンの発行・検証を行う。
// 秘密鍵・ユーザーID・時刻のみに依存する純粋な変換であり、状態を持たない。
type Service struct {
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(config ServiceConfig) *Service {
	return &Service{
		config: config,
		now:    time.Now,
	}
}

// NewServiceWithClock は時刻関数を差し替えたServiceを生成する。
// 有効期限まわりのテストで使用する。
func NewServiceWithClock(config ServiceConfig, now func() time.Time) *Service {
	return &Service{
		config: config,
		now:    now,
	}
}

// IssueAccessToken は指定ユーザーのアクセストークンを発行する。
func (s *Service) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, typeAccess, s.config.AccessTokenTTL)
}

// IssueRefreshToken は指定ユーザーのリフレッシュトークンを発行する。
func (s *Service) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, typeRefresh, s.config.RefreshTokenTTL)
}

// issue は指定種別・有効期間の署名付きトークンを生成する。
func (s *Service) issue(userID, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccessToken はアクセストークンを検証し、ユーザーIDを返す。
func (s *Service) VerifyAccessToken(tokenString string) (string, error) {
	return s.verify(tokenString, typeAccess)
}

// VerifyRefreshToken はリフレッシュトークンを検証し、ユーザーIDを返す。
func (s *Service) VerifyRefreshToken(tokenString string) (string, error) {
	return s.verify(tokenString, typeRefresh)
}

// verify は署名・有効期限・種別を検証する。
// 期限切れはErrTokenExpired、それ以外の不正はErrTokenInvalidを返す。
func (s *Service) verify(tokenString, tokenType string) (string, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	if !t.Valid || claims.TokenType != tokenType || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
