// Package auth 识别请求身份。登录、密码与会话由外部用户系统负责，
// 这里只校验它签发的 JWT（HS256，sub 为用户 id）。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("token subject is not a known user")
)

// Authenticator 把凭证解析成目录用户
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
	users  repository.UserRepository
	now    func() time.Time
}

func NewJWTAuthenticator(secret string, ttl time.Duration, users repository.UserRepository) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	u, err := a.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", claims.Subject, err)
	}
	return u, nil
}

// IssueToken 为目录用户签发令牌（运维命令与测试使用）
func (a *JWTAuthenticator) IssueToken(u *model.User) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:  u.ID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
