// Package auth 演示账号登录与 Bearer 令牌
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials 邮箱或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken 令牌缺失、签名错误或已过期
	ErrInvalidToken = errors.New("invalid token")
)

// User 登录用户
type User struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Claims 令牌载荷：sub、role、exp
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config 认证配置
type Config struct {
	Secret            string
	TTL               time.Duration
	DemoAdminPassword string
	BcryptCost        int // 0 表示 bcrypt.DefaultCost
}

type account struct {
	role string
	hash []byte
}

// Service 认证服务
type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]account
	now    func() time.Time
}

// demoUsers 演示账号（邮箱 → 角色、密码）
func demoUsers(adminPassword string) []struct{ email, role, password string } {
	if adminPassword == "" {
		adminPassword = "Demo1234!"
	}
	return []struct{ email, role, password string }{
		{"demo@starcement.com", "CXO", adminPassword},
		{"plant@starcement.com", "Plant Head", "Plant1234!"},
		{"energy@starcement.com", "Energy Manager", "Energy1234!"},
		{"sales@starcement.com", "Sales", "Sales1234!"},
	}
}

// NewService 创建认证服务，启动时对演示账号密码做 bcrypt 哈希
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	users := make(map[string]account)
	for _, u := range demoUsers(cfg.DemoAdminPassword) {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", u.email, err)
		}
		users[u.email] = account{role: u.role, hash: hash}
	}

	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		users:  users,
		now:    time.Now,
	}, nil
}

// Authenticate 校验邮箱与密码
func (s *Service) Authenticate(email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acct, ok := s.users[email]
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{Email: email, Role: acct.role}, nil
}

// IssueToken 签发 HS256 令牌
func (s *Service) IssueToken(u User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Login 校验并签发令牌
func (s *Service) Login(email, password string) (string, User, error) {
	u, err := s.Authenticate(email, password)
	if err != nil {
		return "", User{}, err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return "", User{}, err
	}
	return token, u, nil
}

// ParseToken 校验签名与过期时间，返回用户
func (s *Service) ParseToken(raw string) (User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return User{}, ErrInvalidToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{Email: claims.Subject, Role: claims.Role}, nil
}
