package middleware

import (
	"errors"
	"strings"
	"time"

	"budget/config"
	"budget/errs"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextUserID gin 上下文中当前用户 ID 的键
	ContextUserID = "userID"
	// ContextClaims gin 上下文中 Claims 的键
	ContextClaims = "claims"

	bearerPrefix = "Bearer "
)

// Claims JWT 载荷
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService 签发与校验访问令牌，密钥在启动时注入，之后不可变
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService 创建令牌服务，未配置密钥时返回错误
func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, config.ErrMissingSecret
	}
	ttl := cfg.ExpireTime
	if ttl <= 0 {
		ttl = time.Duration(config.DefaultExpireHours) * time.Hour
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL 令牌有效期
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue 为用户签发令牌
func (s *TokenService) Issue(userID uint) (string, time.Time, error) {
	return s.issue(userID, s.ttl)
}

func (s *TokenService) issue(userID uint, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify 校验签名与有效期
// 返回 errs.KindMissingToken / errs.KindExpiredToken / errs.KindInvalidToken
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errs.MissingToken()
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ExpiredToken(err)
		}
		return nil, errs.InvalidToken(err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errs.InvalidToken(nil)
	}
	return claims, nil
}

// JWTAuth JWT 认证中间件
func JWTAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// bearerToken 从 Authorization 头中取出令牌
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return "", errs.MissingToken()
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", errs.InvalidToken(errors.New("authorization scheme is not Bearer"))
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errs.MissingToken()
	}
	return token, nil
}

func abortWithError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	c.AbortWithStatusJSON(kind.Status(), gin.H{
		"code":    kind.Status(),
		"message": errs.Public(err),
		"error":   kind.Code(),
	})
}

// GetCurrentUserID 获取当前用户ID，未认证时返回 0
func GetCurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetClaims 获取当前请求的 Claims
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
