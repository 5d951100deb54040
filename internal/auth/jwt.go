package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKeyActorID gin context 中操作者 ID 的键
const ContextKeyActorID = "actor_id"

// ContextKeyActorRole gin context 中操作者声称角色的键
// 角色声明不被直接信任,工作流引擎会经身份目录二次校验
const ContextKeyActorRole = "actor_role"

// ActorClaims 令牌中的操作者声明
type ActorClaims struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator JWT 令牌验证器
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator 创建令牌验证器
// secret 为空表示开发模式,中间件改用请求头识别操作者
func NewTokenValidator(secret string, issuer string) *TokenValidator {
	return &TokenValidator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Enabled 是否启用令牌校验
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

// Validate 解析并校验令牌
func (v *TokenValidator) Validate(tokenString string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if v.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != v.issuer {
			return nil, errors.New("invalid token issuer")
		}
	}
	if claims.ActorID == "" {
		return nil, errors.New("token missing actor_id claim")
	}
	return claims, nil
}

// Sign 签发令牌(测试与运维工具使用)
func (v *TokenValidator) Sign(actorID string, role string, ttl time.Duration) (string, error) {
	claims := &ActorClaims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Middleware 提取操作者身份的 gin 中间件
// 启用令牌时要求 Bearer Token,开发模式退化为 X-Actor-ID/X-Actor-Role 请求头
func (v *TokenValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Set(ContextKeyActorID, c.GetHeader("X-Actor-ID"))
			c.Set(ContextKeyActorRole, c.GetHeader("X-Actor-Role"))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "missing bearer token",
			})
			return
		}

		claims, err := v.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "invalid token",
				"detail":  err.Error(),
			})
			return
		}

		c.Set(ContextKeyActorID, claims.ActorID)
		c.Set(ContextKeyActorRole, claims.Role)
		c.Next()
	}
}
