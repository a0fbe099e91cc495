package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/passport-notifier/pkg/utils"
)

const userContextKey = "auth.user"

type Resolver interface {
	Resolve(ctx context.Context, token string) (UserContext, error)
}

// Verificación estática
var (
	_ Resolver = (*JWTResolver)(nil)
	_ Resolver = (*ProfileResolver)(nil)
	_ Resolver = Chain{}
)

// Chain prueba cada resolver en orden y se queda con el primero que acepta el token.
// Si todos fallan devuelve el error del último.
type Chain []Resolver

func (ch Chain) Resolve(ctx context.Context, token string) (UserContext, error) {
	if bearerToken(token) == "" {
		return UserContext{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	err := fmt.Errorf("%w: no resolver configured", ErrUnauthorized)
	for _, r := range ch {
		var user UserContext
		user, err = r.Resolve(ctx, token)
		if err == nil {
			return user, nil
		}
	}
	return UserContext{}, err
}

// GinMiddleware exige "Authorization: Bearer <token>" y deja el UserContext en el contexto de gin.
func GinMiddleware(resolver Resolver, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				log.Error("auth resolver failed", zap.Error(err))
			}
			utils.SendError(c, http.StatusUnauthorized, "Access denied. Invalid or missing token.")
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// FromGin recupera el usuario autenticado.
func FromGin(c *gin.Context) (UserContext, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return UserContext{}, false
	}
	user, ok := v.(UserContext)
	return user, ok
}
