package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

const RoleAdmin = "admin"

// UserContext es la identidad del llamador tal y como la resuelve el token.
type UserContext struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
}

func (u UserContext) IsAdmin() bool { return u.Role == RoleAdmin }

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver valida tokens HS256 firmados con el secreto compartido.
type JWTResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTResolver(secret, issuer string, ttl time.Duration) *JWTResolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Resolve acepta el token con o sin el prefijo "Bearer ". Con issuer configurado,
// el claim iss debe coincidir.
func (r *JWTResolver) Resolve(_ context.Context, token string) (UserContext, error) {
	token = bearerToken(token)
	if token == "" {
		return UserContext{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(r.now)}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserContext{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
		}
		return UserContext{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return UserContext{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	return UserContext{UserID: claims.UserID, Role: claims.Role, Email: claims.Email}, nil
}

func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
}

// IssueToken firma un token para el usuario. Lo usan el emisor de pruebas y los tests.
func (r *JWTResolver) IssueToken(user UserContext) (string, error) {
	now := r.now()
	claims := &Claims{
		UserID: user.UserID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
