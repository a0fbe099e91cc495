package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/auth/profile", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer remote-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfileResolver_Resolve(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		token        string
		wantUser     UserContext
		unauthorized bool
		wantErr      bool
	}{
		{
			name:     "perfil con userId",
			status:   http.StatusOK,
			body:     `{"message":"ok","user":{"userId":"u9","role":"admin","email":"u9@acme.test"}}`,
			token:    "Bearer remote-token",
			wantUser: UserContext{UserID: "u9", Role: "admin", Email: "u9@acme.test"},
		},
		{
			name:     "perfil con _id",
			status:   http.StatusOK,
			body:     `{"user":{"_id":"665f","role":"user"}}`,
			token:    "remote-token",
			wantUser: UserContext{UserID: "665f", Role: "user"},
		},
		{name: "token rechazado", status: http.StatusOK, body: `{}`, token: "Bearer otro", unauthorized: true},
		{name: "prohibido", status: http.StatusForbidden, body: `{}`, token: "Bearer remote-token", unauthorized: true},
		{name: "perfil sin id", status: http.StatusOK, body: `{"user":{"role":"user"}}`, token: "Bearer remote-token", unauthorized: true},
		{name: "error del servicio", status: http.StatusBadGateway, body: `{}`, token: "Bearer remote-token", wantErr: true},
		{name: "cuerpo inválido", status: http.StatusOK, body: `not-json`, token: "Bearer remote-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			srv := profileServer(t, tt.status, tt.body)
			resolver, err := NewProfileResolver(srv.URL+"/", time.Second)
			require.NoError(t, err)

			// Act
			user, err := resolver.Resolve(context.Background(), tt.token)

			// Assert
			switch {
			case tt.unauthorized:
				assert.ErrorIs(t, err, ErrUnauthorized)
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, errors.Is(err, ErrUnauthorized))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, user)
			}
		})
	}
}

func TestProfileResolver_UnreachableServiceIsNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resolver, err := NewProfileResolver(url, 200*time.Millisecond)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "Bearer remote-token")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestNewProfileResolver_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url"} {
		_, err := NewProfileResolver(raw, time.Second)
		assert.Error(t, err, raw)
	}
}

func TestChain(t *testing.T) {
	local := NewJWTResolver("secret", "passport-notifier", time.Hour)
	remote, err := NewProfileResolver(profileServer(t, http.StatusOK, `{"user":{"userId":"remote","role":"user"}}`).URL, time.Second)
	require.NoError(t, err)
	chain := Chain{local, remote}

	localToken, err := local.IssueToken(UserContext{UserID: "local", Role: "user"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantUser string
	}{
		{"jwt local", "Bearer " + localToken, "local"},
		{"token del servicio de auth", "Bearer remote-token", "remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := chain.Resolve(context.Background(), tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user.UserID)
		})
	}

	_, err = chain.Resolve(context.Background(), "Bearer desconocido")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = chain.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = Chain{}.Resolve(context.Background(), "Bearer remote-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGinMiddleware_RemoteProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	remote, err := NewProfileResolver(profileServer(t, http.StatusOK, `{"user":{"userId":"u3","role":"user"}}`).URL, time.Second)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(Chain{NewJWTResolver("secret", "", time.Hour), remote}, nil))
	r.GET("/me", func(c *gin.Context) {
		user, _ := FromGin(c)
		c.JSON(http.StatusOK, user)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer remote-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u3","role":"user"}`, w.Body.String())
}
