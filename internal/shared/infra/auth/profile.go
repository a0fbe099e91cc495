package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	sharedUtils "github.com/davicafu/passport-notifier/internal/shared/infra/utils"
)

const (
	defaultProfileTimeout = 5 * time.Second
	profilePath           = "/api/auth/profile"
)

// ProfileResolver delega la validación del token en el servicio de autenticación,
// que responde {"user": {...}} en GET /api/auth/profile.
type ProfileResolver struct {
	client   *resty.Client
	endpoint string
}

type profileResponse struct {
	User struct {
		UserID  string `json:"userId"`
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Role    string `json:"role"`
		Email   string `json:"email"`
	} `json:"user"`
}

func NewProfileResolver(baseURL string, timeout time.Duration) (*ProfileResolver, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultProfileTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewProfileResolverWithClient(baseURL, client)
}

func NewProfileResolverWithClient(baseURL string, client *resty.Client) (*ProfileResolver, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("auth service url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid auth service url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultProfileTimeout)
	}
	client.SetRetryCount(0)

	return &ProfileResolver{client: client, endpoint: base + profilePath}, nil
}

// Resolve devuelve ErrUnauthorized si el servicio rechaza el token (401/403). Los
// fallos de red o respuestas inesperadas se devuelven sin envolver ErrUnauthorized.
func (p *ProfileResolver) Resolve(ctx context.Context, token string) (UserContext, error) {
	token = bearerToken(token)
	if token == "" {
		return UserContext{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetAuthToken(token).
		Get(p.endpoint)
	if err != nil {
		return UserContext{}, fmt.Errorf("auth service request failed: %w", err)
	}

	switch status := response.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return UserContext{}, fmt.Errorf("%w: rejected by auth service", ErrUnauthorized)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return UserContext{}, fmt.Errorf("auth service returned status %d", status)
	}

	var body profileResponse
	if err := json.Unmarshal(response.Body(), &body); err != nil {
		return UserContext{}, fmt.Errorf("decode auth profile: %w", err)
	}

	u := body.User
	user := UserContext{UserID: sharedUtils.FirstNonEmpty(u.UserID, u.ID, u.MongoID), Role: u.Role, Email: u.Email}
	if user.UserID == "" {
		return UserContext{}, fmt.Errorf("%w: profile without user id", ErrUnauthorized)
	}
	return user, nil
}
