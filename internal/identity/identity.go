// Package identity resolves bearer tokens to users through the Google OAuth
// userinfo endpoint.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/Veraticus/spice-insights/internal/common"
)

// ErrUnauthorized is returned for missing, malformed or rejected tokens.
var ErrUnauthorized = errors.New("missing or invalid authorization")

// User is the identity behind a token. Email is the user id everywhere else.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Verifier resolves an access token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GoogleVerifier calls the userinfo endpoint with the caller's token.
type GoogleVerifier struct {
	endpoint string
}

// NewGoogleVerifier creates a verifier. An empty endpoint uses Google's.
func NewGoogleVerifier(endpoint string) *GoogleVerifier {
	return &GoogleVerifier{endpoint: endpoint}
}

// Verify implements Verifier.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if v.endpoint != "" {
		opts = append(opts, option.WithEndpoint(v.endpoint))
	}

	srv, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create userinfo client: %w", common.ErrTransport, err)
	}

	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%w: userinfo request failed: %w", common.ErrTransport, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: token has no email scope", ErrUnauthorized)
	}
	return &User{Email: info.Email, Name: info.Name}, nil
}

// Static accepts a fixed set of tokens. It backs local development and tests.
type Static map[string]User

// Verify implements Verifier.
func (s Static) Verify(_ context.Context, token string) (*User, error) {
	u, ok := s[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &u, nil
}
