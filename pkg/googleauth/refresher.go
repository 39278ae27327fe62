package googleauth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultExpiresIn applies when the token endpoint omits expires_in
const DefaultExpiresIn = 3600 * time.Second

// Token is the result of a refresh-token grant
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Refresher exchanges refresh tokens for new access tokens
type Refresher struct {
	config *oauth2.Config
	now    func() time.Time
}

func NewRefresher(clientID, clientSecret string) *Refresher {
	return NewRefresherWithEndpoint(clientID, clientSecret, google.Endpoint)
}

// NewRefresherWithEndpoint targets a custom token endpoint
func NewRefresherWithEndpoint(clientID, clientSecret string, endpoint oauth2.Endpoint) *Refresher {
	return &Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		now: time.Now,
	}
}

func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	// An empty access token is never valid, so the source always hits the endpoint
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	t, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("unable to refresh token: %w", err)
	}

	expiresIn := DefaultExpiresIn
	if !t.Expiry.IsZero() {
		expiresIn = t.Expiry.Sub(r.now()).Round(time.Second)
	}

	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}
