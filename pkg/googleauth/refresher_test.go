package googleauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefresh(t *testing.T) {
	t.Run("uses expires_in", func(t *testing.T) {
		srv := newTokenServer(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":1800}`, http.StatusOK)
		r := NewRefresherWithEndpoint("id", "secret", oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams})

		tok, err := r.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok.AccessToken)
		assert.InDelta(t, float64(1800*time.Second), float64(tok.ExpiresIn), float64(2*time.Second))
	})

	t.Run("defaults to one hour", func(t *testing.T) {
		srv := newTokenServer(t, `{"access_token":"fresh","token_type":"Bearer"}`, http.StatusOK)
		r := NewRefresherWithEndpoint("id", "secret", oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams})

		tok, err := r.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, DefaultExpiresIn, tok.ExpiresIn)
	})

	t.Run("endpoint rejection", func(t *testing.T) {
		srv := newTokenServer(t, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		r := NewRefresherWithEndpoint("id", "secret", oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams})

		_, err := r.Refresh(context.Background(), "refresh-1")
		assert.Error(t, err)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		r := NewRefresher("id", "secret")
		_, err := r.Refresh(context.Background(), "")
		assert.Error(t, err)
	})
}
