package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/club-portal/internal/models"
)

func newClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func reply(w http.ResponseWriter, status int, body models.AuthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.org")
	require.Error(t, err)

	_, err = New("://bad")
	require.Error(t, err)

	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, c.Timeout())
}

func TestLogin_SuccessAndRejected(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in models.AuthLoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		if in.Password == "Abcdef1!" {
			reply(w, http.StatusOK, models.AuthResponse{Status: "success", AccessToken: "a", RefreshToken: "r"})
			return
		}
		reply(w, http.StatusUnauthorized, models.AuthResponse{Status: "failed", Message: "Invalid email or password"})
	})

	res := c.Login(context.Background(), "ann@club.org", "Abcdef1!")
	require.True(t, res.OK)
	require.Equal(t, Tokens{AccessToken: "a", RefreshToken: "r"}, res.Value)
	require.NoError(t, res.Err())

	res = c.Login(context.Background(), "ann@club.org", "nope")
	require.False(t, res.OK)
	require.Equal(t, KindRejected, res.Kind)
	require.Equal(t, "Invalid email or password", res.Message)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	require.EqualError(t, res.Err(), "rejected: Invalid email or password")
}

func TestSignup_DuplicateSurfacesMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/signup", r.URL.Path)
		reply(w, http.StatusConflict, models.AuthResponse{Status: "failed", Message: "Email is already registered"})
	})

	res := c.Signup(context.Background(), "ann", "ann@club.org", "Abcdef1!")
	require.Equal(t, KindRejected, res.Kind)
	require.Equal(t, "Email is already registered", res.Message)
}

func TestVerifyAccess_StatusTranslation(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   models.AuthResponse
		ok     bool
		kind   ErrorKind
	}{
		{"valid", http.StatusOK, models.AuthResponse{Status: "success"}, true, ""},
		{"missing", http.StatusBadRequest, models.AuthResponse{Status: "failed"}, false, KindMissingCredential},
		{"forbidden", http.StatusForbidden, models.AuthResponse{Status: "failed"}, false, KindInvalidOrExpiredCredential},
		{"unauthorized", http.StatusUnauthorized, models.AuthResponse{Status: "failed"}, false, KindInvalidOrExpiredCredential},
		{"200 but failed body", http.StatusOK, models.AuthResponse{Status: "failed"}, false, KindInvalidOrExpiredCredential},
		{"server error", http.StatusBadGateway, models.AuthResponse{}, false, KindNetworkFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				reply(w, tc.status, tc.body)
			})

			res := c.VerifyAccess(context.Background(), "tok")
			require.Equal(t, tc.ok, res.OK)
			require.Equal(t, tc.kind, res.Kind)
		})
	}
}

func TestRefresh(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refreshToken", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			reply(w, http.StatusOK, models.AuthResponse{Status: "success", AccessToken: "new-access"})
		case "Bearer empty":
			reply(w, http.StatusOK, models.AuthResponse{Status: "success"})
		default:
			reply(w, http.StatusForbidden, models.AuthResponse{Status: "failed", Message: "Unauthorized: Invalid or expired refresh token"})
		}
	})

	res := c.Refresh(context.Background(), "good")
	require.True(t, res.OK)
	require.Equal(t, "new-access", res.Value)

	res = c.Refresh(context.Background(), "bad")
	require.Equal(t, KindInvalidOrExpiredCredential, res.Kind)
	require.Equal(t, "Unauthorized: Invalid or expired refresh token", res.Message)

	res = c.Refresh(context.Background(), "empty")
	require.False(t, res.OK)
}

func TestUserRole(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer weird" {
			reply(w, http.StatusOK, models.AuthResponse{Status: "success", Role: "guest"})
			return
		}
		reply(w, http.StatusOK, models.AuthResponse{Status: "success", Role: models.RoleAdmin})
	})

	res := c.UserRole(context.Background(), "tok")
	require.True(t, res.OK)
	require.Equal(t, models.RoleAdmin, res.Value)

	res = c.UserRole(context.Background(), "weird")
	require.Equal(t, KindInvalidOrExpiredCredential, res.Kind)
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	res := c.VerifyAccess(context.Background(), "tok")
	require.Equal(t, KindNetworkFailure, res.Kind)
	require.Contains(t, res.Message, "timeout")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	res := c.Refresh(context.Background(), "tok")
	require.Equal(t, KindNetworkFailure, res.Kind)
	require.Zero(t, res.Status)
}

func TestNonJSONErrorBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden by proxy", http.StatusForbidden)
	})

	res := c.VerifyAccess(context.Background(), "tok")
	require.Equal(t, KindInvalidOrExpiredCredential, res.Kind)
}
