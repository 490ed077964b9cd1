package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestServer_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewServer(reg)

	m.Login(OutcomeSuccess)
	m.Login(OutcomeFailed)
	m.Login(OutcomeFailed)
	m.Refresh(OutcomeSuccess)
	m.Signup(OutcomeSuccess)
	m.HTTPRequest("GET", "/auth/verifyJWT", 200, 10*time.Millisecond)
	m.HTTPRequest("GET", "", 404, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/auth/verifyJWT", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestClient_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewClient(reg)

	c.Verification("valid")
	c.Verification("invalid")
	c.RefreshCall()
	c.RefreshCall()

	require.Equal(t, 1.0, testutil.ToFloat64(c.verifications.WithLabelValues("valid")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.refreshCalls))
}

func TestNilReceivers(t *testing.T) {
	t.Parallel()

	var s *Server
	var c *Client

	require.NotPanics(t, func() {
		s.Login(OutcomeSuccess)
		s.Signup(OutcomeFailed)
		s.Refresh(OutcomeFailed)
		s.HTTPRequest("GET", "/", 200, time.Second)
		c.Verification("valid")
		c.RefreshCall()
	})
}
