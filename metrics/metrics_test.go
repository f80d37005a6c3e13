package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
	"github.com/patientipr/portal-auth/metrics"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("Counts events by type and role", func(t *testing.T) {
		r := metrics.NewRecorder()

		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityLoginSuccess, Role: auth.RoleAdmin}))
		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityLoginSuccess, Role: auth.RoleAdmin}))
		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivitySignup, Role: auth.RoleUser}))

		assert.Equal(t, 2.0, testutil.ToFloat64(r.EventsTotal.WithLabelValues(string(auth.ActivityLoginSuccess), "admin")))
		assert.Equal(t, 1.0, testutil.ToFloat64(r.EventsTotal.WithLabelValues(string(auth.ActivitySignup), "user")))
	})

	t.Run("Counts login failures by reason", func(t *testing.T) {
		r := metrics.NewRecorder()

		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityLoginFailure, Reason: "bad_credentials"}))
		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityLoginFailure}))

		assert.Equal(t, 1.0, testutil.ToFloat64(r.LoginFailuresTotal.WithLabelValues("bad_credentials")))
		assert.Equal(t, 1.0, testutil.ToFloat64(r.LoginFailuresTotal.WithLabelValues("unknown")))
	})

	t.Run("Counts access denied", func(t *testing.T) {
		r := metrics.NewRecorder()

		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityAccessDenied, Role: auth.RoleUser}))

		assert.Equal(t, 1.0, testutil.ToFloat64(r.AccessDeniedTotal))
	})

	t.Run("Handler exposes the registry", func(t *testing.T) {
		r := metrics.NewRecorder()
		require.NoError(t, r.Record(ctx, auth.ActivityEvent{Type: auth.ActivityLogout, Role: auth.RoleAgent}))

		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "portal_auth_activity_events_total")
	})
}
