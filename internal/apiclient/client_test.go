package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL + "/api/v1", Timeout: time.Second, BreakerFailures: 3}, m, zerolog.Nop())
	require.NoError(t, err)
	return c, m
}

func TestClient_GetForwardsQueryAndToken(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/patients", r.URL.Path)
		assert.Equal(t, "doe", r.URL.Query().Get("search"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	ctx := ContextWithToken(context.Background(), "tok-123")
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Get(ctx, "/patients", url.Values{"search": {"doe"}, "limit": {"10"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(http.MethodGet, "success")))
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   errors.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`, errors.KindAuthentication},
		{"not found", http.StatusNotFound, `{"detail":"Patient not found"}`, errors.KindNotFound},
		{"bad request", http.StatusBadRequest, `{"detail":"Patient with this email already exists"}`, errors.KindValidation},
		{"forbidden", http.StatusForbidden, ``, errors.KindForbidden},
		{"server error", http.StatusInternalServerError, `oops`, errors.KindFetch},
		{"bad gateway", http.StatusBadGateway, ``, errors.KindFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			err := c.Get(context.Background(), "/patients/1", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestClient_ValidationFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","personalInfo","firstName"],"msg":"field required"}]}`))
	})

	err := c.Post(context.Background(), "/patients", map[string]string{}, nil)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.KindValidation, appErr.Kind)
	assert.Equal(t, "field required", appErr.Fields["personalInfo.firstName"])
}

func TestClient_MalformedBodyIsFetchError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [`))
	})

	var out map[string]interface{}
	err := c.Get(context.Background(), "/patients", nil, &out)
	assert.True(t, errors.IsFetch(err))
}

func TestClient_TransportErrorIsFetchError(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, nil, zerolog.Nop())
	require.NoError(t, err)

	err = c.Get(context.Background(), "/patients", nil, nil)
	assert.True(t, errors.IsFetch(err))
}

func TestClient_BreakerOpensOnServerErrorsOnly(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	})

	for i := 0; i < 5; i++ {
		_ = c.Get(context.Background(), "/patients", nil, nil)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 3; i++ {
		_ = c.Get(context.Background(), "/patients", nil, nil)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	err := c.Get(context.Background(), "/patients", nil, nil)
	assert.True(t, errors.IsFetch(err))
}

func TestClient_DeleteNoContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.Delete(context.Background(), "/patients/7"))
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"}, nil, zerolog.Nop())
	assert.Error(t, err)
}
