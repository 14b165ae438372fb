package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/apperrors"
)

func TestJSONClient_PostDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := NewJSONClient(srv.URL, Config{MaxAttempts: 1, Timeout: time.Second})
	require.NoError(t, err)

	var resp struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Post(context.Background(), "/api/chat", map[string]string{"model": "x"}, &resp))
	assert.True(t, resp.OK)
}

func TestJSONClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := NewJSONClient(srv.URL, Config{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffCap: 5 * time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)

	var resp struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Get(context.Background(), "/api/tags", &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestJSONClient_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewJSONClient(srv.URL, Config{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/tags", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.DependencyUnavailable, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestJSONClient_4xxIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewJSONClient(srv.URL, Config{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/api/chat", map[string]string{}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.InputInvalid, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}
