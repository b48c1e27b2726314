package content

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource(t *testing.T) {
	var authHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/market/plugins/p/agents/a.md":
			_, _ = w.Write([]byte("agent a"))
		case "/market/forbidden.md":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src, err := NewHTTPSource(server.URL+"/market", WithToken("secret"), WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, src.Stat(ctx, "plugins/p/agents/a.md"))
	assert.Equal(t, "Bearer secret", authHeader.Load())

	data, err := src.ReadFile(ctx, "plugins/p/agents/a.md")
	require.NoError(t, err)
	assert.Equal(t, "agent a", string(data))

	err = src.Stat(ctx, "plugins/p/agents/missing.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = src.ReadFile(ctx, "forbidden.md")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.False(t, se.Temporary())
}

func TestHTTPSourceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	src, err := NewHTTPSource(server.URL, WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	data, err := src.ReadFile(context.Background(), "x.md")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSourceDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	src, err := NewHTTPSource(server.URL, WithRetry(5, time.Millisecond))
	require.NoError(t, err)

	_, err = src.ReadFile(context.Background(), "x.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSourceGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src, err := NewHTTPSource(server.URL, WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	_, err = src.ReadFile(context.Background(), "x.md")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSourceRejectsOversizedBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		size := MaxFileSize
		if r.URL.Path == "/big.md" {
			size++
		}
		_, _ = w.Write(bytes.Repeat([]byte("x"), size))
	}))
	defer server.Close()

	src, err := NewHTTPSource(server.URL, WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	data, err := src.ReadFile(ctx, "fits.md")
	require.NoError(t, err)
	assert.Len(t, data, MaxFileSize)

	calls.Store(0)
	data, err = src.ReadFile(ctx, "big.md")
	require.Error(t, err)
	assert.Nil(t, data)
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Equal(t, int32(1), calls.Load(), "oversized bodies are not retried")
}

func TestNewHTTPSourceRejectsScheme(t *testing.T) {
	_, err := NewHTTPSource("ftp://example.com")
	require.Error(t, err)
}
