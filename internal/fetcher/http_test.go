package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload")) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(Options{MaxRetries: 3, Timeout: 5 * time.Second})
	body, err := c.Get(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{MaxRetries: 3})
	_, err := c.Get(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetSetsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(Options{UserAgent: "test-agent/1.0"})
	_, err := c.Get(context.Background(), Request{URL: srv.URL, Accept: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "text/csv", gotAccept)
}

func TestGetHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Options{})
	_, err := c.Get(ctx, Request{URL: srv.URL})
	assert.Error(t, err)
}
