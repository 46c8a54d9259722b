package actuator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = Credentials{User: "walker@example.com", Password: "s3cret"}

func TestPushSendsFormAndDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "walker@example.com", r.PostForm.Get("user"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))
		assert.Equal(t, "4321", r.PostForm.Get("step"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"msg":"ok","data":{"step":4321}}`))
	}))
	defer srv.Close()

	ok, resp := New(srv.URL).Push(context.Background(), creds, 4321)
	require.True(t, ok)
	assert.NoError(t, resp.Err())
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "ok", resp.Message)
	assert.Contains(t, resp.String(), `"msg":"ok"`)
}

func TestPushNonJSONBodyIsSynthesized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	ok, resp := New(srv.URL).Push(context.Background(), creds, 10)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadGateway, resp.Body["status"])
	assert.Equal(t, "upstream down", resp.Body["body"])

	var te *TransportError
	require.ErrorAs(t, resp.Err(), &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Equal(t, "upstream down", te.Message)
}

func TestPushNon2xxWithJSONFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":401,"message":"bad password"}`))
	}))
	defer srv.Close()

	ok, resp := New(srv.URL).Push(context.Background(), creds, 10)
	require.False(t, ok)
	assert.Equal(t, 401, resp.Code)
	assert.EqualError(t, resp.Err(), "push failed: http 401: bad password")
}

func TestPushTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	ok, resp := New(url).Push(context.Background(), creds, 10)
	require.False(t, ok)
	assert.Equal(t, -1, resp.Code)
	assert.Equal(t, -1, resp.Body["code"])
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, 0, resp.Status)
}

func TestPushTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	ok, resp := New(srv.URL, WithTimeout(50*time.Millisecond)).Push(context.Background(), creds, 10)
	require.False(t, ok)
	assert.Equal(t, -1, resp.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPushRejectsOutOfRangeWithoutRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(srv.URL)
	for _, step := range []int{-1, MaxStep + 1} {
		ok, resp := c.Push(context.Background(), creds, step)
		require.False(t, ok)
		assert.True(t, errors.Is(resp.Err(), ErrStepOutOfRange))
	}
	assert.Zero(t, hits.Load())

	require.NoError(t, ValidateStep(0))
	require.NoError(t, ValidateStep(MaxStep))
}

func TestNewDefaults(t *testing.T) {
	c := New("  ")
	assert.Equal(t, DefaultURL, c.URL())
	assert.Equal(t, DefaultTimeout, c.hc.Timeout)
}
