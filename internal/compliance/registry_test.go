package compliance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRegistry_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/lookup", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("number") {
		case "+447700900001":
			_, _ = w.Write([]byte(`{"number":"+447700900001","registered":true}`))
		case "+447700900002":
			_, _ = w.Write([]byte(`{"number":"+447700900002","registered":false}`))
		case "+447700900003":
			_, _ = w.Write([]byte(`{"number":"+447700900003"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	}))
	defer srv.Close()

	r := NewHTTPRegistry(HTTPRegistryConfig{BaseURL: srv.URL + "/", APIKey: "key-1", Timeout: time.Second})
	ctx := context.Background()

	got, err := r.IsRegistered(ctx, "+447700900001")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = r.IsRegistered(ctx, "+447700900002")
	require.NoError(t, err)
	assert.False(t, got)

	_, err = r.IsRegistered(ctx, "+447700900003")
	assert.Error(t, err)

	_, err = r.IsRegistered(ctx, "+447700900009")
	assert.Error(t, err)
}

type countingRegistry struct {
	calls  int
	answer bool
	err    error
}

func (c *countingRegistry) IsRegistered(context.Context, string) (bool, error) {
	c.calls++
	return c.answer, c.err
}

func TestCachedRegistry_CachesAnswers(t *testing.T) {
	next := &countingRegistry{answer: true}
	c := NewCachedRegistry(next, 1024*1024, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := c.IsRegistered(context.Background(), "+447700900001")
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedRegistry_DoesNotCacheErrors(t *testing.T) {
	next := &countingRegistry{err: errors.New("timeout")}
	c := NewCachedRegistry(next, 1024*1024, time.Hour)

	_, err := c.IsRegistered(context.Background(), "+447700900001")
	assert.Error(t, err)
	_, err = c.IsRegistered(context.Background(), "+447700900001")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestNotRegistered(t *testing.T) {
	got, err := NotRegistered{}.IsRegistered(context.Background(), "+447700900001")
	require.NoError(t, err)
	assert.False(t, got)
}
