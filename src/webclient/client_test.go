package webclient

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

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("Mew\nCelebi\n"))
	}))
	defer srv.Close()

	body, err := Get(context.Background(), NewDefault(5*time.Second), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Mew\nCelebi\n", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_NotFoundIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Get(context.Background(), nil, srv.URL)
	assert.Error(t, err)
}

func TestDoWithRetry_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DoWithRetry(ctx, 5, time.Hour, func() (int, []byte, error) {
		return 500, nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
