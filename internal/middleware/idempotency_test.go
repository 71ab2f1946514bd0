package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIdempotentRouter(t *testing.T, client *redis.Client, status int) (*gin.Engine, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := 0
	r := gin.New()
	r.POST("/submit", IdempotencyMiddleware(client, zap.NewNop()), func(c *gin.Context) {
		calls++
		c.JSON(status, gin.H{"call": calls})
	})
	return r, &calls
}

func post(r http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r, calls := newIdempotentRouter(t, client, http.StatusCreated)

	first := post(r, "k1")
	second := post(r, "k1")

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, *calls)

	ttl := mr.TTL(idempotencyPrefix + "/submit:k1")
	assert.Equal(t, idempotencyTTL, ttl)

	// A different key is a different request.
	post(r, "k2")
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_WithoutKeyOrClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r, calls := newIdempotentRouter(t, client, http.StatusCreated)
	post(r, "")
	post(r, "")
	assert.Equal(t, 2, *calls)

	bare, bareCalls := newIdempotentRouter(t, nil, http.StatusCreated)
	post(bare, "k1")
	post(bare, "k1")
	assert.Equal(t, 2, *bareCalls)
}

func TestIdempotency_FailuresAreRetryable(t *testing.T) {
	statuses := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusConflict,
		http.StatusServiceUnavailable,
	}

	for _, status := range statuses {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer client.Close()

			r, calls := newIdempotentRouter(t, client, status)
			post(r, "k1")
			second := post(r, "k1")

			assert.Equal(t, 2, *calls)
			assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
			assert.False(t, mr.Exists(idempotencyPrefix+"/submit:k1"))
		})
	}
}

func TestIdempotency_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	r, calls := newIdempotentRouter(t, client, http.StatusCreated)
	w := post(r, "k1")

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, *calls)
}
