package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		ip := httpx.IPKeyExtractor(req)
		require.Equal(t, "192.168.1.1", ip)
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		ip := httpx.IPKeyExtractor(req)
		require.Equal(t, "203.0.113.1", ip)
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")

		ip := httpx.IPKeyExtractor(req)
		require.Equal(t, "203.0.113.2", ip)
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	t.Run("combines multiple extractors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Device-ID", "dev_abc")

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.IPKeyExtractor,
			httpx.HeaderKeyExtractor("X-Device-ID"),
		)

		key := extractor(req)
		require.Equal(t, "192.168.1.1:dev_abc", key)
	})

	t.Run("skips empty values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil) // no header
		req.RemoteAddr = "192.168.1.1:12345"

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.IPKeyExtractor,
			httpx.HeaderKeyExtractor("X-Device-ID"),
		)

		key := extractor(req)
		require.Equal(t, "192.168.1.1", key)
	})
}

func TestRateLimiter_Check(t *testing.T) {
	t.Run("counts up to the limit then denies", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{
			RequestsPerWindow: 10,
			Window:            time.Minute,
		})
		defer rl.Stop()

		for i := range 10 {
			result := rl.Check("client-1")
			require.True(t, result.Allowed, "request %d should be allowed", i+1)
			require.Equal(t, 10-(i+1), result.Remaining)
		}

		// 11th call in the same window is denied
		result := rl.Check("client-1")
		require.False(t, result.Allowed)
		require.Equal(t, 0, result.Remaining)
		require.False(t, result.ResetTime.Before(time.Now()))
	})

	t.Run("fresh window resets the count to 1", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{
			RequestsPerWindow: 2,
			Window:            50 * time.Millisecond,
		})
		defer rl.Stop()

		require.True(t, rl.Check("client-1").Allowed)
		require.True(t, rl.Check("client-1").Allowed)
		require.False(t, rl.Check("client-1").Allowed)

		time.Sleep(60 * time.Millisecond)

		result := rl.Check("client-1")
		require.True(t, result.Allowed)
		require.Equal(t, 1, result.Remaining, "window should restart with count=1")
	})

	t.Run("keys are tracked independently", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
		})
		defer rl.Stop()

		require.True(t, rl.Check("client-1").Allowed)
		require.False(t, rl.Check("client-1").Allowed)
		require.True(t, rl.Check("client-2").Allowed)
	})

	t.Run("concurrent checks never admit more than the limit", func(t *testing.T) {
		const limit = 25
		const workers = 100

		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{
			RequestsPerWindow: limit,
			Window:            time.Minute,
		})
		defer rl.Stop()

		var admitted atomic.Int64
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rl.Check("shared").Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int64(limit), admitted.Load())
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("blocks requests over limit with retry metadata", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 3,
			Window:            time.Minute,
		}

		limitedHandler := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(handler)

		for i := range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()

			limitedHandler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		limitedHandler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
		}

		limitedHandler := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(handler)

		req1 := httptest.NewRequest(http.MethodGet, "/", nil)
		req1.RemoteAddr = "192.168.1.1:12345"
		rec1 := httptest.NewRecorder()
		limitedHandler.ServeHTTP(rec1, req1)
		require.Equal(t, http.StatusOK, rec1.Code)

		req2 := httptest.NewRequest(http.MethodGet, "/", nil)
		req2.RemoteAddr = "192.168.1.1:12345"
		rec2 := httptest.NewRecorder()
		limitedHandler.ServeHTTP(rec2, req2)
		require.Equal(t, http.StatusTooManyRequests, rec2.Code)

		req3 := httptest.NewRequest(http.MethodGet, "/", nil)
		req3.RemoteAddr = "192.168.1.2:12345"
		rec3 := httptest.NewRecorder()
		limitedHandler.ServeHTTP(rec3, req3)
		require.Equal(t, http.StatusOK, rec3.Code)
	})
}
