package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/getmockd/pipeline/pkg/httputil"
)

// Middleware returns an HTTP middleware that rejects requests with 429 once
// the bucket is empty. If bucket is nil, the middleware passes through.
func Middleware(bucket *Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bucket == nil {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(bucket.Burst()))
			if bucket.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			retry := int64(math.Ceil(bucket.RetryAfter().Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			httputil.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please slow down.")
		})
	}
}
