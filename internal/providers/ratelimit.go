package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously over a one minute window.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastRefill time.Time
	pausedTill time.Time

	consumed int64
	waited   time.Duration
	last429  time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitzero"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		tokens:     float64(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		delay := r.reserve(time.Now())
		r.mu.Unlock()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += delay
			r.mu.Unlock()
		}
	}
}

// reserve takes a token and returns 0, or returns how long to wait.
// Must be called with the lock held.
func (r *RateLimiter) reserve(now time.Time) time.Duration {
	if now.Before(r.pausedTill) {
		return r.pausedTill.Sub(now)
	}
	r.refill(now)
	if r.tokens >= 1 {
		r.tokens--
		r.consumed++
		return 0
	}
	perSecond := float64(r.perMinute) / 60.0
	return time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
}

// Record429 drains the bucket and pauses callers for retryAfter.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.last429 = now
	r.tokens = 0
	if retryAfter > 0 {
		r.pausedTill = now.Add(retryAfter)
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(time.Now())
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		Last429Time:     r.last429,
	}
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now
	r.tokens += elapsed * float64(r.perMinute) / 60.0
	if r.tokens > float64(r.perMinute) {
		r.tokens = float64(r.perMinute)
	}
}

// limitedClient gates an LLMClient behind a RateLimiter.
type limitedClient struct {
	LLMClient
	limiter *RateLimiter
}

// WithRateLimit wraps client so calls wait for a token and 429s pause the bucket.
// A non-positive rpm returns client unchanged.
func WithRateLimit(client LLMClient, rpm int) LLMClient {
	if rpm <= 0 {
		return client
	}
	return &limitedClient{LLMClient: client, limiter: NewRateLimiter(rpm)}
}

func (c *limitedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.LLMClient.Chat(ctx, req)
	if rle, ok := IsRateLimitError(err); ok {
		c.limiter.Record429(rle.RetryAfter)
	}
	return res, err
}
