package compute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/ports"
	"stakedeck/internal/types"
)

// Convenience TTLs for Request.CacheTTL. Zero disables caching.
const (
	CacheNone   time.Duration = 0
	CacheMinute               = time.Minute
	CacheHour                 = time.Hour
	CacheDay                  = 24 * time.Hour
	CacheMonth                = 30 * 24 * time.Hour
)

// Request describes one coordinated call to the compute process.
// Tags are ordered; callers MUST keep the order stable because the cache and
// dedup keys are derived from it. UserKey distinguishes otherwise-identical
// requests issued on behalf of different users.
type Request struct {
	Target   string
	Tags     []types.Tag
	Signer   bool
	CacheTTL time.Duration
	UserKey  string
}

func (r Request) validate() error {
	if r.Target == "" {
		return types.Err(types.ErrInvalidRequest, nil, "target is required")
	}
	return nil
}

// Coordinator guards every outbound compute call: warm cache hits return
// before anything else, logically identical in-flight requests share one
// pending result, and fresh calls go through the dispatch limiter. It owns
// its in-flight map, limiter, and cache so tests can construct one around
// fakes instead of touching package state.
type Coordinator struct {
	gateway ports.ComputeGateway
	limiter *Limiter
	cache   ports.ResultCache

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done chan struct{}
	res  types.CallResult
	err  error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCache injects a result cache backend (redis in production). The
// default is an in-process TTL cache.
func WithCache(c ports.ResultCache) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.cache = c
		}
	}
}

// WithLimiter overrides the dispatch limiter.
func WithLimiter(l *Limiter) Option {
	return func(co *Coordinator) {
		if l != nil {
			co.limiter = l
		}
	}
}

func NewCoordinator(gateway ports.ComputeGateway, cfg types.LimiterConfig, opts ...Option) *Coordinator {
	co := &Coordinator{
		gateway:  gateway,
		limiter:  NewLimiter(cfg),
		cache:    newMemCache(),
		inflight: make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// Execute runs one coordinated call and returns its settled result.
//
// Order of checks: cache (a warm entry never touches the limiter), then the
// in-flight map (at most one concurrent call per key), then the limiter. The
// in-flight registration is removed when the call settles, success or not.
// No retry happens here; see Retry.
func (c *Coordinator) Execute(ctx context.Context, req Request) (types.CallResult, error) {
	if err := req.validate(); err != nil {
		return types.CallResult{}, err
	}
	key := requestKey(req.Target, req.Tags, req.UserKey)

	if req.CacheTTL > 0 {
		if res, ok := c.cacheGet(ctx, key); ok {
			return res, nil
		}
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return call.wait(ctx)
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	res, err := c.dispatch(ctx, req)
	call.res, call.err = res, err
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	if err == nil && req.CacheTTL > 0 {
		c.cachePut(ctx, key, res, req.CacheTTL)
	}
	return res, err
}

// wait blocks until the shared call settles. Joiners that give up early get
// their own ctx error; the call itself keeps running under the first
// caller's context.
func (call *inflightCall) wait(ctx context.Context) (types.CallResult, error) {
	select {
	case <-call.done:
		return call.res, call.err
	case <-ctx.Done():
		return types.CallResult{}, ctx.Err()
	}
}

func (c *Coordinator) dispatch(ctx context.Context, req Request) (types.CallResult, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return types.CallResult{}, err
	}
	defer c.limiter.Release()

	if !req.Signer {
		return c.gateway.Query(ctx, req.Target, req.Tags)
	}
	id, err := c.gateway.Submit(ctx, req.Target, req.Tags)
	if err != nil {
		return types.CallResult{}, fmt.Errorf("submit: %w", err)
	}
	if id == "" {
		return types.CallResult{}, types.ErrNoSubmissionID
	}
	return c.gateway.AwaitResult(ctx, req.Target, id)
}

func (c *Coordinator) cacheGet(ctx context.Context, key string) (types.CallResult, bool) {
	payload, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("result cache read failed, falling through to call")
		return types.CallResult{}, false
	}
	if !ok {
		return types.CallResult{}, false
	}
	var res types.CallResult
	if err := json.Unmarshal(payload, &res); err != nil {
		log.WithError(err).Warn("result cache entry undecodable, falling through to call")
		return types.CallResult{}, false
	}
	return res, true
}

func (c *Coordinator) cachePut(ctx context.Context, key string, res types.CallResult, ttl time.Duration) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.WithError(err).Warn("failed to encode result for cache")
		return
	}
	if err := c.cache.Put(ctx, key, payload, ttl); err != nil {
		log.WithError(err).Warn("result cache write failed")
	}
}
