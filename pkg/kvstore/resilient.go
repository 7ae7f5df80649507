package kvstore

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// DefaultProbeInterval is how often a degraded client re-probes the remote
// cache before flipping back to healthy.
const DefaultProbeInterval = 30 * time.Second

const probeTimeout = 2 * time.Second

// Health state machine. Transitions are logged once per edge; individual
// operation failures while degraded are not logged again.
const (
	stateHealthy int32 = iota
	stateDegraded
)

// Resilient wraps a remote cache client and transparently falls back to an
// in-process Memory store whenever the remote is unreachable. Callers observe
// nothing but possibly different staleness: a failover or recovery never
// surfaces as an error.
//
// The health flag is shared mutable state; reads and writes are cheap atomic
// operations and a single background prober owns the degraded -> healthy
// transition.
type Resilient struct {
	remote   *redis.Client
	fallback *Memory
	log      *slog.Logger

	state atomic.Int32

	// probe paces remote re-checks to one per interval, no matter how many
	// fallback-served operations ask for one.
	probe   *rate.Limiter
	probeCh chan struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewResilient builds a Resilient store around the given remote client and
// starts the background prober.
func NewResilient(remote *redis.Client, logger *slog.Logger, probeInterval time.Duration) *Resilient {
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}

	r := &Resilient{
		remote:   remote,
		fallback: NewMemory(),
		log:      logger,
		probe:    rate.NewLimiter(rate.Every(probeInterval), 1),
		probeCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.prober(probeInterval)
	return r
}

func (r *Resilient) Get(ctx context.Context, key string) (string, error) {
	if r.degraded() {
		r.maybeProbe()
		return r.fallback.Get(ctx, key)
	}
	val, err := r.remote.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		r.markDegraded(err)
		return r.fallback.Get(ctx, key)
	}
	return val, nil
}

func (r *Resilient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if r.degraded() {
		r.maybeProbe()
		return r.fallback.Set(ctx, key, value, ttl)
	}
	if err := r.remote.Set(ctx, key, value, ttl).Err(); err != nil {
		r.markDegraded(err)
		return r.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

func (r *Resilient) Delete(ctx context.Context, key string) error {
	if r.degraded() {
		r.maybeProbe()
		return r.fallback.Delete(ctx, key)
	}
	if err := r.remote.Del(ctx, key).Err(); err != nil {
		r.markDegraded(err)
		return r.fallback.Delete(ctx, key)
	}
	return nil
}

func (r *Resilient) Keys(ctx context.Context, pattern string) ([]string, error) {
	if r.degraded() {
		r.maybeProbe()
		return r.fallback.Keys(ctx, pattern)
	}
	keys, err := r.remote.Keys(ctx, pattern).Result()
	if err != nil {
		r.markDegraded(err)
		return r.fallback.Keys(ctx, pattern)
	}
	return keys, nil
}

func (r *Resilient) TTL(ctx context.Context, key string) (time.Duration, error) {
	if r.degraded() {
		r.maybeProbe()
		return r.fallback.TTL(ctx, key)
	}
	d, err := r.remote.TTL(ctx, key).Result()
	if err != nil {
		r.markDegraded(err)
		return r.fallback.TTL(ctx, key)
	}
	return normalizeRemoteTTL(d)
}

// Ping reports remote reachability while healthy and fallback status (always
// reachable) while degraded, matching what operations would actually hit.
func (r *Resilient) Ping(ctx context.Context) error {
	if r.degraded() {
		r.maybeProbe()
		return nil
	}
	if err := r.remote.Ping(ctx).Err(); err != nil {
		r.markDegraded(err)
	}
	return nil
}

// Healthy reports whether operations are currently served by the remote.
// Exposed for readiness reporting only.
func (r *Resilient) Healthy() bool { return !r.degraded() }

func (r *Resilient) Close() error {
	close(r.stopCh)
	<-r.doneCh
	_ = r.fallback.Close()
	return r.remote.Close()
}

func (r *Resilient) degraded() bool {
	return r.state.Load() == stateDegraded
}

func (r *Resilient) markDegraded(err error) {
	if r.state.CompareAndSwap(stateHealthy, stateDegraded) {
		r.log.Warn("remote cache unreachable, serving from in-process fallback", "err", err)
	}
}

func (r *Resilient) markHealthy() {
	if r.state.CompareAndSwap(stateDegraded, stateHealthy) {
		r.log.Info("remote cache reachable again, leaving fallback mode")
	}
}

// maybeProbe requests an immediate background probe. Called from operations
// that found the store degraded, so recovery does not have to wait out a
// full ticker period; the limiter keeps the combined probe traffic at one
// remote attempt per interval regardless of request volume.
func (r *Resilient) maybeProbe() {
	if !r.probe.Allow() {
		return
	}
	select {
	case r.probeCh <- struct{}{}:
	default:
	}
}

// prober owns the degraded -> healthy transition. Probes come from two
// sources, the periodic ticker and fallback-served operations.
func (r *Resilient) prober(interval time.Duration) {
	defer close(r.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.degraded() || !r.probe.Allow() {
				continue
			}
			r.probeOnce()
		case <-r.probeCh:
			r.probeOnce()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Resilient) probeOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := r.remote.Ping(ctx).Err(); err == nil {
		r.markHealthy()
	}
}

// normalizeRemoteTTL maps the remote protocol's sentinel replies (-1 no
// expiry, -2 missing key) onto the Store contract. Handles both raw sentinel
// values and second-scaled ones so a client library upgrade cannot silently
// change semantics.
func normalizeRemoteTTL(d time.Duration) (time.Duration, error) {
	switch d {
	case -2, -2 * time.Second:
		return 0, ErrNotFound
	case -1, -1 * time.Second:
		return NoExpiry, nil
	default:
		return d, nil
	}
}
