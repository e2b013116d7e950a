package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/gomail.v2"
)

// ErrNoneVerified indicates every SMTP configuration failed its
// verification handshake. Callers treat this as "no SMTP path right
// now", not as a fatal condition.
var ErrNoneVerified = errors.New("smtp: no configuration passed verification")

// dialFunc opens an authenticated SMTP session for a configuration.
// Replaced in tests with an in-memory fake.
type dialFunc func(cfg Config) (gomail.SendCloser, error)

func gomailDial(cfg Config) (gomail.SendCloser, error) {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return d.Dial()
}

// pool is the connection health cache. It remembers which configuration
// last passed a verification handshake so sends do not reprobe the
// whole priority list. Verification is lazy: it runs only when nothing
// is cached or after an explicit invalidation, which bounds probing to
// the request rate. Concurrent callers hitting an empty cache coalesce
// into a single probe pass.
type pool struct {
	configs []Config
	dial    dialFunc
	log     *slog.Logger
	group   singleflight.Group

	mu         sync.RWMutex
	current    int // 1-based ordinal of the verified config, 0 when empty
	verifiedAt time.Time
}

func newPool(configs []Config, dial dialFunc, log *slog.Logger) *pool {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &pool{
		configs: configs,
		dial:    dial,
		log:     log,
	}
}

// ensureVerified returns the ordinal of the verified configuration,
// probing candidates in priority order when the cache is empty.
func (p *pool) ensureVerified(ctx context.Context) (int, bool) {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current > 0 {
		return current, true
	}

	v, err, _ := p.group.Do("verify", func() (any, error) {
		// Another caller may have finished verification while this one
		// waited on the flight group.
		p.mu.RLock()
		current := p.current
		p.mu.RUnlock()
		if current > 0 {
			return current, nil
		}
		return p.verify(ctx)
	})
	if err != nil {
		return 0, false
	}
	return v.(int), true
}

// verify probes configurations in priority order. First success wins;
// the remaining candidates are not touched.
func (p *pool) verify(ctx context.Context) (int, error) {
	for i, cfg := range p.configs {
		ordinal := i + 1

		sc, err := dialTimeout(ctx, cfg.VerifyTimeout, func() (gomail.SendCloser, error) {
			return p.dial(cfg)
		})
		if err != nil {
			p.log.WarnContext(ctx, "smtp configuration failed verification",
				slog.Int("config", ordinal),
				slog.String("host", cfg.Host),
				slog.String("error", err.Error()),
			)
			continue
		}
		_ = sc.Close()

		now := time.Now()
		p.mu.Lock()
		p.current = ordinal
		p.verifiedAt = now
		p.mu.Unlock()

		p.log.InfoContext(ctx, "smtp configuration verified",
			slog.Int("config", ordinal),
			slog.String("host", cfg.Host),
		)
		return ordinal, nil
	}

	return 0, ErrNoneVerified
}

// invalidate drops the cached configuration. The next ensureVerified
// call reprobes from the top of the priority list.
func (p *pool) invalidate() {
	p.mu.Lock()
	p.current = 0
	p.verifiedAt = time.Time{}
	p.mu.Unlock()
}

// verified returns the cached configuration, its ordinal, and whether
// the cache currently holds one.
func (p *pool) verified() (Config, int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == 0 {
		return Config{}, 0, false
	}
	return p.configs[p.current-1], p.current, true
}

// status describes the cache for observability snapshots.
func (p *pool) status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{
		Configured: len(p.configs),
		VerifiedAt: p.verifiedAt,
	}
	if p.current > 0 {
		st.Verified = true
		st.Ordinal = p.current
		st.Host = p.configs[p.current-1].Host
	}
	return st
}

// Status is a read-only snapshot of the connection health cache.
type Status struct {
	Verified   bool
	Ordinal    int
	Host       string
	Configured int
	VerifiedAt time.Time
}

// dialTimeout runs dial with an upper bound, since gomail dials without
// context support. A session that arrives after the deadline is closed
// instead of leaked.
func dialTimeout(ctx context.Context, timeout time.Duration, dial func() (gomail.SendCloser, error)) (gomail.SendCloser, error) {
	ch := make(chan dialResult, 1)
	go func() {
		sc, err := dial()
		ch <- dialResult{sc: sc, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.sc, r.err
	case <-ctx.Done():
		go drainDial(ch)
		return nil, ctx.Err()
	case <-timer.C:
		go drainDial(ch)
		return nil, context.DeadlineExceeded
	}
}

type dialResult struct {
	sc  gomail.SendCloser
	err error
}

func drainDial(ch <-chan dialResult) {
	if r := <-ch; r.sc != nil {
		_ = r.sc.Close()
	}
}
