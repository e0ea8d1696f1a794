// Package validate filters raw proxy candidates through a cheap liveness
// probe. Most public candidates are dead, so probe failures are routine
// and silently drop the candidate; survivors move to the validated queue.
package validate

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/driftlock/drover/internal/pool"
)

// DefaultProbeURL is a low-cost echo endpoint reachable through most
// working HTTP proxies.
const DefaultProbeURL = "http://httpbin.org/post"

const defaultWait = time.Second

// Stats is a snapshot of the validation counters. Both values are
// monotonically non-decreasing for the lifetime of a Validator.
type Stats struct {
	Checked   int
	Validated int
}

// ProbeFunc checks a single candidate. A nil error promotes it.
type ProbeFunc func(ctx context.Context, proxy string) error

type Validator struct {
	raw       *pool.Queue
	validated *pool.Queue
	probe     ProbeFunc
	wait      time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

type Option func(*Validator)

// WithWait changes the bounded wait on the raw queue, which also bounds
// how long a worker takes to observe Stop.
func WithWait(d time.Duration) Option {
	return func(v *Validator) { v.wait = d }
}

func New(p *pool.Pool, probe ProbeFunc, opts ...Option) *Validator {
	v := &Validator{
		raw:       p.Raw,
		validated: p.Validated,
		probe:     probe,
		wait:      defaultWait,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start spawns workers concurrent probe loops.
func (v *Validator) Start(ctx context.Context, workers int) {
	for range workers {
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			v.work(ctx)
		}()
	}
}

// Stop signals all workers and waits for in-flight probes to finish.
func (v *Validator) Stop() {
	v.stopOnce.Do(func() {
		close(v.stop)
	})
	v.wg.Wait()
}

// Stats returns a consistent snapshot of the counters, safe from any
// goroutine.
func (v *Validator) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

func (v *Validator) work(ctx context.Context) {
	for {
		select {
		case <-v.stop:
			return
		default:
		}

		proxy, ok := v.raw.Take(v.stop, v.wait)
		if !ok {
			continue
		}

		v.mu.Lock()
		v.stats.Checked++
		v.mu.Unlock()

		if err := v.probe(ctx, proxy); err != nil {
			// dead candidate, filtered
			slog.DebugContext(ctx, "probe failed", "proxy", proxy, "error", err)
			continue
		}

		v.validated.Put(proxy)
		v.mu.Lock()
		v.stats.Validated++
		v.mu.Unlock()
	}
}

// Probe returns the default ProbeFunc: a short POST to endpoint routed
// through the candidate acting as an HTTP proxy. Any transport error
// (timeout, refused connection, TLS failure) fails the candidate.
func Probe(endpoint string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context, proxy string) error {
		proxyURL, err := url.Parse("http://" + proxy)
		if err != nil {
			return err
		}

		client := &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				DisableKeepAlives: true,
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			},
		}
		defer client.CloseIdleConnections()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("ping=1"))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
}
