package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
	"sjsage522/catalogworker/services/cache"
)

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Client   *http.Client
	DelayMin time.Duration
	DelayMax time.Duration
	// Cache holds per-host block markers set after a rate limit response
	Cache     cache.CacheService
	BlockTime time.Duration
	// DocumentCacheSize bounds the per-run document cache, 0 disables it
	DocumentCacheSize int
	RespectRobots     bool
	Metrics           *metrics.Metrics
}

// Fetcher retrieves pages one at a time and sleeps a random delay after each
// successful request. It performs no retries.
type Fetcher struct {
	client    *http.Client
	delayMin  time.Duration
	delayMax  time.Duration
	cache     cache.CacheService
	blockTime time.Duration
	docs      *lru.Cache[string, Document]
	robots    *robotsPolicy
	metrics   *metrics.Metrics
	log       *logger.Logger

	sleep func(ctx context.Context, d time.Duration)

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewFetcher creates a fetcher from options
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.DelayMin < 0 || opts.DelayMax < opts.DelayMin {
		return nil, errors.NewConfiguration(fmt.Sprintf("invalid fetch delay range [%s, %s]", opts.DelayMin, opts.DelayMax), nil)
	}

	client := opts.Client
	if client == nil {
		client = helpers.DefaultClient(30 * time.Second)
	}

	f := &Fetcher{
		client:    client,
		delayMin:  opts.DelayMin,
		delayMax:  opts.DelayMax,
		cache:     opts.Cache,
		blockTime: opts.BlockTime,
		metrics:   opts.Metrics,
		log:       logger.ForFetcher(),
		sleep:     sleepContext,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if opts.DocumentCacheSize > 0 {
		docs, err := lru.New[string, Document](opts.DocumentCacheSize)
		if err != nil {
			return nil, errors.NewConfiguration("failed to create document cache", err)
		}
		f.docs = docs
	}

	if opts.RespectRobots {
		f.robots = newRobotsPolicy(client)
	}

	return f, nil
}

// Fetch retrieves url and parses it. Every failure is a *errors.HarvestError carrying the URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Document, error) {
	if f.docs != nil {
		if doc, ok := f.docs.Get(url); ok {
			f.metrics.IncRequest("cached")
			return doc, nil
		}
	}

	if f.robots != nil && !f.robots.Allowed(ctx, url) {
		f.metrics.IncRequest("blocked")
		return nil, errors.NewBlocked(url, "disallowed by robots.txt")
	}

	host := helpers.Host(url)
	if f.isBlocked(host) {
		f.metrics.IncRequest("rate_limit")
		return nil, errors.New(errors.ErrorTypeRateLimit, url,
			fmt.Sprintf("%s is blocked for %s after a rate limit response", host, f.blockTime), nil)
	}

	start := time.Now()
	body, err := helpers.FetchWithRandomHeaders(ctx, f.client, url)
	f.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		errType := errors.TypeOf(err)
		if errType == errors.ErrorTypeRateLimit {
			f.block(host)
		}
		f.metrics.IncRequest(string(errType))
		f.metrics.IncError(string(errType))
		return nil, err
	}

	doc, err := ParseDocument(body, url)
	if err != nil {
		f.metrics.IncRequest(string(errors.ErrorTypeParsing))
		return nil, errors.NewParsing(url, "failed to parse HTML", err)
	}
	f.metrics.IncRequest("ok")

	if f.docs != nil {
		f.docs.Add(url, doc)
	}

	f.sleep(ctx, f.randomDelay())
	return doc, nil
}

// ResetDocuments empties the document cache, called at the start of each run
func (f *Fetcher) ResetDocuments() {
	if f.docs != nil {
		f.docs.Purge()
	}
}

func blockKey(host string) string {
	return "block:" + host
}

func (f *Fetcher) isBlocked(host string) bool {
	if f.cache == nil || host == "" {
		return false
	}
	_, err := f.cache.Get(blockKey(host))
	return err == nil
}

func (f *Fetcher) block(host string) {
	if f.cache == nil || host == "" || f.blockTime <= 0 {
		return
	}
	if err := f.cache.Set(blockKey(host), []byte(fmt.Sprintf("%d", f.blockTime/time.Second)), f.blockTime); err != nil {
		f.log.Warn().Err(err).Str("host", host).Msg("failed to set block marker")
		return
	}
	f.log.Warn().Str("host", host).Dur("block", f.blockTime).Msg("rate limited, host blocked")
}

func (f *Fetcher) randomDelay() time.Duration {
	if f.delayMax <= f.delayMin {
		return f.delayMin
	}
	f.rndMu.Lock()
	defer f.rndMu.Unlock()
	return f.delayMin + time.Duration(f.rnd.Int63n(int64(f.delayMax-f.delayMin)+1))
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
