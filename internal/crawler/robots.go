package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/logger"
)

const robotsAgent = "catalogworker"

// robotsPolicy loads robots.txt once per host and answers allow/deny per path
type robotsPolicy struct {
	client *http.Client
	agent  string
	log    *logger.Logger

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

func newRobotsPolicy(client *http.Client) *robotsPolicy {
	return &robotsPolicy{
		client: client,
		agent:  robotsAgent,
		log:    logger.ForFetcher(),
		hosts:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. Unreachable or broken
// robots.txt files allow everything.
func (p *robotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data := p.load(ctx, u)
	if data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.FindGroup(p.agent).Test(path)
}

func (p *robotsPolicy) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	p.mu.Lock()
	defer p.mu.Unlock()

	if data, ok := p.hosts[key]; ok {
		return data
	}

	var data *robotstxt.RobotsData
	body, status, err := helpers.FetchSimply(ctx, p.client, key+"/robots.txt")
	if err != nil {
		p.log.Warn().Err(err).Str("host", u.Host).Msg("robots.txt unavailable, allowing all paths")
	} else if data, err = robotstxt.FromStatusAndBytes(status, body); err != nil {
		p.log.Warn().Err(err).Str("host", u.Host).Msg("robots.txt unparseable, allowing all paths")
		data = nil
	}

	p.hosts[key] = data
	return data
}
