package oauth

import (
	"context"
	"strings"
	"sync"

	"hostel-ingest-service/internal/domain/entity"

	"golang.org/x/oauth2"
)

// DoorTokenCache keeps one cached password-grant token source per door-lock
// account, shared across runs.
type DoorTokenCache struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewDoorTokenCache creates an empty cache
func NewDoorTokenCache() *DoorTokenCache {
	return &DoorTokenCache{sources: make(map[string]oauth2.TokenSource)}
}

// TokenURL is where the door-lock API issues tokens
func TokenURL(cfg *entity.DoorSystemConfig) string {
	return strings.TrimRight(cfg.APIURL, "/") + "/oauth2/token"
}

func cacheKey(cfg *entity.DoorSystemConfig) string {
	return strings.Join([]string{cfg.APIURL, cfg.ClientID, cfg.Username, cfg.Password}, "\x00")
}

// TokenSource returns the cached token source for cfg. Tokens are reused
// until they expire, then the password grant runs again.
func (c *DoorTokenCache) TokenSource(ctx context.Context, cfg *entity.DoorSystemConfig) oauth2.TokenSource {
	key := cacheKey(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.sources[key]; ok {
		return ts
	}

	src := &passwordTokenSource{
		// the source outlives the run that created it
		ctx: context.WithoutCancel(ctx),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: TokenURL(cfg)},
		},
		username: cfg.Username,
		password: cfg.Password,
	}
	ts := oauth2.ReuseTokenSource(nil, src)
	c.sources[key] = ts
	return ts
}

// Invalidate drops the cached token for cfg, e.g. after a 401
func (c *DoorTokenCache) Invalidate(cfg *entity.DoorSystemConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, cacheKey(cfg))
}

type passwordTokenSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
}
