package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-resty/resty/v2"
)

// Registry answers whether a number is on the do-not-call register.
// Numbers are E.164.
type Registry interface {
	IsRegistered(ctx context.Context, e164 string) (bool, error)
}

// NotRegistered is the default registry: every number is callable.
// It is used when no registry endpoint is configured.
type NotRegistered struct{}

func (NotRegistered) IsRegistered(context.Context, string) (bool, error) { return false, nil }

// HTTPRegistryConfig configures the registry lookup client.
type HTTPRegistryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPRegistry looks numbers up against a TPS/CTPS lookup service:
//
//	GET {base}/v1/lookup?number=+447700900000  ->  {"number": "...", "registered": true}
type HTTPRegistry struct {
	client *resty.Client
}

type lookupResponse struct {
	Number     string `json:"number"`
	Registered *bool  `json:"registered"`
}

func NewHTTPRegistry(cfg HTTPRegistryConfig) *HTTPRegistry {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &HTTPRegistry{client: client}
}

func (r *HTTPRegistry) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	var out lookupResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("number", e164).
		SetResult(&out).
		Get("/v1/lookup")
	if err != nil {
		return false, fmt.Errorf("registry lookup: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("registry lookup: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.Registered == nil {
		return false, errors.New("registry lookup: response missing registered flag")
	}
	return *out.Registered, nil
}

// CachedRegistry remembers definite answers from Next for TTL.
// Errors are never cached.
type CachedRegistry struct {
	Next  Registry
	cache *freecache.Cache
	ttl   int
}

func NewCachedRegistry(next Registry, sizeBytes int, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		Next:  next,
		cache: freecache.NewCache(sizeBytes),
		ttl:   int(ttl / time.Second),
	}
}

func (c *CachedRegistry) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	key := []byte(e164)
	if raw, err := c.cache.Get(key); err == nil && len(raw) == 1 {
		return raw[0] == 1, nil
	}

	registered, err := c.Next.IsRegistered(ctx, e164)
	if err != nil {
		return false, err
	}
	v := []byte{0}
	if registered {
		v[0] = 1
	}
	_ = c.cache.Set(key, v, c.ttl)
	return registered, nil
}
