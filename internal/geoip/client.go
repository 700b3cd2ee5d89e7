// Package geoip resolves client IP addresses to coarse locations.
// Lookups are throttled and deduplicated; callers treat failures as missing data.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

var (
	ErrDisabled  = errors.New("geoip lookup disabled")
	ErrThrottled = errors.New("geoip lookup throttled")
	ErrInvalidIP = errors.New("invalid ip address")
)

// Location is the subset of the lookup response the backend uses.
type Location struct {
	Country  string `json:"country"`
	Region   string `json:"regionName"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

// String renders "City, Region, Country" without empty parts.
func (l Location) String() string {
	out := ""
	for _, part := range []string{l.City, l.Region, l.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

type lookupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Location
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	log     *logger.Logger

	mu    sync.RWMutex
	cache map[string]Location
}

// NewClient returns a client limited to cfg.GetGeoIPRatePerMinute lookups per minute.
func NewClient(cfg config.GeoIPConfig, log *logger.Logger) *Client {
	perMinute := cfg.GetGeoIPRatePerMinute()
	if perMinute <= 0 {
		perMinute = 45
	}
	c := &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:     log,
		cache:   make(map[string]Location),
	}
	if cfg.IsGeoIPEnabled() {
		c.baseURL = cfg.GetGeoIPURL()
	}
	return c
}

// Lookup never waits for the limiter; calls over the limit fail with ErrThrottled.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	if c == nil || c.baseURL == "" {
		return Location{}, ErrDisabled
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, ErrInvalidIP
	}
	if parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return Location{}, nil
	}
	key := parsed.String()

	c.mu.RLock()
	loc, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if !c.limiter.Allow() {
			return Location{}, ErrThrottled
		}
		loc, err := c.fetch(ctx, key)
		if err != nil {
			return Location{}, err
		}
		c.mu.Lock()
		c.cache[key] = loc
		c.mu.Unlock()
		return loc, nil
	})
	if err != nil {
		return Location{}, err
	}
	return v.(Location), nil
}

func (c *Client) fetch(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+ip, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geoip request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Location{}, fmt.Errorf("geoip error: status %d: %s", resp.StatusCode, string(body))
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}, fmt.Errorf("decode geoip response: %w", err)
	}
	if out.Status != "" && out.Status != "success" {
		c.log.Debug("geoip lookup unsuccessful", "ip", ip, "message", out.Message)
		return Location{}, fmt.Errorf("geoip lookup failed: %s", out.Message)
	}
	return out.Location, nil
}
