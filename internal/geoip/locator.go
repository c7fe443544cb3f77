package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/ipinfo/go/v2/ipinfo"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	cacheTTL      = 30 * 24 * time.Hour
	localLocation = "localhost"
)

// Locator resolves the approximate location of login addresses.
type Locator struct {
	mu          sync.Mutex
	ipinfo      *ipinfo.Client
	redisClient *redis.Client
}

// NewLocator returns a locator backed by ipinfo. A nil ipinfo client
// disables lookups.
func NewLocator(ipinfoClient *ipinfo.Client, redisClient *redis.Client) *Locator {
	return &Locator{
		ipinfo:      ipinfoClient,
		redisClient: redisClient,
	}
}

func cacheKey(ip string) string {
	return fmt.Sprintf("ip-info::%s", ip)
}

// Locate returns "City, Country" for ip.
func (l *Locator) Locate(ctx context.Context, ip string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "geoip.locate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.ip", ip))

	if ip == pkg.LocalhostIP || pkg.IPIsLocal(ip) {
		return localLocation, nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return localLocation, nil
	}
	if l.ipinfo == nil {
		return "", nil
	}

	// concurrent logins from one address should hit ipinfo once
	l.mu.Lock()
	defer l.mu.Unlock()

	key := cacheKey(ip)
	cached, err := l.redisClient.Get(ctx, key).Result()
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("user.ip.from-cache", true))
		log.Tracef("found location for [%s] in redis cache", ip)
		return cached, nil
	case errors.Is(err, redis.Nil):
		log.Debugf("location for [%s] not cached", ip)
	default:
		log.Errorf("get cached location for [%s]: %s", key, err)
	}
	span.SetAttributes(attribute.Bool("user.ip.from-cache", false))

	info, err := l.ipinfo.GetIPInfo(parsed)
	if err != nil {
		return "", fmt.Errorf("get ip info: %w", err)
	}
	location := formatLocation(info)

	if err := l.redisClient.Set(ctx, key, location, cacheTTL).Err(); err != nil {
		log.Errorf("failed to cache location for %s: %s", ip, err)
	}

	return location, nil
}

func formatLocation(info *ipinfo.Core) string {
	country := info.CountryName
	if country == "" {
		country = info.Country
	}

	var parts []string
	if city := strings.TrimSpace(info.City); city != "" {
		parts = append(parts, city)
	}
	if country = strings.TrimSpace(country); country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}
