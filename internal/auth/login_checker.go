package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	ttl         time.Duration
	tokens      *TokenIssuer
	redisClient *redis.Client
	NowFunc     func() time.Time
}

func NewLoginChecker(ttl time.Duration, tokens *TokenIssuer, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		tokens:      tokens,
		redisClient: redisClient,
		NowFunc:     time.Now,
	}
}

// Authenticate validates the token and checks its session is still open.
func (lc *LoginChecker) Authenticate(ctx context.Context, token string) (_ *Principal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "loginChecker.authenticate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	principal, err := lc.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	createdAtUnixStr, err := lc.redisClient.Get(ctx, sessionKey(principal.SessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	createdAtUnix, err := strconv.ParseInt(createdAtUnixStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	// logged out
	if createdAtUnix == 0 {
		return nil, ErrSessionNotFound
	}

	createdAt := time.Unix(createdAtUnix, 0)
	if lc.NowFunc().Sub(createdAt) > lc.ttl {
		return nil, ErrSessionExpired
	}

	return principal, nil
}
