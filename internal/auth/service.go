package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTTL            = 24 * 7 * time.Hour
	sessionKeyPrefix      = "gymtracker-session||"
	userSessionsKeyPrefix = "gymtracker-user-sessions||"
	tokensSetKey          = "gymtracker-sessions"
)

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func userSessionsKey(userID int) string {
	return userSessionsKeyPrefix + strconv.Itoa(userID)
}

type Service struct {
	redisClient *redis.Client
	tokens      *TokenIssuer
	ttl         time.Duration
	// ability to inject session id generator and clock (for unit and dev testing)
	NewSessionIDFunc func() string
	NowFunc          func() time.Time
}

func NewAuthService(
	ttl time.Duration,
	tokens *TokenIssuer,
	redisClient *redis.Client,
) *Service {
	return &Service{
		ttl:              ttl,
		tokens:           tokens,
		redisClient:      redisClient,
		NewSessionIDFunc: uuid.NewString,
		NowFunc:          time.Now,
	}
}

// Login opens a new session for the user and returns its signed token.
func (as *Service) Login(ctx context.Context, userID int, role Role, createdAt time.Time) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	sessionID := as.NewSessionIDFunc()
	token, err := as.tokens.Issue(userID, role, sessionID, createdAt, as.ttl)
	if err != nil {
		return "", err
	}

	if err := as.redisClient.Set(ctx, sessionKey(sessionID), createdAt.Unix(), 0).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	// add session to the list of sessions
	if err := as.redisClient.SAdd(ctx, tokensSetKey, sessionID).Err(); err != nil {
		return "", fmt.Errorf("add session to set: %w", err)
	}

	userKey := userSessionsKey(userID)
	if err := as.redisClient.SAdd(ctx, userKey, sessionID).Err(); err != nil {
		return "", fmt.Errorf("add user session: %w", err)
	}
	if err := as.redisClient.Expire(ctx, userKey, as.ttl).Err(); err != nil {
		return "", fmt.Errorf("expire user sessions: %w", err)
	}

	return token, nil
}

// Logout ends the principal's session. Returns false when the session was
// already ended.
func (as *Service) Logout(ctx context.Context, principal *Principal) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.logout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := sessionKey(principal.SessionID)
	createdAtUnixStr, err := as.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrSessionNotFound
		}
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(createdAtUnixStr, 10, 64)
	if err != nil {
		return false, err
	}

	if createdAtUnix > 0 {
		// the ended marker only has to outlive the token itself
		remaining := as.ttl - as.NowFunc().Sub(time.Unix(createdAtUnix, 0))
		if remaining > 0 {
			err = as.redisClient.Set(ctx, key, 0, remaining).Err()
		} else {
			err = as.redisClient.Del(ctx, key).Err()
		}
		if err != nil {
			return false, err
		}
	}

	// remove session from the list of sessions
	if err := as.redisClient.SRem(ctx, tokensSetKey, principal.SessionID).Err(); err != nil {
		return false, err
	}
	if err := as.redisClient.SRem(ctx, userSessionsKey(principal.UserID), principal.SessionID).Err(); err != nil {
		return false, err
	}

	return createdAtUnix > 0, nil
}

// RevokeUserSessions removes every session of the user, so all their tokens
// stop working immediately.
func (as *Service) RevokeUserSessions(ctx context.Context, userID int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.revokeUserSessions")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	userKey := userSessionsKey(userID)
	sessionIDs, err := as.redisClient.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("get user sessions: %w", err)
	}

	for _, sessionID := range sessionIDs {
		if err := as.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
			return 0, fmt.Errorf("delete session: %w", err)
		}
		if err := as.redisClient.SRem(ctx, tokensSetKey, sessionID).Err(); err != nil {
			return 0, fmt.Errorf("remove session from set: %w", err)
		}
	}

	if err := as.redisClient.Del(ctx, userKey).Err(); err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}

	log.Debugf("auth service: revoked %d sessions of user %d", len(sessionIDs), userID)
	return len(sessionIDs), nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (as *Service) ScanAndClean(ctx context.Context) {
	sessionIDs, err := as.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	if len(sessionIDs) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Infof("=> auth service, scan and clean [%d sessions] start ...", len(sessionIDs))
	var toRemove []string
	for _, sessionID := range sessionIDs {
		createdAtUnixStr, err := as.redisClient.Get(ctx, sessionKey(sessionID)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				toRemove = append(toRemove, sessionID)
				continue
			}
			log.Errorf("=> auth service, scan and clean session %s: %s", sessionID, err)
			continue
		}

		createdAtUnix, err := strconv.ParseInt(createdAtUnixStr, 10, 64)
		if err != nil {
			log.Errorf("=> auth service, scan and clean session %s: %s", sessionID, err)
			continue
		}

		createdAt := time.Unix(createdAtUnix, 0)
		if time.Since(createdAt) > as.ttl {
			log.Debugf("=>\twill clean the session: %s", sessionID)
			toRemove = append(toRemove, sessionID)
		}
	}

	for _, sessionID := range toRemove {
		if err := as.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
			log.Errorf("=> auth service, clean session %s: %s", sessionID, err)
			continue
		}

		// remove session from the list of sessions
		if err := as.redisClient.SRem(ctx, tokensSetKey, sessionID).Err(); err != nil {
			log.Errorf("=> auth service, clean session %s: %s", sessionID, err)
			continue
		}
	}
}
