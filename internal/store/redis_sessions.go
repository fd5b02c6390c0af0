package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ayush/water-tracker/backend/internal/models"
)

// Key layout:
//
//	session:id:{id}           hash with the session fields
//	session:access:{token}    id of the session owning the access token
//	session:account:{account} set of session ids of one account
//
// The three namespaces are disjoint, so no caller-supplied id can address an
// index key. Session and access keys expire with the refresh token; the
// account set expires with the account's latest refresh token.
const (
	sessionKeyPrefix = "session:id:"
	accessKeyPrefix  = "session:access:"
	accountKeyPrefix = "session:account:"
)

// rotateScript deletes a session only when its stored refresh token equals
// ARGV[1]. Returns 1 when the session was removed, 0 otherwise.
var rotateScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'refreshToken')
if not stored or stored ~= ARGV[1] then
	return 0
end
local access = redis.call('HGET', KEYS[1], 'accessToken')
local account = redis.call('HGET', KEYS[1], 'accountId')
redis.call('DEL', KEYS[1])
if access then
	redis.call('DEL', ARGV[2] .. access)
end
if account then
	redis.call('SREM', ARGV[3] .. account, ARGV[4])
end
return 1
`)

// RedisSessionStore keeps sessions in Redis.
type RedisSessionStore struct {
	rdb redis.UniversalClient
}

func NewRedisSessionStore(rdb redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(id string) string        { return sessionKeyPrefix + id }
func accessKey(token string) string      { return accessKeyPrefix + token }
func accountKey(accountID string) string { return accountKeyPrefix + accountID }

func (s *RedisSessionStore) FindOne(ctx context.Context, filter models.SessionFilter) (*models.Session, error) {
	if filter.Empty() {
		return nil, nil
	}
	switch {
	case filter.ID != "":
		return s.loadMatching(ctx, filter.ID, filter)
	case filter.AccessToken != "":
		id, err := s.rdb.Get(ctx, accessKey(filter.AccessToken)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get access token: %w", err)
		}
		return s.loadMatching(ctx, id, filter)
	case filter.AccountID != "":
		ids, err := s.rdb.SMembers(ctx, accountKey(filter.AccountID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis session ids: %w", err)
		}
		for _, id := range ids {
			sess, err := s.loadMatching(ctx, id, filter)
			if err != nil || sess != nil {
				return sess, err
			}
		}
		return nil, nil
	default:
		// A bare refresh token is never looked up on its own; it always
		// travels with the session id.
		return nil, nil
	}
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	until := session.RefreshTokenValidUntil
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.ID), map[string]any{
			"accountId":              session.AccountID,
			"accessToken":            session.AccessToken,
			"refreshToken":           session.RefreshToken,
			"accessTokenValidUntil":  session.AccessTokenValidUntil.UnixMilli(),
			"refreshTokenValidUntil": until.UnixMilli(),
			"createdAt":              session.CreatedAt.UnixMilli(),
		})
		pipe.ExpireAt(ctx, sessionKey(session.ID), until)
		pipe.Set(ctx, accessKey(session.AccessToken), session.ID, 0)
		pipe.ExpireAt(ctx, accessKey(session.AccessToken), until)
		pipe.SAdd(ctx, accountKey(session.AccountID), session.ID)
		// Refresh TTLs are fixed, so the newest session always expires last.
		pipe.ExpireAt(ctx, accountKey(session.AccountID), until)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteOne(ctx context.Context, filter models.SessionFilter) (bool, error) {
	sess, err := s.FindOne(ctx, filter)
	if err != nil || sess == nil {
		return false, err
	}
	n, err := s.remove(ctx, sess)
	return n > 0, err
}

func (s *RedisSessionStore) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	ids, err := s.rdb.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis session ids: %w", err)
	}
	var deleted int64
	for _, id := range ids {
		sess, err := s.load(ctx, id)
		if err != nil {
			return deleted, err
		}
		if sess == nil {
			continue
		}
		n, err := s.remove(ctx, sess)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	if err := s.rdb.Del(ctx, accountKey(accountID)).Err(); err != nil {
		return deleted, fmt.Errorf("redis delete session set: %w", err)
	}
	return deleted, nil
}

// Rotate runs the delete-if-matches step as a Lua script, which Redis
// executes atomically, then stores next.
func (s *RedisSessionStore) Rotate(ctx context.Context, id, refreshToken string, next *models.Session) (bool, error) {
	removed, err := rotateScript.Run(ctx, s.rdb,
		[]string{sessionKey(id)},
		refreshToken, accessKeyPrefix, accountKeyPrefix, id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rotate session: %w", err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := s.Create(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisSessionStore) remove(ctx context.Context, sess *models.Session) (int64, error) {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, sessionKey(sess.ID))
		pipe.Del(ctx, accessKey(sess.AccessToken))
		pipe.SRem(ctx, accountKey(sess.AccountID), sess.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis delete session: %w", err)
	}
	return del.Val(), nil
}

func (s *RedisSessionStore) loadMatching(ctx context.Context, id string, filter models.SessionFilter) (*models.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil || sess == nil {
		return nil, err
	}
	if !filter.Matches(sess) {
		return nil, nil
	}
	return sess, nil
}

func (s *RedisSessionStore) load(ctx context.Context, id string) (*models.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeSession(id, fields)
}

func decodeSession(id string, fields map[string]string) (*models.Session, error) {
	sess := &models.Session{
		ID:           id,
		AccountID:    fields["accountId"],
		AccessToken:  fields["accessToken"],
		RefreshToken: fields["refreshToken"],
	}
	for name, dst := range map[string]*time.Time{
		"accessTokenValidUntil":  &sess.AccessTokenValidUntil,
		"refreshTokenValidUntil": &sess.RefreshTokenValidUntil,
		"createdAt":              &sess.CreatedAt,
	} {
		ms, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis session %s field %s: %w", id, name, err)
		}
		*dst = time.UnixMilli(ms).UTC()
	}
	return sess, nil
}
