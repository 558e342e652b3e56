// Package redisstore implements store.SessionStore on top of Redis,
// the optional single-node persistence backend named in the domain
// stack (a pluggable SessionStore choice, not a clustering mechanism —
// spec.md's Non-goals rule out clustering, not a shared cache).
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/vargos/internal/store"
)

// Store persists sessions as a JSON string per key (`vargos:session:<key>`)
// and history as a Redis list (`vargos:history:<key>`), with session
// keys tracked in a set (`vargos:sessions`) for List.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// New builds a Store backed by client.
func New(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Open dials Redis at url (e.g. "redis://127.0.0.1:6379/0").
func Open(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	return New(redis.NewClient(opts)), nil
}

func sessionKey(key string) string { return "vargos:session:" + key }
func historyKey(key string) string { return "vargos:history:" + key }
const sessionSetKey = "vargos:sessions"

func (s *Store) EnsureSession(ctx context.Context, key string, kind store.Kind) (*store.Session, error) {
	existing, err := s.Get(ctx, key)
	if err == nil {
		return existing, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	now := s.now()
	sess := &store.Session{SessionKey: key, Kind: kind, CreatedAt: now, UpdatedAt: now}
	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) put(ctx context.Context, sess *store.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redisstore: encode session: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.SessionKey), data, 0)
	pipe.SAdd(ctx, sessionSetKey, sess.SessionKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, key string) (*store.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(key)).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get session: %w", err)
	}
	var sess store.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("redisstore: decode session: %w", err)
	}
	return &sess, nil
}

func (s *Store) List(ctx context.Context) ([]*store.Session, error) {
	keys, err := s.client.SMembers(ctx, sessionSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list sessions: %w", err)
	}
	out := make([]*store.Session, 0, len(keys))
	for _, k := range keys {
		sess, err := s.Get(ctx, k)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(key))
	pipe.Del(ctx, historyKey(key))
	pipe.SRem(ctx, sessionSetKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) AppendMessage(ctx context.Context, key string, msg store.Message) error {
	if _, err := s.EnsureSession(ctx, key, store.KindChannel); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redisstore: encode message: %w", err)
	}

	sess, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	sess.UpdatedAt = s.now()

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, historyKey(key), data)
	sessData, _ := json.Marshal(sess)
	pipe.Set(ctx, sessionKey(key), sessData, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) History(ctx context.Context, key string, limit int) ([]store.Message, error) {
	var raws []string
	var err error
	if limit <= 0 {
		raws, err = s.client.LRange(ctx, historyKey(key), 0, -1).Result()
	} else {
		raws, err = s.client.LRange(ctx, historyKey(key), int64(-limit), -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: history: %w", err)
	}
	out := make([]store.Message, 0, len(raws))
	for _, raw := range raws {
		var msg store.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("redisstore: decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
