package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"triviacast-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// SessionStore is a Redis implementation of app.SessionRepository.
// Sessions are JSON documents under quiz:session:{id}; updates use
// WATCH/MULTI so concurrent answers to one session cannot interleave.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.QuizSession, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(data)
}

func (s *SessionStore) Update(ctx context.Context, id string, fn func(*domain.QuizSession) error) (*domain.QuizSession, error) {
	key := s.key(id)
	var updated *domain.QuizSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		out, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			updated = session
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update session %s: too much contention", id)
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}

func decodeSession(data []byte) (*domain.QuizSession, error) {
	var session domain.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
