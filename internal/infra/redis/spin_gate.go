package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"triviacast-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SpinGate enforces the spin cooldown across instances with SET NX.
type SpinGate struct {
	client *redis.Client
}

func NewSpinGate(client *redis.Client) *SpinGate {
	return &SpinGate{client: client}
}

func (g *SpinGate) Acquire(ctx context.Context, address string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return g.client.SetNX(ctx, g.key(address), time.Now().Unix(), window).Result()
}

func (g *SpinGate) Release(ctx context.Context, address string) error {
	return g.client.Del(ctx, g.key(address)).Err()
}

func (g *SpinGate) key(address string) string {
	return "jackpot:cooldown:" + strings.ToLower(address)
}

// NotificationStore keeps mini-app notification targets in one Redis hash keyed by FID.
type NotificationStore struct {
	client *redis.Client
}

const notificationsKey = "miniapp:notifications"

func NewNotificationStore(client *redis.Client) *NotificationStore {
	return &NotificationStore{client: client}
}

func (s *NotificationStore) Save(ctx context.Context, details domain.NotificationDetails) error {
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, notificationsKey, strconv.FormatInt(details.FID, 10), data).Err()
}

func (s *NotificationStore) Get(ctx context.Context, fid int64) (domain.NotificationDetails, bool, error) {
	data, err := s.client.HGet(ctx, notificationsKey, strconv.FormatInt(fid, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NotificationDetails{}, false, nil
	}
	if err != nil {
		return domain.NotificationDetails{}, false, err
	}
	var details domain.NotificationDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return domain.NotificationDetails{}, false, err
	}
	return details, true, nil
}

func (s *NotificationStore) Delete(ctx context.Context, fid int64) error {
	return s.client.HDel(ctx, notificationsKey, strconv.FormatInt(fid, 10)).Err()
}
