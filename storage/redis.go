package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beauty-bot/types"
)

const (
	servicesKey = "cache:services"
	servicesTTL = 10 * time.Minute
	notifiedTTL = 7 * 24 * time.Hour
	scanCount   = 100
)

type Storage struct {
	client *redis.Client
}

func New(addr, password string, db int) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Storage{client: rdb}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func identityKey(chatID int64) string { return fmt.Sprintf("session:%d", chatID) }
func notifiedKey(chatID int64) string { return fmt.Sprintf("notified:%d", chatID) }

// SaveIdentity stores the login of a chat. It does not expire; /logout
// removes it.
func (s *Storage) SaveIdentity(ctx context.Context, id *types.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, identityKey(id.ChatID), data, 0).Err()
}

// GetIdentity returns nil without error when the chat never logged in.
func (s *Storage) GetIdentity(ctx context.Context, chatID int64) (*types.Identity, error) {
	val, err := s.client.Get(ctx, identityKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var id types.Identity
	if err := json.Unmarshal([]byte(val), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// ListIdentities returns every stored login. Unreadable entries are skipped.
func (s *Storage) ListIdentities(ctx context.Context) ([]*types.Identity, error) {
	var ids []*types.Identity
	iter := s.client.Scan(ctx, 0, "session:*", scanCount).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			// logged out between SCAN and GET
			continue
		}
		var id types.Identity
		if json.Unmarshal([]byte(val), &id) == nil {
			ids = append(ids, &id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteIdentity forgets the login of a chat together with its pushed
// notification ids.
func (s *Storage) DeleteIdentity(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, identityKey(chatID), notifiedKey(chatID)).Err()
}

// ===== Service catalogue cache =====

func (s *Storage) SaveServices(ctx context.Context, services []types.Service) error {
	data, err := json.Marshal(services)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, servicesKey, data, servicesTTL).Err()
}

// GetServices returns nil, nil on a cache miss.
func (s *Storage) GetServices(ctx context.Context) ([]types.Service, error) {
	val, err := s.client.Get(ctx, servicesKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var services []types.Service
	if err := json.Unmarshal([]byte(val), &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Storage) InvalidateServices(ctx context.Context) error {
	return s.client.Del(ctx, servicesKey).Err()
}

// ===== Notifications already pushed to a chat =====

// MarkNotified remembers ids as delivered to chatID.
func (s *Storage) MarkNotified(ctx context.Context, chatID int64, ids ...types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id.String()
	}
	key := notifiedKey(chatID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, notifiedTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Unnotified returns the ids not yet delivered to chatID, in input order.
func (s *Storage) Unnotified(ctx context.Context, chatID int64, ids []types.ID) ([]types.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members, err := s.client.SMembers(ctx, notifiedKey(chatID)).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m] = true
	}
	var out []types.ID
	for _, id := range ids {
		if !seen[id.String()] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}
