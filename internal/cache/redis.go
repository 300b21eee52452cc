// Package cache provides a redis read cache for content projections. Version
// history is never cached here: every version read goes to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const contentTTL = time.Hour

func contentKey(id string) string {
	return "content:" + id
}

type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
		Protocol: 2,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// GetContent loads a cached content projection into out. The second return
// value reports whether the key was present.
func (r *Redis) GetContent(ctx context.Context, id string, out any) (bool, error) {
	res := r.client.Get(ctx, contentKey(id))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return false, nil
		}
		return false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(buf, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetContent(ctx context.Context, id string, v any) error {
	marshal, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, contentKey(id), marshal, contentTTL).Err()
}

func (r *Redis) DeleteContent(ctx context.Context, id string) error {
	return r.client.Del(ctx, contentKey(id)).Err()
}
