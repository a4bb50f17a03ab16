package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-redis/redis/v8"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

var (
	_ repository.AutomationRepository = (*AutomationRepo)(nil)
	_ repository.CounterRepository    = (*CounterRepo)(nil)
)

const (
	automationKey = "autoshorts:automation"
	counterKey    = "autoshorts:counter"
)

// AutomationRepo stores the automation config as one JSON value without
// expiry; run markers must outlive restarts.
type AutomationRepo struct {
	client *Client
}

func NewAutomationRepo(client *Client) *AutomationRepo {
	return &AutomationRepo{client: client}
}

func (s *AutomationRepo) Load(ctx context.Context) (*model.AutomationConfig, error) {
	data, err := s.client.Get(ctx, automationKey)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg model.AutomationConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *AutomationRepo) Save(ctx context.Context, cfg *model.AutomationConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, automationKey, data, 0)
}

// CounterRepo keeps the video counter and reward tally in one hash.
type CounterRepo struct {
	client *Client
}

func NewCounterRepo(client *Client) *CounterRepo {
	return &CounterRepo{client: client}
}

func (c *CounterRepo) Totals(ctx context.Context) (repository.Totals, error) {
	vals, err := c.client.cli.HMGet(ctx, counterKey, "videos", "rewards").Result()
	if err != nil {
		return repository.Totals{}, err
	}
	return repository.Totals{Videos: hashInt(vals[0]), Rewards: hashInt(vals[1])}, nil
}

func (c *CounterRepo) RecordCompletion(ctx context.Context, reward int) (repository.Totals, error) {
	var videos, rewards *redis.IntCmd
	_, err := c.client.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		videos = p.HIncrBy(ctx, counterKey, "videos", 1)
		rewards = p.HIncrBy(ctx, counterKey, "rewards", int64(reward))
		return nil
	})
	if err != nil {
		return repository.Totals{}, err
	}
	return repository.Totals{Videos: int(videos.Val()), Rewards: int(rewards.Val())}, nil
}

func hashInt(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
